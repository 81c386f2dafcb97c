// Package timing has integer GCD, delay quantization, monotonic timestamps
// and clocks shared by the frame cache and the playback driver.
package timing

import (
	"math"
	"time"
)

// GCD of a and b. Negative values are treated as their absolute value and
// GCD(0, b) is b.
func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a < b {
		a, b = b, a
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// GCDAll folds GCD over vs, 0 if vs is empty
func GCDAll(vs ...int) int {
	g := 0
	for _, v := range vs {
		g = GCD(g, v)
		if g == 1 {
			break
		}
	}
	return g
}

// PrecisionFor returns the quantization precision (units per second) used for
// delays that are never shorter than min: 2 / min.
func PrecisionFor(min time.Duration) float64 {
	return 2 / min.Seconds()
}

// Quantize scales d by precision and rounds to nearest integer
func Quantize(d time.Duration, precision float64) int {
	return int(math.Round(d.Seconds() * precision))
}

// Dequantize is the inverse of Quantize
func Dequantize(q int, precision float64) time.Duration {
	return time.Duration(math.Round(float64(q) * float64(time.Second) / precision))
}

// DurationGCD quantizes ds with precision and returns their greatest common
// divisor as a duration. Returns 0 for no or only zero durations.
func DurationGCD(ds []time.Duration, precision float64) time.Duration {
	qs := make([]int, len(ds))
	for i, d := range ds {
		qs[i] = Quantize(d, precision)
	}
	return Dequantize(GCDAll(qs...), precision)
}

// PreferredFPS is the tick rate needed for a timing granularity g, clamped to
// [1, max].
func PreferredFPS(g time.Duration, max int) int {
	if g <= 0 {
		return max
	}
	fps := int(math.Round(float64(time.Second) / float64(g)))
	if fps < 1 {
		return 1
	}
	if fps > max {
		return max
	}
	return fps
}
