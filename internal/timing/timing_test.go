package timing_test

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/wader/gifcat/internal/timing"
)

func TestGCD(t *testing.T) {
	testCases := []struct {
		a, b     int
		expected int
	}{
		{a: 10, b: 15, expected: 5},
		{a: 15, b: 10, expected: 5},
		{a: 7, b: 7, expected: 7},
		{a: 0, b: 9, expected: 9},
		{a: 9, b: 0, expected: 9},
		{a: 12, b: 18, expected: 6},
		{a: -4, b: 6, expected: 2},
		{a: 17, b: 5, expected: 1},
	}
	for i, tC := range testCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			if g := timing.GCD(tC.a, tC.b); g != tC.expected {
				t.Errorf("GCD(%d, %d) expected %d, got %d", tC.a, tC.b, tC.expected, g)
			}
		})
	}

	if g := timing.GCDAll(); g != 0 {
		t.Errorf("expected 0 for empty, got %d", g)
	}
	if g := timing.GCDAll(20, 30, 45); g != 5 {
		t.Errorf("expected 5, got %d", g)
	}
}

func TestDurationGCDDividesDelays(t *testing.T) {
	precision := timing.PrecisionFor(20 * time.Millisecond)
	if precision != 100 {
		t.Fatalf("expected precision 100, got %v", precision)
	}

	delays := []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}
	g := timing.DurationGCD(delays, precision)
	if g != 50*time.Millisecond {
		t.Fatalf("expected 50ms, got %s", g)
	}
	qg := timing.Quantize(g, precision)
	for _, d := range delays {
		if qd := timing.Quantize(d, precision); qd%qg != 0 {
			t.Errorf("%s (%d) not divisible by %s (%d)", d, qd, g, qg)
		}
	}
}

func TestQuantizeRounds(t *testing.T) {
	precision := timing.PrecisionFor(20 * time.Millisecond)
	// 0.104s is 10.4 units and rounds to 10
	if q := timing.Quantize(104*time.Millisecond, precision); q != 10 {
		t.Errorf("expected 10, got %d", q)
	}
	if q := timing.Quantize(106*time.Millisecond, precision); q != 11 {
		t.Errorf("expected 11, got %d", q)
	}
}

func TestPreferredFPS(t *testing.T) {
	testCases := []struct {
		g        time.Duration
		expected int
	}{
		{g: 50 * time.Millisecond, expected: 20},
		{g: 10 * time.Millisecond, expected: 60},
		{g: 2 * time.Second, expected: 1},
		{g: 0, expected: 60},
	}
	for _, tC := range testCases {
		t.Run(tC.g.String(), func(t *testing.T) {
			if fps := timing.PreferredFPS(tC.g, 60); fps != tC.expected {
				t.Errorf("expected %d, got %d", tC.expected, fps)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	start := timing.TimestampAt(time.Unix(100, 0))
	end := timing.TimestampAt(time.Unix(102, 500_000_000))

	if v := end.Seconds(start); v != 2 {
		t.Errorf("seconds expected 2, got %d", v)
	}
	if v := end.Milliseconds(start); v != 2500 {
		t.Errorf("milliseconds expected 2500, got %d", v)
	}
	if v := end.Microseconds(start); v != 2_500_000 {
		t.Errorf("microseconds expected 2500000, got %d", v)
	}
	if v := end.Nanoseconds(start); v != 2_500_000_000 {
		t.Errorf("nanoseconds expected 2500000000, got %d", v)
	}
	if timing.Now().IsZero() {
		t.Error("now should not be zero")
	}
}

func TestManualClock(t *testing.T) {
	c := timing.NewManualClock(time.Unix(0, 0))
	c.Advance(3 * time.Second)
	if c.Now() != time.Unix(3, 0) {
		t.Errorf("unexpected now %s", c.Now())
	}
}

func TestCooldownDrawInRange(t *testing.T) {
	c := timing.Cooldown{Min: 5 * time.Second, Max: 10 * time.Second}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := c.Draw(r)
		if d < c.Min || d > c.Max {
			t.Fatalf("draw %s outside [%s, %s]", d, c.Min, c.Max)
		}
	}

	fixed := timing.Cooldown{Min: time.Second, Max: time.Second}
	if d := fixed.Draw(r); d != time.Second {
		t.Errorf("expected 1s, got %s", d)
	}
}
