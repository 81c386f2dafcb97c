package framecache

import (
	"fmt"
	"strconv"
	"strings"
)

// Policy limits how large the adaptive window may grow
type Policy struct {
	limit int // 0 no limit
}

// Greedy grows the window up to the frame count
func Greedy() Policy { return Policy{} }

// Limited grows the window up to n frames
func Limited(n int) Policy {
	if n < 1 {
		n = 1
	}
	return Policy{limit: n}
}

// ParsePolicy parses "greedy", "limited" (uses limit) or "limited:N"
func ParsePolicy(s string, limit int) (Policy, error) {
	name, arg, hasArg := strings.Cut(strings.ToLower(s), ":")
	switch name {
	case "", "greedy":
		return Greedy(), nil
	case "limited":
		n := limit
		if hasArg {
			var err error
			if n, err = strconv.Atoi(arg); err != nil {
				return Policy{}, fmt.Errorf("limited policy: %w", err)
			}
		}
		if n < 1 {
			return Policy{}, fmt.Errorf("limited policy needs a limit >= 1, got %d", n)
		}
		return Limited(n), nil
	default:
		return Policy{}, fmt.Errorf("unknown cache policy %q", s)
	}
}

// Ceiling is the largest window for frameCount frames
func (p Policy) Ceiling(frameCount int) int {
	if p.limit > 0 && p.limit < frameCount {
		return p.limit
	}
	return frameCount
}

func (p Policy) String() string {
	if p.limit == 0 {
		return "greedy"
	}
	return "limited:" + strconv.Itoa(p.limit)
}

// SizeClasses picks the optimal window from the estimated decoded size
type SizeClasses struct {
	AllFramesBytes  int64 // at or below keep every frame
	DefaultBytes    int64 // at or below use DefaultWindow
	DefaultWindow   int
	LowMemoryWindow int
}

const mib = 1024 * 1024

// DefaultSizeClasses 10MiB for all frames, 75MiB for a window of 5 and
// otherwise 1
var DefaultSizeClasses = SizeClasses{
	AllFramesBytes:  10 * mib,
	DefaultBytes:    75 * mib,
	DefaultWindow:   5,
	LowMemoryWindow: 1,
}

// OptimalWindow for an asset of frameCount frames using estimatedSize bytes,
// never more than frameCount
func (sc SizeClasses) OptimalWindow(estimatedSize int64, frameCount int) int {
	var n int
	switch {
	case estimatedSize <= sc.AllFramesBytes:
		n = frameCount
	case estimatedSize <= sc.DefaultBytes:
		n = sc.DefaultWindow
	default:
		n = sc.LowMemoryWindow
	}
	if n < 1 {
		n = 1
	}
	if n > frameCount {
		n = frameCount
	}
	return n
}
