package timing

import (
	"math/rand"
	"sync"
	"time"
)

// Timestamp is a point on the monotonic clock
type Timestamp struct {
	t time.Time
}

// Now returns the current monotonic timestamp
func Now() Timestamp { return Timestamp{t: time.Now()} }

// TimestampAt wraps t, use with Clock.Now()
func TimestampAt(t time.Time) Timestamp { return Timestamp{t: t} }

func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

func (ts Timestamp) Time() time.Time { return ts.t }

// Sub returns ts - start
func (ts Timestamp) Sub(start Timestamp) time.Duration { return ts.t.Sub(start.t) }

func (ts Timestamp) Nanoseconds(since Timestamp) int64 { return int64(ts.Sub(since)) }

func (ts Timestamp) Microseconds(since Timestamp) int64 { return ts.Sub(since).Microseconds() }

func (ts Timestamp) Milliseconds(since Timestamp) int64 { return ts.Sub(since).Milliseconds() }

func (ts Timestamp) Seconds(since Timestamp) int64 { return int64(ts.Sub(since) / time.Second) }

// Clock is a source of now
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to. Safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Cooldown is a jittered wait range
type Cooldown struct {
	Min time.Duration
	Max time.Duration
}

// Draw picks a duration uniformly in [Min, Max]
func (c Cooldown) Draw(r *rand.Rand) time.Duration {
	if c.Max <= c.Min {
		return c.Min
	}
	return c.Min + time.Duration(r.Int63n(int64(c.Max-c.Min)+1))
}
