package framecache

import (
	"go.uber.org/atomic"
)

// Stats is a snapshot of cache counters
type Stats struct {
	Hits           int64
	Misses         int64
	Produced       int64
	DecodeFailures int64
	Evictions      int64
	PressureEvents int64
	Resident       int64
	WindowSize     int64
	MaxWindowSize  int64
}

// counters are written on the consumer and by workers, read from anywhere
type counters struct {
	hits           atomic.Int64
	misses         atomic.Int64
	produced       atomic.Int64
	decodeFailures atomic.Int64
	evictions      atomic.Int64
	pressureEvents atomic.Int64
	resident       atomic.Int64
	windowSize     atomic.Int64
	maxWindowSize  atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Produced:       c.produced.Load(),
		DecodeFailures: c.decodeFailures.Load(),
		Evictions:      c.evictions.Load(),
		PressureEvents: c.pressureEvents.Load(),
		Resident:       c.resident.Load(),
		WindowSize:     c.windowSize.Load(),
		MaxWindowSize:  c.maxWindowSize.Load(),
	}
}

// HitRatio of all requests, 0 if none
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
