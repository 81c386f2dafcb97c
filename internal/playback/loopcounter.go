package playback

import (
	"strconv"

	"github.com/wader/gifcat/internal/gifsource"
)

// LoopCounter counts down completed loops
type LoopCounter struct {
	finite    bool
	remaining int
}

// NewLoopCounter starts at lc, infinite never finishes
func NewLoopCounter(lc gifsource.LoopCount) LoopCounter {
	if lc.IsInfinite() {
		return LoopCounter{}
	}
	return LoopCounter{finite: true, remaining: int(lc)}
}

// Complete records a finished loop
func (l *LoopCounter) Complete() {
	if l.finite && l.remaining > 0 {
		l.remaining--
	}
}

func (l LoopCounter) Infinite() bool { return !l.finite }

// Finished is true when a finite count reached zero
func (l LoopCounter) Finished() bool { return l.finite && l.remaining == 0 }

// Remaining loops, only meaningful if not Infinite
func (l LoopCounter) Remaining() int { return l.remaining }

func (l LoopCounter) String() string {
	if !l.finite {
		return "infinite"
	}
	return strconv.Itoa(l.remaining)
}
