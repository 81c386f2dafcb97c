package playback

import (
	"context"
	"sync"
	"time"

	"github.com/wader/gifcat/internal/timing"
	"go.uber.org/atomic"
)

// Handle identifies a DisplayLink registration. It does not keep the
// registered callback or its owner alive after Remove.
type Handle uint64

type registration struct {
	fn func(elapsed time.Duration)

	// held while fn runs so Remove can wait for it
	mu      sync.Mutex
	removed bool
	paused  bool
	last    time.Time
}

// DisplayLink calls registered callbacks at a fixed interval with the real
// time elapsed since the previous call. Callbacks run on the link goroutine.
type DisplayLink struct {
	clock    timing.Clock
	interval atomic.Duration
	ticks    atomic.Int64

	mu     sync.Mutex
	regs   map[Handle]*registration
	nextID Handle

	intervalC chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// LinkOption configures a DisplayLink
type LinkOption func(*DisplayLink)

func WithInterval(d time.Duration) LinkOption {
	return func(l *DisplayLink) { l.interval.Store(d) }
}

func WithClock(c timing.Clock) LinkOption {
	return func(l *DisplayLink) { l.clock = c }
}

// NewDisplayLink starts the link goroutine, stop it with Close
func NewDisplayLink(opts ...LinkOption) *DisplayLink {
	ctx, cancel := context.WithCancel(context.Background())
	l := &DisplayLink{
		clock:     timing.SystemClock{},
		regs:      map[Handle]*registration{},
		intervalC: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	l.interval.Store(time.Second / MaxFPS)
	for _, opt := range opts {
		opt(l)
	}
	if l.interval.Load() <= 0 {
		l.interval.Store(time.Second / MaxFPS)
	}

	l.wg.Add(1)
	go l.run()

	return l
}

// Add registers fn, the first call gets the time since Add
func (l *DisplayLink) Add(fn func(elapsed time.Duration)) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.regs[l.nextID] = &registration{fn: fn, last: l.clock.Now()}
	return l.nextID
}

// Remove unregisters h. When it returns any in progress call for h has
// finished and no new call will start. Must not be called from the callback.
func (l *DisplayLink) Remove(h Handle) {
	l.mu.Lock()
	r, ok := l.regs[h]
	delete(l.regs, h)
	l.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	r.removed = true
	r.mu.Unlock()
}

// SetPaused pauses or resumes calls for h. Time spent paused is not reported
// as elapsed.
func (l *DisplayLink) SetPaused(h Handle, paused bool) {
	l.mu.Lock()
	r, ok := l.regs[h]
	l.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	if r.paused && !paused {
		r.last = l.clock.Now()
	}
	r.paused = paused
	r.mu.Unlock()
}

// SetInterval changes the tick interval
func (l *DisplayLink) SetInterval(d time.Duration) {
	if d <= 0 || d == l.interval.Load() {
		return
	}
	l.interval.Store(d)
	select {
	case l.intervalC <- struct{}{}:
	default:
	}
}

func (l *DisplayLink) Interval() time.Duration { return l.interval.Load() }

// Ticks is number of ticks fired so far
func (l *DisplayLink) Ticks() int64 { return l.ticks.Load() }

// Close stops the link goroutine and waits for it
func (l *DisplayLink) Close() {
	l.cancel()
	l.wg.Wait()
}

func (l *DisplayLink) run() {
	defer l.wg.Done()

	t := time.NewTicker(l.interval.Load())
	defer t.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.intervalC:
			t.Reset(l.interval.Load())
		case <-t.C:
			l.fire()
		}
	}
}

func (l *DisplayLink) fire() {
	l.ticks.Inc()
	now := l.clock.Now()

	l.mu.Lock()
	regs := make([]*registration, 0, len(l.regs))
	for _, r := range l.regs {
		regs = append(regs, r)
	}
	l.mu.Unlock()

	for _, r := range regs {
		r.mu.Lock()
		if !r.removed && !r.paused {
			elapsed := now.Sub(r.last)
			r.last = now
			r.fn(elapsed)
		}
		r.mu.Unlock()
	}
}
