// Package memwatch turns heap growth over a limit into memory pressure
// signals.
package memwatch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/wader/gifcat/internal/logging"
)

// DefaultInterval between heap samples
const DefaultInterval = time.Second

// Sampler returns bytes in use, HeapSampler is the default
type Sampler func() uint64

// HeapSampler reads runtime heap in use
func HeapSampler() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}

// Watcher calls its handlers when a sample is over the limit. After signaling
// it waits for usage to go below the limit before signaling again, unless
// Repeat is set.
type Watcher struct {
	Limit    uint64
	Interval time.Duration
	Sampler  Sampler
	Log      logging.Logger
	// Repeat signals on every sample over the limit
	Repeat bool

	mu       sync.Mutex
	handlers []func()
	over     bool
}

// OnPressure adds fn to be called from the watcher goroutine
func (w *Watcher) OnPressure(fn func()) {
	w.mu.Lock()
	w.handlers = append(w.handlers, fn)
	w.mu.Unlock()
}

// Check takes one sample and signals if needed. Returns true if signaled.
func (w *Watcher) Check() bool {
	sampler := w.Sampler
	if sampler == nil {
		sampler = HeapSampler
	}
	used := sampler()

	w.mu.Lock()
	if used < w.Limit || w.Limit == 0 {
		w.over = false
		w.mu.Unlock()
		return false
	}
	if w.over && !w.Repeat {
		w.mu.Unlock()
		return false
	}
	w.over = true
	handlers := append([]func(){}, w.handlers...)
	w.mu.Unlock()

	logging.OrNop(w.Log).Infof("memwatch: %d bytes in use, limit %d", used, w.Limit)
	for _, fn := range handlers {
		fn()
	}
	return true
}

// Run samples until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.Check()
		}
	}
}
