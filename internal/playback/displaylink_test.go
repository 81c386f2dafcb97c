package playback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/wader/gifcat/internal/playback"
	"go.uber.org/atomic"
)

func TestDisplayLinkElapsed(t *testing.T) {
	defer leaktest.Check(t)()

	l := playback.NewDisplayLink(playback.WithInterval(5 * time.Millisecond))
	defer l.Close()

	var mu sync.Mutex
	var total time.Duration
	calls := 0
	start := time.Now()
	h := l.Add(func(elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		total += elapsed
		calls++
	})

	time.Sleep(60 * time.Millisecond)
	l.Remove(h)
	wall := time.Since(start)

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Fatal("expected calls")
	}
	if total <= 0 || total > wall {
		t.Errorf("elapsed sum %s outside (0, %s]", total, wall)
	}
}

func TestDisplayLinkRemoveWaitsForCallback(t *testing.T) {
	defer leaktest.Check(t)()

	l := playback.NewDisplayLink(playback.WithInterval(time.Millisecond))
	defer l.Close()

	var inCallback atomic.Bool
	var calls atomic.Int64
	entered := make(chan struct{}, 1)
	h := l.Add(func(time.Duration) {
		inCallback.Store(true)
		select {
		case entered <- struct{}{}:
		default:
		}
		time.Sleep(30 * time.Millisecond)
		calls.Inc()
		inCallback.Store(false)
	})

	<-entered
	l.Remove(h)
	if inCallback.Load() {
		t.Error("remove returned while callback was running")
	}
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != n {
		t.Error("callback called after remove")
	}

	// removing twice or an unknown handle is fine
	l.Remove(h)
	l.Remove(playback.Handle(12345))
}

func TestDisplayLinkPause(t *testing.T) {
	defer leaktest.Check(t)()

	l := playback.NewDisplayLink(playback.WithInterval(2 * time.Millisecond))
	defer l.Close()

	var calls atomic.Int64
	var maxElapsed atomic.Duration
	h := l.Add(func(elapsed time.Duration) {
		calls.Inc()
		if elapsed > maxElapsed.Load() {
			maxElapsed.Store(elapsed)
		}
	})
	l.SetPaused(h, true)
	time.Sleep(10 * time.Millisecond)
	n := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != n {
		t.Error("called while paused")
	}
	maxElapsed.Store(0)
	l.SetPaused(h, false)
	time.Sleep(20 * time.Millisecond)
	l.Remove(h)

	if calls.Load() == n {
		t.Error("expected calls after resume")
	}
	if maxElapsed.Load() >= 50*time.Millisecond {
		t.Errorf("paused time reported as elapsed: %s", maxElapsed.Load())
	}
}

func TestDisplayLinkSetInterval(t *testing.T) {
	defer leaktest.Check(t)()

	l := playback.NewDisplayLink()
	defer l.Close()
	if l.Interval() != time.Second/playback.MaxFPS {
		t.Errorf("unexpected default interval %s", l.Interval())
	}
	l.SetInterval(time.Millisecond)
	l.SetInterval(0)
	if l.Interval() != time.Millisecond {
		t.Errorf("expected 1ms, got %s", l.Interval())
	}
	time.Sleep(30 * time.Millisecond)
	if l.Ticks() < 5 {
		t.Errorf("expected ticks at new interval, got %d", l.Ticks())
	}
}
