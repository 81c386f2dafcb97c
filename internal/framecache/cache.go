// Package framecache keeps a sliding window of decoded frames ahead of a
// playback cursor.
//
// All book-keeping is owned by one consumer goroutine, the one calling
// RequestFrame and Pump. Background workers only decode and post their result
// back through a handoff queue, so the cache itself takes no locks.
package framecache

import (
	"context"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wader/gifcat/internal/handoff"
	"github.com/wader/gifcat/internal/logging"
	"github.com/wader/gifcat/internal/predraw"
	"github.com/wader/gifcat/internal/timing"
)

// Source of frames, *gifsource.Asset implements it. Frame must be safe to
// call from multiple goroutines.
type Source interface {
	FrameCount() int
	Frame(index int) (image.Image, error)
	Poster() image.Image
	PosterIndex() int
	Width() int
	Height() int
	EstimatedSize() int64
}

// Cache of decoded frames
type Cache struct {
	src           Source
	frameCount    int
	posterIndex   int
	policy        Policy
	windowCap     int
	sizeClasses   SizeClasses
	cooldownRange timing.Cooldown
	predraw       predraw.Func
	workers       int
	slowdown      float64
	log           logging.Logger
	clock         timing.Clock
	rand          *rand.Rand
	observer      Observer
	metrics       *Metrics
	counters      counters

	optimalOverride int
	optimalSize     int

	queue  *handoff.Queue
	jobs   chan int
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// consumer goroutine only
	frames           map[int]image.Image
	cached           IndexSet
	inFlight         IndexSet
	maxWindowSize    int
	lastRequested    int
	hasLastRequested bool
	lastPressure     timing.Timestamp
	cooldown         time.Duration
	closed           bool
}

// New creates a cache for src and starts its background workers. The poster
// is resident from the start.
func New(src Source, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		src:           src,
		frameCount:    src.FrameCount(),
		posterIndex:   src.PosterIndex(),
		policy:        Greedy(),
		sizeClasses:   DefaultSizeClasses,
		cooldownRange: DefaultPressureCooldown,
		workers:       1,
		log:           logging.Nop{},
		clock:         timing.SystemClock{},
		observer:      nopObserver{},
		queue:         handoff.New(),
		ctx:           ctx,
		cancel:        cancel,
		frames:        map[int]image.Image{},
		cached:        NewIndexSet(),
		inFlight:      NewIndexSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log)
	if c.rand == nil {
		c.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(prometheus.NewRegistry())
	}

	c.optimalSize = c.sizeClasses.OptimalWindow(src.EstimatedSize(), c.frameCount)
	if c.optimalOverride > 0 {
		c.optimalSize = c.optimalOverride
	}
	if c.optimalSize > c.frameCount {
		c.optimalSize = c.frameCount
	}
	c.maxWindowSize = c.ceiling()

	poster := src.Poster()
	if c.predraw != nil {
		poster = c.predraw(poster)
	}
	c.frames[c.posterIndex] = poster
	c.cached.Add(c.posterIndex)

	// outstanding jobs are always in flight and there are at most frameCount of
	// them, so sends never block
	c.jobs = make(chan int, c.frameCount)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.work()
	}

	c.updateGauges()
	c.log.Debugf("frame cache: frames=%d optimal=%d max=%d policy=%s workers=%d",
		c.frameCount, c.optimalSize, c.maxWindowSize, c.policy, c.workers)

	return c
}

// FrameCount of the source
func (c *Cache) FrameCount() int { return c.frameCount }

// OptimalSize is the window picked at creation from the asset size
func (c *Cache) OptimalSize() int { return c.optimalSize }

// MaxWindowSize is the adaptive bound, grown on requests and halved under
// memory pressure
func (c *Cache) MaxWindowSize() int { return c.maxWindowSize }

// WindowCap is the user cap, 0 no cap
func (c *Cache) WindowCap() int { return c.windowCap }

// SetWindowCap caps the window, 0 removes the cap. Shrinking purges frames
// outside the new window.
func (c *Cache) SetWindowCap(n int) {
	if n < 0 {
		n = 0
	}
	if n == c.windowCap {
		return
	}
	old := c.CurrentWindowSize()
	c.windowCap = n
	c.updateGauges()
	if c.CurrentWindowSize() < old {
		c.purgeIfNeeded()
	}
}

// CurrentWindowSize is the number of frames the cache tries to keep resident
// besides the poster, in [1, FrameCount]
func (c *Cache) CurrentWindowSize() int {
	n := c.optimalSize
	if c.windowCap > 0 && c.windowCap < n {
		n = c.windowCap
	}
	if c.maxWindowSize > 0 && c.maxWindowSize < n {
		n = c.maxWindowSize
	}
	return n
}

// Cached returns the resident indices in ascending order
func (c *Cache) Cached() []int { return c.cached.Sorted() }

// InFlight returns the indices being produced in ascending order
func (c *Cache) InFlight() []int { return c.inFlight.Sorted() }

// MemoryUsage is the estimated bytes used by resident frames
func (c *Cache) MemoryUsage() int64 {
	return int64(c.src.Width()) * int64(c.src.Height()) * 4 * int64(c.cached.Len())
}

// LastPressure is when memory pressure was last handled, zero if never
func (c *Cache) LastPressure() timing.Timestamp { return c.lastPressure }

// Stats can be called from any goroutine
func (c *Cache) Stats() Stats { return c.counters.snapshot() }

// Ready is signaled when there are results to Pump
func (c *Cache) Ready() <-chan struct{} { return c.queue.Ready() }

// Pump applies delivered frames and memory pressure signals. Returns number
// of messages handled.
func (c *Cache) Pump() int {
	if c.closed {
		return 0
	}
	return c.queue.Drain()
}

// RequestFrame returns the frame at index if resident. Never blocks. On a
// miss the caller should keep showing its last frame and ask again later.
func (c *Cache) RequestFrame(index int) (image.Image, bool) {
	c.Pump()
	if c.closed {
		return nil, false
	}
	if index < 0 || index >= c.frameCount {
		c.log.Errorf("frame cache: requested index %d out of range [0, %d)", index, c.frameCount)
		return nil, false
	}

	c.observer.FrameRequested(index)

	if !c.hasLastRequested || index != c.lastRequested {
		c.lastRequested = index
		c.hasLastRequested = true
		c.grow()
		c.schedule()
	} else if !c.cached.Contains(index) && !c.inFlight.Contains(index) {
		// a previous attempt failed, retry
		c.schedule()
	}

	m, ok := c.frames[index]
	if ok {
		c.counters.hits.Inc()
		c.metrics.Hits.Inc()
	} else {
		c.counters.misses.Inc()
		c.metrics.Misses.Inc()
	}
	return m, ok
}

// OnMemoryPressure halves the window. Safe to call from any goroutine, takes
// effect on the next Pump or RequestFrame.
func (c *Cache) OnMemoryPressure() {
	c.queue.Post(c.handleMemoryPressure)
}

// Close stops the workers and waits for them. Queued results are dropped and
// the observer is not called again.
func (c *Cache) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.queue.Close()
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) handleMemoryPressure() {
	old := c.maxWindowSize
	c.maxWindowSize /= 2
	if c.maxWindowSize < 1 {
		c.maxWindowSize = 1
	}
	c.lastPressure = timing.TimestampAt(c.clock.Now())
	c.cooldown = c.cooldownRange.Draw(c.rand)

	c.counters.pressureEvents.Inc()
	c.metrics.PressureEvents.Inc()
	c.updateGauges()
	c.log.Infof("frame cache: memory pressure, max window %d -> %d, growth paused for %s", old, c.maxWindowSize, c.cooldown)

	c.purgeIfNeeded()
}

// ceiling is the most maxWindowSize grows to. Growing past the optimal size
// would not keep more frames resident.
func (c *Cache) ceiling() int {
	n := c.policy.Ceiling(c.frameCount)
	if c.optimalSize < n {
		n = c.optimalSize
	}
	return n
}

func (c *Cache) grow() {
	if c.maxWindowSize >= c.ceiling() {
		return
	}
	if !c.lastPressure.IsZero() && timing.TimestampAt(c.clock.Now()).Sub(c.lastPressure) < c.cooldown {
		return
	}
	c.maxWindowSize++
	c.updateGauges()
	c.purgeIfNeeded()
}

// targetWindow is the circular range of CurrentWindowSize indices starting at
// index plus the poster
func (c *Cache) targetWindow(index int) IndexSet {
	size := c.CurrentWindowSize()
	if size >= c.frameCount {
		return RangeSet(0, c.frameCount)
	}

	first := size
	if rest := c.frameCount - index; rest < first {
		first = rest
	}
	w := RangeSet(index, index+first)
	for i := 0; i < size-first; i++ {
		w.Add(i)
	}
	w.Add(c.posterIndex)
	return w
}

func (c *Cache) schedule() {
	if c.cached.Len() >= c.frameCount {
		return
	}

	target := c.targetWindow(c.lastRequested)
	var queued []int
	add := func(start, end int) {
		for i := start; i < end; i++ {
			if !target.Contains(i) || c.cached.Contains(i) || c.inFlight.Contains(i) || i == c.posterIndex {
				continue
			}
			c.inFlight.Add(i)
			queued = append(queued, i)
		}
	}
	// forward from the requested index first, then the wrapped part
	add(c.lastRequested, c.frameCount)
	add(0, c.lastRequested)

	for _, i := range queued {
		c.jobs <- i
	}
}

func (c *Cache) work() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case i := <-c.jobs:
			c.produce(i)
		}
	}
}

func (c *Cache) produce(index int) {
	start := timing.Now()
	m, err := c.src.Frame(index)
	if err == nil && c.predraw != nil {
		m = c.predraw(m)
	}
	d := timing.Now().Sub(start)

	if c.slowdown > 1 {
		extra := time.Duration(float64(d) * (c.slowdown - 1))
		t := time.NewTimer(extra)
		select {
		case <-c.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		d += extra
	}
	c.metrics.ProduceDuration.Observe(d.Seconds())

	if err != nil {
		c.counters.decodeFailures.Inc()
		c.metrics.DecodeFailures.Inc()
	}
	c.queue.Post(func() { c.deliver(index, m, err) })
}

func (c *Cache) deliver(index int, m image.Image, err error) {
	c.inFlight.Remove(index)
	if err != nil {
		c.log.Warnf("frame cache: %s", err)
		return
	}

	c.frames[index] = m
	c.cached.Add(index)
	c.counters.produced.Inc()
	c.metrics.Produced.Inc()
	c.updateGauges()
	c.notifyCached()

	c.purgeIfNeeded()
}

// purgeIfNeeded drops resident frames outside the target window, never the
// poster
func (c *Cache) purgeIfNeeded() {
	if c.cached.Len() <= c.CurrentWindowSize() {
		return
	}

	index := c.lastRequested
	if !c.hasLastRequested {
		index = c.posterIndex
	}
	purge := c.cached.Subtract(c.targetWindow(index))
	purge.Remove(c.posterIndex)
	if purge.Len() == 0 {
		return
	}

	for i := range purge {
		delete(c.frames, i)
		c.cached.Remove(i)
	}
	c.counters.evictions.Add(int64(purge.Len()))
	c.metrics.Evictions.Add(float64(purge.Len()))
	c.updateGauges()
	c.notifyCached()
}

func (c *Cache) notifyCached() {
	if c.closed {
		return
	}
	c.observer.CachedFramesChanged(c.cached.Sorted())
	c.observer.MemoryUsage(c.MemoryUsage())
}

func (c *Cache) updateGauges() {
	ws := c.CurrentWindowSize()
	c.counters.windowSize.Store(int64(ws))
	c.counters.maxWindowSize.Store(int64(c.maxWindowSize))
	c.counters.resident.Store(int64(c.cached.Len()))
	c.metrics.WindowSize.Set(float64(ws))
	c.metrics.MaxWindowSize.Set(float64(c.maxWindowSize))
	c.metrics.ResidentFrames.Set(float64(c.cached.Len()))
}
