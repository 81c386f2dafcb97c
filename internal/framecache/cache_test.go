package framecache_test

import (
	"bytes"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/wader/gifcat/internal/framecache"
	"github.com/wader/gifcat/internal/gifsource"
	"github.com/wader/gifcat/internal/gifsource/giftest"
	"github.com/wader/gifcat/internal/predraw"
	"github.com/wader/gifcat/internal/timing"
	"github.com/wader/osleaktest"
)

func leakChecks(t *testing.T) func() {
	leakFn := leaktest.Check(t)
	osLeakFn := osleaktest.Check(t)
	return func() {
		leakFn()
		osLeakFn()
	}
}

type fakeSource struct {
	frameCount int
	size       int64
	block      chan struct{}

	mu        sync.Mutex
	calls     []int
	failures  map[int]int
	active    map[int]int
	maxActive int
}

func newFakeSource(frameCount int) *fakeSource {
	return &fakeSource{
		frameCount: frameCount,
		failures:   map[int]int{},
		active:     map[int]int{},
	}
}

func (s *fakeSource) FrameCount() int      { return s.frameCount }
func (s *fakeSource) Poster() image.Image  { return image.NewRGBA(image.Rect(0, 0, 2, 2)) }
func (s *fakeSource) PosterIndex() int     { return 0 }
func (s *fakeSource) Width() int           { return 2 }
func (s *fakeSource) Height() int          { return 2 }
func (s *fakeSource) EstimatedSize() int64 { return s.size }

func (s *fakeSource) Frame(index int) (image.Image, error) {
	s.mu.Lock()
	s.calls = append(s.calls, index)
	s.active[index]++
	if s.active[index] > s.maxActive {
		s.maxActive = s.active[index]
	}
	s.mu.Unlock()

	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[index]--
	if s.failures[index] > 0 {
		s.failures[index]--
		return nil, &gifsource.FrameDecodeError{Index: index, Err: fmt.Errorf("broken")}
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (s *fakeSource) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

// settle pumps until nothing is in flight
func settle(t *testing.T, c *framecache.Cache) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for len(c.InFlight()) > 0 {
		select {
		case <-c.Ready():
			c.Pump()
		case <-deadline:
			t.Fatalf("timeout waiting for frames %v", c.InFlight())
		}
	}
}

func TestPosterResident(t *testing.T) {
	defer leakChecks(t)()

	var changes [][]int
	src := newFakeSource(10)
	c := framecache.New(src,
		framecache.WithOptimalSize(2),
		framecache.WithObserver(framecache.ObserverFuncs{
			OnCachedFramesChanged: func(cached []int) { changes = append(changes, cached) },
		}),
	)
	defer c.Close()

	require.Equal(t, []int{0}, c.Cached())
	m, ok := c.RequestFrame(0)
	require.True(t, ok)
	require.NotNil(t, m)

	for _, i := range []int{3, 7, 5, 9, 1} {
		c.RequestFrame(i)
		settle(t, c)
	}
	c.OnMemoryPressure()
	c.Pump()
	c.RequestFrame(6)
	settle(t, c)

	require.NotEmpty(t, changes)
	for _, cached := range changes {
		require.Contains(t, cached, 0)
	}
}

func TestRoundTrip(t *testing.T) {
	defer leakChecks(t)()

	a, err := gifsource.Load(giftest.Generate(t, giftest.Options{Delays: giftest.Frames(12, 10)}))
	require.NoError(t, err)
	c := framecache.New(a)
	defer c.Close()

	for i := 0; i < a.FrameCount(); i++ {
		c.RequestFrame(i)
	}
	settle(t, c)

	for i := 0; i < a.FrameCount(); i++ {
		direct, err := a.Frame(i)
		if err != nil {
			continue
		}
		m, ok := c.RequestFrame(i)
		require.True(t, ok, "frame %d not resident", i)
		require.NotNil(t, m)
		require.Equal(t, direct.Bounds(), m.Bounds())
	}
}

func TestIdempotentRequest(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(10)
	src.block = make(chan struct{})
	c := framecache.New(src, framecache.WithOptimalSize(3))
	defer c.Close()
	defer close(src.block)

	m1, ok1 := c.RequestFrame(4)
	inFlight := c.InFlight()
	m2, ok2 := c.RequestFrame(4)

	require.False(t, ok1)
	require.Equal(t, ok1, ok2)
	require.Equal(t, m1, m2)
	require.Equal(t, []int{4, 5, 6}, inFlight)
	require.Equal(t, inFlight, c.InFlight())
}

func TestAtMostOneInFlight(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(30)
	c := framecache.New(src, framecache.WithOptimalSize(6), framecache.WithWorkers(4))
	defer c.Close()

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		c.RequestFrame(r.Intn(30))
		if i%10 == 0 {
			c.OnMemoryPressure()
		}
	}
	settle(t, c)

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Equal(t, 1, src.maxActive)
}

func TestProductionOrder(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(10)
	c := framecache.New(src, framecache.WithOptimalSize(4))
	defer c.Close()

	c.RequestFrame(8)
	settle(t, c)

	// 0 is the poster and is never produced
	require.Equal(t, []int{8, 9, 1}, src.Calls())
	require.Equal(t, []int{0, 1, 8, 9}, c.Cached())
}

func TestMemoryPressureHalves(t *testing.T) {
	src := newFakeSource(100)
	c := framecache.New(src, framecache.WithOptimalSize(9))
	defer c.Close()

	require.Equal(t, 9, c.MaxWindowSize())
	for _, expected := range []int{4, 2, 1, 1} {
		c.OnMemoryPressure()
		c.Pump()
		require.Equal(t, expected, c.MaxWindowSize())
		require.Equal(t, expected, c.CurrentWindowSize())
	}
	require.Equal(t, int64(4), c.Stats().PressureEvents)
}

func TestGrowthRateLimited(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := timing.NewManualClock(start)
	src := newFakeSource(100)
	c := framecache.New(src,
		framecache.WithOptimalSize(8),
		framecache.WithClock(clock),
		framecache.WithRand(rand.New(rand.NewSource(42))),
	)
	defer c.Close()

	require.True(t, c.LastPressure().IsZero())
	c.OnMemoryPressure()
	c.Pump()
	require.Equal(t, 4, c.MaxWindowSize())
	require.Equal(t, start, c.LastPressure().Time())

	// no growth within the minimum cooldown
	for i, d := range []time.Duration{time.Millisecond, time.Second, 2 * time.Second, 4900 * time.Millisecond} {
		clock.Advance(d - (clock.Now().Sub(start)))
		c.RequestFrame(i + 1)
		require.Equal(t, 4, c.MaxWindowSize(), "grew after %s", d)
	}

	// free growth after the maximum cooldown
	clock.Advance(10*time.Second + time.Millisecond - clock.Now().Sub(start))
	c.RequestFrame(20)
	require.Equal(t, 5, c.MaxWindowSize())
	c.RequestFrame(21)
	require.Equal(t, 6, c.MaxWindowSize())

	// same index is not a new request
	c.RequestFrame(21)
	require.Equal(t, 6, c.MaxWindowSize())

	// never past the optimal size
	for i := 22; i < 40; i++ {
		c.RequestFrame(i)
	}
	require.Equal(t, 8, c.MaxWindowSize())
}

func TestLimitedPolicy(t *testing.T) {
	src := newFakeSource(20)
	c := framecache.New(src, framecache.WithPolicy(framecache.Limited(3)))
	defer c.Close()

	require.Equal(t, 20, c.OptimalSize())
	require.Equal(t, 3, c.MaxWindowSize())
	require.Equal(t, 3, c.CurrentWindowSize())
}

func TestEvictionKeepsTargetWindow(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(20)
	c := framecache.New(src, framecache.WithOptimalSize(4))
	defer c.Close()

	c.RequestFrame(0)
	settle(t, c)
	require.Equal(t, []int{0, 1, 2, 3}, c.Cached())

	c.RequestFrame(10)
	settle(t, c)
	require.Equal(t, []int{0, 10, 11, 12, 13}, c.Cached())

	c.RequestFrame(18)
	settle(t, c)
	require.Equal(t, []int{0, 1, 18, 19}, c.Cached())
	require.True(t, c.Stats().Evictions > 0)
}

func TestDecodeFailureRetry(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(5)
	src.failures[2] = 1
	c := framecache.New(src)
	defer c.Close()

	_, ok := c.RequestFrame(2)
	require.False(t, ok)
	settle(t, c)
	require.NotContains(t, c.Cached(), 2)
	require.Equal(t, int64(1), c.Stats().DecodeFailures)

	// frames next to a failed one are not affected
	_, ok = c.RequestFrame(2)
	require.False(t, ok)
	settle(t, c)
	_, ok = c.RequestFrame(2)
	require.True(t, ok)
	_, ok = c.RequestFrame(3)
	require.True(t, ok)
}

func TestSetWindowCap(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(10)
	c := framecache.New(src)
	defer c.Close()

	c.RequestFrame(0)
	settle(t, c)
	require.Len(t, c.Cached(), 10)

	c.SetWindowCap(3)
	require.Equal(t, 3, c.CurrentWindowSize())
	require.Equal(t, []int{0, 1, 2}, c.Cached())

	c.SetWindowCap(0)
	require.Equal(t, 10, c.CurrentWindowSize())
	c.RequestFrame(1)
	settle(t, c)
	require.Len(t, c.Cached(), 10)
}

func TestRequestOutOfRange(t *testing.T) {
	b := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(b)

	src := newFakeSource(3)
	c := framecache.New(src, framecache.WithLogger(log))
	defer c.Close()

	for _, i := range []int{-1, 3, 100} {
		m, ok := c.RequestFrame(i)
		require.False(t, ok)
		require.Nil(t, m)
	}
	require.Contains(t, b.String(), "out of range")
	require.Empty(t, c.InFlight())
}

func TestPredraw(t *testing.T) {
	defer leakChecks(t)()

	a, err := gifsource.Load(giftest.Generate(t, giftest.Options{Width: 8, Height: 8, Delays: giftest.Frames(3, 10)}))
	require.NoError(t, err)
	c := framecache.New(a, framecache.WithPredraw(predraw.New(4, 4, predraw.QualityFast)))
	defer c.Close()

	m, ok := c.RequestFrame(0)
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 4, 4), m.Bounds())

	c.RequestFrame(1)
	settle(t, c)
	m, ok = c.RequestFrame(1)
	require.True(t, ok)
	require.IsType(t, &image.RGBA{}, m)
	require.Equal(t, image.Rect(0, 0, 4, 4), m.Bounds())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := newFakeSource(4)
	c := framecache.New(src, framecache.WithMetrics(reg))
	defer c.Close()

	c.RequestFrame(1)
	settle(t, c)
	c.RequestFrame(1)
	c.RequestFrame(0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, float64(2), values["gifcat_frame_cache_hits_total"])
	require.Equal(t, float64(1), values["gifcat_frame_cache_misses_total"])
	require.Equal(t, float64(3), values["gifcat_frame_cache_produced_total"])
	require.Equal(t, float64(4), values["gifcat_frame_cache_resident_frames"])

	s := c.Stats()
	require.Equal(t, int64(2), s.Hits)
	require.Equal(t, int64(1), s.Misses)
	require.InDelta(t, 2.0/3.0, s.HitRatio(), 0.001)
}

func TestNewMetrics(t *testing.T) {
	m := framecache.NewMetrics(prometheus.NewRegistry())
	m.Evictions.Add(3)
	require.Equal(t, float64(3), testutil.ToFloat64(m.Evictions))
}

func TestMemoryUsageObserver(t *testing.T) {
	src := newFakeSource(4)
	var usage int64
	c := framecache.New(src, framecache.WithObserver(framecache.ObserverFuncs{
		OnMemoryUsage: func(bytes int64) { usage = bytes },
	}))
	defer c.Close()

	c.RequestFrame(0)
	settle(t, c)
	require.Equal(t, int64(2*2*4*4), usage)
	require.Equal(t, usage, c.MemoryUsage())
}

func TestCloseDropsResults(t *testing.T) {
	defer leakChecks(t)()

	src := newFakeSource(10)
	src.block = make(chan struct{})
	called := false
	c := framecache.New(src, framecache.WithObserver(framecache.ObserverFuncs{
		OnCachedFramesChanged: func([]int) { called = true },
	}))
	c.RequestFrame(0)
	close(src.block)
	c.Close()

	require.Equal(t, 0, c.Pump())
	_, ok := c.RequestFrame(1)
	require.False(t, ok)
	require.False(t, called)
}
