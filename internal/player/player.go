// Package player plays an asset on a render output. The goroutine calling
// Run owns the playback driver and the frame cache, display link ticks and
// memory pressure are marshalled onto it.
package player

import (
	"context"
	"image"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/wader/gifcat/internal/framecache"
	"github.com/wader/gifcat/internal/gifsource"
	"github.com/wader/gifcat/internal/memwatch"
	"github.com/wader/gifcat/internal/playback"
	"github.com/wader/gifcat/internal/predraw"
	"github.com/wader/gifcat/internal/render"
	"go.uber.org/atomic"
)

type Option func(*Player)

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Player) { p.log = l }
}

// WithCacheOptions are passed on to the frame cache
func WithCacheOptions(opts ...framecache.Option) Option {
	return func(p *Player) { p.cacheOpts = append(p.cacheOpts, opts...) }
}

// WithPredraw scales frames on the cache workers, otherwise frames are scaled
// when drawn
func WithPredraw(enabled bool, q predraw.Quality) Option {
	return func(p *Player) {
		p.predraw = enabled
		p.quality = q
	}
}

// WithMemoryLimit signals memory pressure to the cache when heap in use goes
// over limit bytes, 0 disables
func WithMemoryLimit(limit uint64, interval time.Duration) Option {
	return func(p *Player) {
		p.memLimit = limit
		p.memInterval = interval
	}
}

// WithMemorySampler replaces the heap sampler used for the memory limit
func WithMemorySampler(s memwatch.Sampler) Option {
	return func(p *Player) { p.memSampler = s }
}

// WithMetrics registers cache metrics with reg labeled with the session id
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Player) { p.reg = reg }
}

func WithLoopCount(lc gifsource.LoopCount) Option {
	return func(p *Player) { p.driverOpts = append(p.driverOpts, playback.WithLoopCount(lc)) }
}

// WithStatus draws a status line below the frame
func WithStatus(enabled bool) Option {
	return func(p *Player) { p.status = enabled }
}

// WithDisplayLink uses l instead of creating one, l is not closed by the player
func WithDisplayLink(l *playback.DisplayLink) Option {
	return func(p *Player) { p.link = l }
}

type Player struct {
	id          string
	log         logrus.FieldLogger
	asset       *gifsource.Asset
	out         render.Output
	cacheOpts   []framecache.Option
	driverOpts  []playback.Option
	predraw     bool
	quality     predraw.Quality
	memLimit    uint64
	memInterval time.Duration
	memSampler  memwatch.Sampler
	reg         prometheus.Registerer
	status      bool
	link        *playback.DisplayLink
	ownLink     bool

	cache  *framecache.Cache
	driver *playback.Driver
	fit    predraw.Func

	// written by the display link goroutine
	pending atomic.Duration
	tickC   chan struct{}

	// consumer goroutine only
	cached    []int
	requested int
	memUsage  int64
	waiting   bool
	draws     int
}

// sizedAsset shows the poster already fitted to the output
type sizedAsset struct {
	*gifsource.Asset
	poster image.Image
}

func (a sizedAsset) Poster() image.Image { return a.poster }

func New(asset *gifsource.Asset, out render.Output, opts ...Option) *Player {
	p := &Player{
		id:      uuid.New().String(),
		asset:   asset,
		out:     out,
		quality: predraw.QualityFast,
		tickC:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.log = l
	}
	p.log = p.log.WithField("session", p.id)

	res := out.Resolution()
	p.fit = predraw.New(res.Width, res.Height, p.quality)

	cacheOpts := []framecache.Option{
		framecache.WithLogger(p.log),
		framecache.WithObserver(framecache.ObserverFuncs{
			OnCachedFramesChanged: func(cached []int) { p.cached = cached },
			OnFrameRequested:      func(index int) { p.requested = index },
			OnMemoryUsage:         func(bytes int64) { p.memUsage = bytes },
		}),
	}
	if p.predraw {
		cacheOpts = append(cacheOpts, framecache.WithPredraw(p.fit))
	}
	if p.reg != nil {
		cacheOpts = append(cacheOpts, framecache.WithMetrics(
			prometheus.WrapRegistererWith(prometheus.Labels{"session": p.id}, p.reg)))
	}
	p.cache = framecache.New(asset, append(cacheOpts, p.cacheOpts...)...)
	p.cached = p.cache.Cached()
	p.memUsage = p.cache.MemoryUsage()

	driverOpts := []playback.Option{
		playback.WithLogger(p.log),
		playback.WithOnWaiting(func(index int, waited time.Duration) {
			if !p.waiting {
				p.log.Debugf("player: waiting for frame %d", index)
			}
			p.waiting = true
		}),
		playback.WithOnLoopCompleted(func(lc playback.LoopCounter) {
			p.log.Debugf("player: loop completed, remaining %s", lc)
		}),
	}
	p.driver = playback.New(append(driverOpts, p.driverOpts...)...)

	if p.link == nil {
		p.link = playback.NewDisplayLink()
		p.ownLink = true
	}

	return p
}

// ID is the session id used in logs and metric labels
func (p *Player) ID() string { return p.id }

// Cache must only be used from the goroutine calling Run or after Run
// returned
func (p *Player) Cache() *framecache.Cache { return p.cache }

func (p *Player) Driver() *playback.Driver { return p.driver }

// Draws is number of frames drawn
func (p *Player) Draws() int { return p.draws }

func (p *Player) onTick(elapsed time.Duration) {
	p.pending.Add(elapsed)
	select {
	case p.tickC <- struct{}{}:
	default:
	}
}

func (p *Player) draw(m image.Image) error {
	if !p.predraw {
		m = p.fit(m)
	}
	p.draws++
	status := ""
	if p.status {
		status = p.statusLine()
	}
	return p.out.Draw(m, status)
}

// Run plays until all loops are done, ctx is done or drawing fails. The
// cache and display link are closed when it returns.
func (p *Player) Run(ctx context.Context) error {
	defer func() {
		if p.ownLink {
			p.link.Close()
		}
		p.cache.Close()
	}()

	wctx, wcancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		wcancel()
		wg.Wait()
	}()
	if p.memLimit > 0 {
		w := &memwatch.Watcher{
			Limit:    p.memLimit,
			Interval: p.memInterval,
			Sampler:  p.memSampler,
			Log:      p.log,
		}
		w.OnPressure(p.cache.OnMemoryPressure)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(wctx)
		}()
	}

	res := p.out.Resolution()
	poster := p.fit(p.asset.Poster())
	p.driver.Attach(sizedAsset{Asset: p.asset, poster: poster}, p.cache)
	p.driver.SetVisibility(playback.Visibility{
		Attached: true,
		Width:    res.Width,
		Height:   res.Height,
	})
	p.log.Debugf("player: %dx%d frames=%d loops=%s tick=%s",
		p.asset.Width(), p.asset.Height(), p.asset.FrameCount(), p.driver.Loops(), p.driver.TickInterval())

	h := p.link.Add(p.onTick)
	defer p.link.Remove(h)
	p.link.SetInterval(p.driver.TickInterval())

	if m, ok := p.driver.TakeRedraw(); ok {
		if err := p.draw(m); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.cache.Ready():
			p.cache.Pump()
		case <-p.tickC:
			p.driver.Tick(p.pending.Swap(0))
			if m, ok := p.driver.TakeRedraw(); ok {
				p.waiting = false
				if err := p.draw(m); err != nil {
					return err
				}
			}
			if p.driver.State() == playback.Stopped {
				p.link.SetPaused(h, true)
				if p.driver.Loops().Finished() {
					p.log.Debugf("player: done, %+v", p.cache.Stats())
					return nil
				}
			}
		}
	}
}
