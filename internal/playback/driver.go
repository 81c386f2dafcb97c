// Package playback advances a frame cursor in real time according to a
// per-frame delay table and loop count.
package playback

import (
	"image"
	"time"

	"github.com/wader/gifcat/internal/gifsource"
	"github.com/wader/gifcat/internal/logging"
	"github.com/wader/gifcat/internal/timing"
)

// MaxFPS is the highest tick rate asked for
const MaxFPS = 60

// Asset is the timing side of an animation, *gifsource.Asset implements it
type Asset interface {
	FrameCount() int
	Delay(index int) time.Duration
	LoopCount() gifsource.LoopCount
	Poster() image.Image
	DelayGCD() time.Duration
}

// FrameRequester returns the frame at index if available without blocking,
// *framecache.Cache implements it
type FrameRequester interface {
	RequestFrame(index int) (image.Image, bool)
}

type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Visibility of the output. Playback only runs while observable.
type Visibility struct {
	Attached bool
	Hidden   bool
	Width    int
	Height   int
}

func (v Visibility) Observable() bool {
	return v.Attached && !v.Hidden && v.Width > 0 && v.Height > 0
}

// Option configures a Driver
type Option func(*Driver)

// WithOnLoopCompleted is called after each completed loop with the counter
// after the loop was counted
func WithOnLoopCompleted(fn func(LoopCounter)) Option {
	return func(d *Driver) { d.onLoopCompleted = fn }
}

// WithOnWaiting is called on each tick the current frame is not available,
// waited is for how long it has been missing
func WithOnWaiting(fn func(index int, waited time.Duration)) Option {
	return func(d *Driver) { d.onWaiting = fn }
}

// WithLoopCount overrides the loop count of attached assets, LoopInfinite
// loops forever. Without it the asset loop count is used.
func WithLoopCount(lc gifsource.LoopCount) Option {
	return func(d *Driver) {
		d.loopOverride = &lc
	}
}

func WithLogger(l logging.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver is not safe for concurrent use, it is owned by the consumer goroutine
type Driver struct {
	onLoopCompleted func(LoopCounter)
	onWaiting       func(index int, waited time.Duration)
	loopOverride    *gifsource.LoopCount
	log             logging.Logger

	asset       Asset
	frames      FrameRequester
	visibility  Visibility
	state       State
	index       int
	accumulator time.Duration
	loops       LoopCounter
	frame       image.Image
	displayOwed bool
	redraw      bool
	waited      time.Duration
}

func New(opts ...Option) *Driver {
	d := &Driver{}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrNop(d.log)
	return d
}

// Attach resets playback to the start of asset and stops. A nil asset
// detaches.
func (d *Driver) Attach(asset Asset, frames FrameRequester) {
	d.state = Stopped
	d.index = 0
	d.accumulator = 0
	d.waited = 0
	d.displayOwed = false

	if asset == nil || frames == nil {
		d.asset = nil
		d.frames = nil
		d.frame = nil
		d.loops = NewLoopCounter(gifsource.LoopInfinite)
		d.redraw = false
		return
	}

	d.asset = asset
	d.frames = frames
	lc := asset.LoopCount()
	if d.loopOverride != nil {
		lc = *d.loopOverride
	}
	d.loops = NewLoopCounter(lc)
	d.frame = asset.Poster()
	d.redraw = true
}

// SetVisibility updates visibility and starts or stops playback to match
func (d *Driver) SetVisibility(v Visibility) {
	d.visibility = v
	d.AnimateIfNeeded()
}

// AnimateIfNeeded plays while attached and observable, stops otherwise
func (d *Driver) AnimateIfNeeded() {
	if d.asset != nil && d.visibility.Observable() {
		d.Start()
	} else {
		d.Stop()
	}
}

// Start playing. No-op if already playing, detached, not observable or all
// loops are done.
func (d *Driver) Start() {
	if d.state == Playing || d.asset == nil || !d.visibility.Observable() || d.loops.Finished() {
		return
	}
	d.state = Playing
}

func (d *Driver) Stop() { d.state = Stopped }

// Tick advances playback by elapsed real time
func (d *Driver) Tick(elapsed time.Duration) {
	if d.state != Playing || d.asset == nil {
		return
	}

	m, ok := d.frames.RequestFrame(d.index)
	if !ok {
		// hold the cursor and the time debt until the frame has been shown
		d.displayOwed = true
		d.waited += elapsed
		if d.onWaiting != nil {
			d.onWaiting(d.index, d.waited)
		}
		return
	}
	d.waited = 0
	d.frame = m
	if d.displayOwed {
		d.redraw = true
		d.displayOwed = false
	}

	d.accumulator += elapsed
	frameCount := d.asset.FrameCount()
	for {
		delay := d.asset.Delay(d.index)
		if d.accumulator < delay {
			break
		}
		d.accumulator -= delay
		d.index = (d.index + 1) % frameCount

		if d.index == 0 {
			d.loops.Complete()
			if d.onLoopCompleted != nil {
				d.onLoopCompleted(d.loops)
			}
			if d.loops.Finished() {
				d.log.Debugf("playback: all loops done")
				d.state = Stopped
				d.displayOwed = true
				return
			}
		}
		d.displayOwed = true
	}
}

// TakeRedraw returns the frame to show if it changed since the last call
func (d *Driver) TakeRedraw() (image.Image, bool) {
	if !d.redraw || d.frame == nil {
		return nil, false
	}
	d.redraw = false
	return d.frame, true
}

// Frame is the last frame that was available
func (d *Driver) Frame() image.Image { return d.frame }

func (d *Driver) CurrentIndex() int { return d.index }

func (d *Driver) State() State { return d.state }

func (d *Driver) Loops() LoopCounter { return d.loops }

// Accumulator is the time debt not yet turned into frame advances
func (d *Driver) Accumulator() time.Duration { return d.accumulator }

// TickInterval is how often Tick needs to be called to not miss any frame
// boundary of the attached asset
func (d *Driver) TickInterval() time.Duration {
	return TickInterval(d.asset)
}

// TickInterval for asset, 1/MaxFPS if asset is nil
func TickInterval(asset Asset) time.Duration {
	if asset == nil {
		return time.Second / MaxFPS
	}
	fps := timing.PreferredFPS(asset.DelayGCD(), MaxFPS)
	return time.Second / time.Duration(fps)
}
