// Package gifsource loads an animated image once and gives indexed access to
// its frames, per-frame delays and loop count.
package gifsource

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/h2non/filetype"
	"github.com/wader/gifcat/internal/logging"
	"github.com/wader/gifcat/internal/timing"
)

const (
	// MinimumFrameDelay shortest delay honored, shorter delays get DefaultFrameDelay
	MinimumFrameDelay = 20 * time.Millisecond
	// DefaultFrameDelay used for frames without a usable delay
	DefaultFrameDelay = 100 * time.Millisecond

	// delays are compared with some slack as they often come from float math
	delayEpsilon = time.Microsecond
)

// PosterIndex is the index of the frame that always stays resident
const PosterIndex = 0

// Option configures Load
type Option func(*loadOptions)

type loadOptions struct {
	decoder Decoder
	log     logging.Logger
}

// WithDecoder uses d instead of GIFDecoder
func WithDecoder(d Decoder) Option {
	return func(o *loadOptions) { o.decoder = d }
}

// WithLogger logs load progress and skipped frames to l
func WithLogger(l logging.Logger) Option {
	return func(o *loadOptions) { o.log = l }
}

// Asset is an immutable decoded animation
type Asset struct {
	container     Container
	width         int
	height        int
	delays        []time.Duration
	loopCount     LoopCount
	poster        image.Image
	skippedFrames int
}

// ResolveDelay picks the delay for a frame. prev is the resolved delay of the
// previous frame or 0 for the first frame.
func ResolveDelay(fp FrameProperties, prev time.Duration) time.Duration {
	var d time.Duration
	switch {
	case fp.UnclampedDelay > 0:
		d = fp.UnclampedDelay
	case fp.Delay > 0:
		d = fp.Delay
	case prev > 0:
		d = prev
	default:
		d = DefaultFrameDelay
	}
	if d < MinimumFrameDelay-delayEpsilon {
		d = DefaultFrameDelay
	}
	return d
}

// Load decodes data and builds an Asset. The container is kept for frame
// access during the asset lifetime.
func Load(data []byte, opts ...Option) (*Asset, error) {
	o := loadOptions{decoder: GIFDecoder{}}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.log)

	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	kind, _ := filetype.Match(data)
	if kind.Extension != "gif" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind.MIME.Value)
	}

	c, err := o.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptData, err)
	}
	p := c.Properties()
	if p.FrameCount <= 0 {
		return nil, fmt.Errorf("%w: no frames", ErrCorruptData)
	}

	a := &Asset{
		container: c,
		width:     p.Width,
		height:    p.Height,
		delays:    make([]time.Duration, p.FrameCount),
		loopCount: LoopCount(p.LoopCount),
	}
	if a.loopCount < 0 {
		a.loopCount = LoopInfinite
	}

	var prev time.Duration
	for i := 0; i < p.FrameCount; i++ {
		var fp FrameProperties
		if i < len(p.Frames) {
			fp = p.Frames[i]
		}
		prev = ResolveDelay(fp, prev)
		a.delays[i] = prev

		m, err := c.Image(i)
		if err != nil {
			if i == PosterIndex {
				return nil, fmt.Errorf("%w: first frame: %s", ErrCorruptData, err)
			}
			log.Warnf("skipping frame %d: %s", i, err)
			a.skippedFrames++
			continue
		}
		if i == PosterIndex {
			a.poster = m
			if a.width == 0 || a.height == 0 {
				b := m.Bounds()
				a.width, a.height = b.Dx(), b.Dy()
			}
		}
	}

	if p.FrameCount == 1 {
		log.Infof("single frame image, nothing to animate")
	}
	log.Debugf("loaded %dx%d frames=%d skipped=%d loops=%s duration=%s",
		a.width, a.height, p.FrameCount, a.skippedFrames, a.loopCount, a.Duration())

	return a, nil
}

// LoadFile reads path and loads it
func LoadFile(path string, opts ...Option) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data, opts...)
}

func (a *Asset) FrameCount() int { return len(a.delays) }

// Delay of frame i, i must be in range
func (a *Asset) Delay(i int) time.Duration { return a.delays[i] }

// Delays returns a copy of the delay table
func (a *Asset) Delays() []time.Duration {
	ds := make([]time.Duration, len(a.delays))
	copy(ds, a.delays)
	return ds
}

func (a *Asset) LoopCount() LoopCount { return a.loopCount }
func (a *Asset) Poster() image.Image  { return a.poster }
func (a *Asset) PosterIndex() int     { return PosterIndex }
func (a *Asset) Width() int           { return a.width }
func (a *Asset) Height() int          { return a.height }
func (a *Asset) BytesPerRow() int     { return a.width * 4 }
func (a *Asset) SkippedFrames() int   { return a.skippedFrames }

// EstimatedSize is bytes needed to keep all decodable frames resident
func (a *Asset) EstimatedSize() int64 {
	return int64(a.BytesPerRow()) * int64(a.height) * int64(len(a.delays)-a.skippedFrames)
}

// Duration of one loop
func (a *Asset) Duration() time.Duration {
	var d time.Duration
	for _, fd := range a.delays {
		d += fd
	}
	return d
}

// DelayGCD is the coarsest tick interval that still hits every frame boundary
func (a *Asset) DelayGCD() time.Duration {
	return timing.DurationGCD(a.delays, timing.PrecisionFor(MinimumFrameDelay))
}

// Frame decodes frame i
func (a *Asset) Frame(i int) (image.Image, error) {
	if i < 0 || i >= len(a.delays) {
		return nil, &IndexError{Index: i, Count: len(a.delays)}
	}
	m, err := a.container.Image(i)
	if err != nil {
		var ie *IndexError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, &FrameDecodeError{Index: i, Err: err}
	}
	return m, nil
}
