package gifsource

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/image/draw"
)

// DefaultCanvasCacheSize number of composited canvases kept per container
const DefaultCanvasCacheSize = 8

// gif delays are in 1/100s, a delay of 0 or 1 is shown by browsers as 100ms
const (
	gifDelayUnit       = 10 * time.Millisecond
	gifClampedMinDelay = 1
	gifClampedDelay    = 100 * time.Millisecond
)

// GIFDecoder decodes with image/gif and composites frames according to their
// disposal method
type GIFDecoder struct {
	// CanvasCacheSize is how many canvases to keep for random access, 0 uses
	// DefaultCanvasCacheSize
	CanvasCacheSize int
}

func (d GIFDecoder) Decode(data []byte) (Container, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("no frames")
	}

	size := d.CanvasCacheSize
	if size <= 0 {
		size = DefaultCanvasCacheSize
	}
	canvases, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	width, height := g.Config.Width, g.Config.Height
	// some encoders leave out the logical screen size
	if width == 0 || height == 0 {
		b := image.Rectangle{}
		for _, m := range g.Image {
			b = b.Union(m.Bounds())
		}
		width, height = b.Max.X, b.Max.Y
	}

	return &gifContainer{
		g:        g,
		bounds:   image.Rect(0, 0, width, height),
		canvases: canvases,
	}, nil
}

type gifContainer struct {
	g      *gif.GIF
	bounds image.Rectangle

	mu sync.Mutex
	// canvases maps frame index to canvas state before that frame is drawn
	canvases *lru.Cache
}

func loopCountFromGIF(n int) int {
	switch {
	case n == 0:
		return 0
	case n < 0:
		return 1
	default:
		return n
	}
}

func (c *gifContainer) Properties() Properties {
	p := Properties{
		Width:      c.bounds.Dx(),
		Height:     c.bounds.Dy(),
		FrameCount: len(c.g.Image),
		LoopCount:  loopCountFromGIF(c.g.LoopCount),
		Frames:     make([]FrameProperties, len(c.g.Image)),
	}
	for i := range c.g.Image {
		if i >= len(c.g.Delay) {
			continue
		}
		raw := c.g.Delay[i]
		fp := FrameProperties{UnclampedDelay: time.Duration(raw) * gifDelayUnit}
		switch {
		case raw <= 0:
		case raw <= gifClampedMinDelay:
			fp.Delay = gifClampedDelay
		default:
			fp.Delay = fp.UnclampedDelay
		}
		p.Frames[i] = fp
	}
	return p
}

func (c *gifContainer) disposal(i int) byte {
	if i < len(c.g.Disposal) {
		return c.g.Disposal[i]
	}
	return 0
}

func cloneRGBA(m *image.RGBA) *image.RGBA {
	n := image.NewRGBA(m.Rect)
	copy(n.Pix, m.Pix)
	return n
}

// drawFrame composites frame i onto canvas and returns the canvas state the
// next frame starts from
func (c *gifContainer) drawFrame(i int, canvas *image.RGBA) (composited *image.RGBA, next *image.RGBA) {
	frame := c.g.Image[i]
	var before *image.RGBA
	if c.disposal(i) == gif.DisposalPrevious {
		before = cloneRGBA(canvas)
	}

	draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
	composited = cloneRGBA(canvas)

	switch c.disposal(i) {
	case gif.DisposalBackground:
		draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		canvas = before
	}

	return composited, canvas
}

func (c *gifContainer) Image(index int) (image.Image, error) {
	if index < 0 || index >= len(c.g.Image) {
		return nil, &IndexError{Index: index, Count: len(c.g.Image)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// replay from the closest earlier canvas, frame 0 starts from blank
	start := 0
	canvas := image.NewRGBA(c.bounds)
	for j := index; j > 0; j-- {
		if v, ok := c.canvases.Get(j); ok {
			start = j
			canvas = cloneRGBA(v.(*image.RGBA))
			break
		}
	}

	var composited *image.RGBA
	for j := start; j <= index; j++ {
		composited, canvas = c.drawFrame(j, canvas)
		if j+1 < len(c.g.Image) {
			c.canvases.Add(j+1, cloneRGBA(canvas))
		}
	}

	return composited, nil
}
