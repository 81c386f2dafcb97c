// Package giftest generates small GIFs for tests
package giftest

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"testing"
)

// Options for Generate. Delays are in 1/100s and its length is the frame
// count.
type Options struct {
	Width     int
	Height    int
	Delays    []int
	LoopCount int // image/gif semantics, 0 forever, -1 play once
	Disposal  []byte
}

// FrameColor is the fill color used for frame i
func FrameColor(i int) color.Color {
	return palette.Plan9[(i*37+1)%len(palette.Plan9)]
}

// Generate encodes a GIF where frame i is filled with FrameColor(i)
func Generate(t testing.TB, o Options) []byte {
	t.Helper()
	if o.Width == 0 {
		o.Width = 4
	}
	if o.Height == 0 {
		o.Height = 4
	}

	g := &gif.GIF{LoopCount: o.LoopCount}
	for i, d := range o.Delays {
		m := image.NewPaletted(image.Rect(0, 0, o.Width, o.Height), palette.Plan9)
		ci := uint8(m.Palette.Index(FrameColor(i)))
		for j := range m.Pix {
			m.Pix[j] = ci
		}
		g.Image = append(g.Image, m)
		g.Delay = append(g.Delay, d)
		var disposal byte
		if i < len(o.Disposal) {
			disposal = o.Disposal[i]
		}
		g.Disposal = append(g.Disposal, disposal)
	}

	b := &bytes.Buffer{}
	if err := gif.EncodeAll(b, g); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

// Frames is a shorthand for n frames of delay 1/100s * delay
func Frames(n int, delay int) []int {
	ds := make([]int, n)
	for i := range ds {
		ds[i] = delay
	}
	return ds
}
