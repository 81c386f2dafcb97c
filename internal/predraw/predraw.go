// Package predraw converts decoded frames into display ready bitmaps so the
// playback goroutine only has to copy pixels.
package predraw

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Func turns a decoded frame into a display ready image
type Func func(image.Image) image.Image

// Quality of scaling
type Quality int

const (
	QualityFast Quality = iota
	QualityGood
)

func (q Quality) scaler() xdraw.Scaler {
	if q == QualityGood {
		return xdraw.CatmullRom
	}
	return xdraw.ApproxBiLinear
}

// ToRGBA returns m as an *image.RGBA with origin at 0,0, copying if needed
func ToRGBA(m image.Image) *image.RGBA {
	if r, ok := m.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) {
		return r
	}
	b := m.Bounds()
	r := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(r, r.Rect, m, b.Min, draw.Src)
	return r
}

// FitSize is the largest size with the aspect ratio of w*h that fits in
// maxW*maxH. Zero max dimensions are unconstrained.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	// compare w/h with maxW/maxH without floats
	if w*maxH > h*maxW {
		nh := h * maxW / w
		if nh < 1 {
			nh = 1
		}
		return maxW, nh
	}
	nw := w * maxH / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxH
}

// New returns a Func that converts frames to RGBA and downscales them to fit
// in maxW*maxH, zero means no limit.
func New(maxW, maxH int, q Quality) Func {
	return func(m image.Image) image.Image {
		b := m.Bounds()
		w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
		if w == b.Dx() && h == b.Dy() {
			return ToRGBA(m)
		}
		r := image.NewRGBA(image.Rect(0, 0, w, h))
		q.scaler().Scale(r, r.Rect, m, b, xdraw.Src, nil)
		return r
	}
}
