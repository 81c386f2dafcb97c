package render

import (
	"fmt"
	"image"
	"io"
	"os"
)

// Resolution in pixels of the area frames are drawn in. Frames should be
// sized in multiples of the align values to fill whole terminal cells.
type Resolution struct {
	Width       int
	Height      int
	WidthAlign  int
	HeightAlign int
}

// Align rounds w and h down to whole cells, never below one cell
func (r Resolution) Align(w, h int) (int, int) {
	if r.WidthAlign > 1 {
		w -= w % r.WidthAlign
		if w < r.WidthAlign {
			w = r.WidthAlign
		}
	}
	if r.HeightAlign > 1 {
		h -= h % r.HeightAlign
		if h < r.HeightAlign {
			h = r.HeightAlign
		}
	}
	return w, h
}

// Rows is how many terminal rows a frame h pixels high uses
func (r Resolution) Rows(h int) int {
	if r.HeightAlign <= 1 {
		return h
	}
	return (h + r.HeightAlign - 1) / r.HeightAlign
}

// Terminal frames are drawn on. In is used for size and capability queries.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

type Render interface {
	String() string
	// CanHandle reports if frames can be shown on t
	CanHandle(t Terminal) bool
	// Output draws on t leaving statusRows rows below the frame
	Output(t Terminal, statusRows int) (Output, error)
}

type Output interface {
	String() string
	Resolution() Resolution
	// Draw replaces the previously drawn frame and status line
	Draw(m image.Image, status string) error
	// Close leaves the cursor below the last drawn frame
	Close() error
}

// Rewind moves the cursor to the first column rows up
func Rewind(w io.Writer, rows int) error {
	if rows <= 0 {
		_, err := io.WriteString(w, "\r")
		return err
	}
	_, err := fmt.Fprintf(w, "\x1b[%dA\r", rows)
	return err
}

// StatusLine clears the current line and writes s followed by a newline
func StatusLine(w io.Writer, s string) error {
	_, err := fmt.Fprintf(w, "\x1b[2K%s\n", s)
	return err
}
