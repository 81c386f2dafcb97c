// Package ansi draws frames with upper half block characters, one character
// cell per two pixels.
package ansi

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wader/gifcat/internal/render"
	"golang.org/x/term"
)

const halfBlock = "▀"

type Render struct{}

func (Render) String() string { return "ansi" }

func (Render) CanHandle(t render.Terminal) bool {
	return t.In != nil && term.IsTerminal(int(t.In.Fd()))
}

func (Render) Output(t render.Terminal, statusRows int) (render.Output, error) {
	cols, rows, err := term.GetSize(int(t.In.Fd()))
	if err != nil {
		return nil, err
	}
	rows -= statusRows
	if rows < 1 {
		rows = 1
	}
	return NewOutput(t.Out, render.Resolution{
		Width:       cols,
		Height:      rows * 2,
		WidthAlign:  1,
		HeightAlign: 2,
	}), nil
}

type Output struct {
	w    io.Writer
	r    *lipgloss.Renderer
	res  render.Resolution
	rows int
}

func NewOutput(w io.Writer, res render.Resolution) *Output {
	return &Output{
		w:   w,
		r:   lipgloss.NewRenderer(w),
		res: res,
	}
}

func (o *Output) String() string                { return "ansi" }
func (o *Output) Resolution() render.Resolution { return o.res }

func hex(c color.Color) lipgloss.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B))
}

// Lines renders m as rows of half blocks, top pixel as foreground and bottom
// pixel as background
func (o *Output) Lines(m image.Image) []string {
	b := m.Bounds()
	cells := map[[2]lipgloss.Color]string{}
	var lines []string
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		sb := &strings.Builder{}
		for x := b.Min.X; x < b.Max.X; x++ {
			k := [2]lipgloss.Color{hex(m.At(x, y))}
			if y+1 < b.Max.Y {
				k[1] = hex(m.At(x, y+1))
			}
			cell, ok := cells[k]
			if !ok {
				s := o.r.NewStyle().Foreground(k[0])
				if k[1] != "" {
					s = s.Background(k[1])
				}
				cell = s.Render(halfBlock)
				cells[k] = cell
			}
			sb.WriteString(cell)
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func (o *Output) Draw(m image.Image, status string) error {
	if o.rows > 0 {
		if err := render.Rewind(o.w, o.rows); err != nil {
			return err
		}
	}

	lines := o.Lines(m)
	for _, l := range lines {
		if _, err := io.WriteString(o.w, l+"\n"); err != nil {
			return err
		}
	}
	rows := len(lines)

	if status != "" {
		if err := render.StatusLine(o.w, status); err != nil {
			return err
		}
		rows++
	}
	o.rows = rows

	return nil
}

func (o *Output) Close() error {
	o.rows = 0
	return nil
}
