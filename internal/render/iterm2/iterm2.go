package iterm2

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wader/gifcat/internal/render"
	"golang.org/x/term"
)

var ErrNoCellSize = errors.New("no cell size report")

// TODO: query somehow
func IsCompatible() bool {
	return os.Getenv("TERM_PROGRAM") == "iTerm.app"
}

// Image writes m as an inline image scaled to exactly width x height pixels
func Image(w io.Writer, m image.Image, width, height int) error {
	if _, err := fmt.Fprintf(w, "\x1b]1337;File=inline=1;width=%dpx;height=%dpx;preserveAspectRatio=0:", width, height); err != nil {
		return err
	}
	bw := base64.NewEncoder(base64.StdEncoding, w)
	if err := png.Encode(bw, m); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\x07")); err != nil {
		return err
	}
	return nil
}

type CellSize struct {
	Width  float64
	Height float64
	Scale  float64
}

// ParseCellSize parses a ReportCellSize response, note order is
// height;width[;scale]
func ParseCellSize(s string) (CellSize, error) {
	const p = "ReportCellSize="
	start := strings.Index(s, p)
	if start == -1 {
		return CellSize{}, ErrNoCellSize
	}
	s = s[start+len(p):]
	if stop := strings.IndexAny(s, "\x1b\x07"); stop != -1 {
		s = s[:stop]
	}

	parts := strings.Split(s, ";")
	sz := CellSize{Scale: 1}
	var err error
	if sz.Height, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return CellSize{}, fmt.Errorf("%w: %s", ErrNoCellSize, err)
	}
	if len(parts) > 1 {
		if sz.Width, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return CellSize{}, fmt.Errorf("%w: %s", ErrNoCellSize, err)
		}
	}
	if len(parts) > 2 {
		if sz.Scale, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return CellSize{}, fmt.Errorf("%w: %s", ErrNoCellSize, err)
		}
	}

	return sz, nil
}

func ReportCellSize(f *os.File) (sz CellSize, err error) {
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return CellSize{}, err
	}
	defer func() {
		if rErr := term.Restore(int(f.Fd()), state); err == nil {
			err = rErr
		}
	}()

	if _, err := f.Write([]byte("\x1b]1337;ReportCellSize\x07")); err != nil {
		return CellSize{}, err
	}

	// "\x1b]1337;ReportCellSize=14.0;6.0;1.0\x1b\\"
	b := make([]byte, 64)
	n, err := f.Read(b)
	if err != nil {
		return CellSize{}, err
	}

	return ParseCellSize(string(b[:n]))
}

// PixelResolution of the terminal behind f, cells times cell size
func PixelResolution(f *os.File) (render.Resolution, error) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return render.Resolution{}, err
	}
	sz, err := ReportCellSize(f)
	if err != nil {
		return render.Resolution{}, err
	}

	return render.Resolution{
		Width:       w * int(sz.Width*sz.Scale),
		Height:      h * int(sz.Height*sz.Scale),
		WidthAlign:  int(sz.Width * sz.Scale),
		HeightAlign: int(sz.Height * sz.Scale),
	}, nil
}

type Render struct{}

func (Render) String() string { return "iterm2" }

func (Render) CanHandle(t render.Terminal) bool {
	return IsCompatible() && t.In != nil && term.IsTerminal(int(t.In.Fd()))
}

func (Render) Output(t render.Terminal, statusRows int) (render.Output, error) {
	res, err := PixelResolution(t.In)
	if err != nil {
		return nil, err
	}
	res.Height -= statusRows * res.HeightAlign
	if res.Height < res.HeightAlign {
		res.Height = res.HeightAlign
	}
	return NewOutput(t.Out, res), nil
}

// Output redraws inline images in place
type Output struct {
	w    io.Writer
	res  render.Resolution
	rows int
}

func NewOutput(w io.Writer, res render.Resolution) *Output {
	return &Output{w: w, res: res}
}

func (o *Output) String() string                { return "iterm2" }
func (o *Output) Resolution() render.Resolution { return o.res }

func (o *Output) Draw(m image.Image, status string) error {
	if o.rows > 0 {
		if err := render.Rewind(o.w, o.rows); err != nil {
			return err
		}
	}

	b := m.Bounds()
	if err := Image(o.w, m, b.Dx(), b.Dy()); err != nil {
		return err
	}
	if _, err := io.WriteString(o.w, "\n"); err != nil {
		return err
	}
	rows := o.res.Rows(b.Dy())

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
