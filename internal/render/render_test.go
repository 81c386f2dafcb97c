package render_test

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/wader/gifcat/internal/render"
)

func TestAlign(t *testing.T) {
	r := render.Resolution{WidthAlign: 6, HeightAlign: 14}
	testCases := []struct {
		w, h           int
		expectedW      int
		expectedH      int
		expectedHeight int
	}{
		{w: 100, h: 100, expectedW: 96, expectedH: 98, expectedHeight: 8},
		{w: 3, h: 5, expectedW: 6, expectedH: 14, expectedHeight: 1},
		{w: 12, h: 28, expectedW: 12, expectedH: 28, expectedHeight: 2},
	}
	for i, tC := range testCases {
		tC := tC
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			w, h := r.Align(tC.w, tC.h)
			if w != tC.expectedW || h != tC.expectedH {
				t.Errorf("expected %dx%d, got %dx%d", tC.expectedW, tC.expectedH, w, h)
			}
			if rows := r.Rows(tC.h); rows != tC.expectedHeight {
				t.Errorf("expected %d rows, got %d", tC.expectedHeight, rows)
			}
		})
	}
}

func TestRewind(t *testing.T) {
	b := &bytes.Buffer{}
	if err := render.Rewind(b, 3); err != nil {
		t.Fatal(err)
	}
	if err := render.Rewind(b, 0); err != nil {
		t.Fatal(err)
	}
	if err := render.StatusLine(b, "hi"); err != nil {
		t.Fatal(err)
	}
	if s := b.String(); s != "\x1b[3A\r\r\x1b[2Khi\n" {
		t.Errorf("unexpected %q", s)
	}
}
