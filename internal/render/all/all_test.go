package all_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wader/gifcat/internal/render"
	"github.com/wader/gifcat/internal/render/all"
)

func TestFind(t *testing.T) {
	if ns := all.Names(); !reflect.DeepEqual(ns, []string{"iterm2", "ansi"}) {
		t.Errorf("unexpected names %v", ns)
	}

	r, err := all.Find("ansi", render.Terminal{})
	if err != nil {
		t.Fatal(err)
	}
	if r.String() != "ansi" {
		t.Errorf("expected ansi, got %s", r)
	}

	if _, err := all.Find("sixel", render.Terminal{}); !errors.Is(err, all.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	// no terminal to query
	if _, err := all.Find(all.Auto, render.Terminal{}); !errors.Is(err, all.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
