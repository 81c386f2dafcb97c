package all

import (
	"errors"
	"fmt"

	"github.com/wader/gifcat/internal/render"
	"github.com/wader/gifcat/internal/render/ansi"
	"github.com/wader/gifcat/internal/render/iterm2"
)

// Auto picks the first renderer that can handle the terminal
const Auto = "auto"

var ErrNotFound = errors.New("no renderer")

// Renderers in order of preference
var Renderers = []render.Render{
	iterm2.Render{},
	ansi.Render{},
}

func Names() []string {
	var ns []string
	for _, r := range Renderers {
		ns = append(ns, r.String())
	}
	return ns
}

// Find renderer by name or Auto
func Find(name string, t render.Terminal) (render.Render, error) {
	if name == "" || name == Auto {
		for _, r := range Renderers {
			if r.CanHandle(t) {
				return r, nil
			}
		}
		return nil, fmt.Errorf("%w: terminal not supported", ErrNotFound)
	}
	for _, r := range Renderers {
		if r.String() == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}
