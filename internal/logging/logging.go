// Package logging has the logger interface used by the internal packages
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is something that logs with levels. *logrus.Logger and *logrus.Entry
// both implement it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Nop is discard logger
type Nop struct{}

func (Nop) Debugf(format string, args ...interface{}) {}
func (Nop) Infof(format string, args ...interface{})  {}
func (Nop) Warnf(format string, args ...interface{})  {}
func (Nop) Errorf(format string, args ...interface{}) {}

// New creates a logrus logger writing to w at level. Unknown levels fall back
// to info.
func New(w io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// OrNop returns l or Nop if l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
