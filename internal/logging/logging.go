// Package logging provides the prefixed, verbosity-aware loggers shared by
// every FireSlurm component.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is a component logger. Printf always emits; Debugf only emits when
// the logger was created with a verbosity above zero.
type Logger struct {
	*log.Logger
	out       io.Writer
	verbosity int
}

// New creates a logger writing to w with a "[component] " prefix.
func New(w io.Writer, component string, verbosity int) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		Logger:    log.New(w, "["+component+"] ", log.LstdFlags|log.Lmsgprefix),
		out:       w,
		verbosity: verbosity,
	}
}

// Default returns a stderr logger for component with debug output disabled.
func Default(component string) *Logger {
	return New(os.Stderr, component, 0)
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "discard", 0)
}

// Named derives a logger for another component sharing the same sink and
// verbosity.
func (l *Logger) Named(component string) *Logger {
	return New(l.out, component, l.verbosity)
}

// Verbosity reports the level the logger was created with.
func (l *Logger) Verbosity() int {
	return l.verbosity
}

// Debugf logs only when verbose.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.verbosity <= 0 {
		return
	}
	l.Output(2, "debug: "+fmt.Sprintf(format, args...))
}

// Warnf logs a message flagged as a warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Output(2, "warning: "+fmt.Sprintf(format, args...))
}
