// Package rlog implements netreactor.Logger on top of logiface, using
// stumpy as the JSON encoding backend.
package rlog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger wraps a logiface.Logger[*stumpy.Event], exposing the fixed
// five-severity contract netreactor.Logger requires.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New builds a Logger writing newline-delimited JSON to w (defaulting
// to os.Stderr when w is nil).
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		l: stumpy.L.New(
			stumpy.L.WithStumpy(
				stumpy.WithWriter(w),
			),
			// All five contractual severities must reach the sink,
			// including Debug, which logiface filters out by default.
			stumpy.L.WithLevel(logiface.LevelDebug),
		),
	}
}

func fields(b *logiface.Builder[*stumpy.Event], kv []any) *logiface.Builder[*stumpy.Event] {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b = b.Any(key, kv[i+1])
	}
	return b
}

// Debug implements netreactor.Logger, mapped onto logiface's
// LevelDebug.
func (x *Logger) Debug(msg string, kv ...any) {
	fields(x.l.Debug(), kv).Log(msg)
}

// Info implements netreactor.Logger, mapped onto logiface's
// LevelInformational.
func (x *Logger) Info(msg string, kv ...any) {
	fields(x.l.Info(), kv).Log(msg)
}

// Notice implements netreactor.Logger, mapped onto logiface's
// LevelNotice.
func (x *Logger) Notice(msg string, kv ...any) {
	fields(x.l.Notice(), kv).Log(msg)
}

// Err implements netreactor.Logger, mapped onto logiface's LevelError.
func (x *Logger) Err(msg string, kv ...any) {
	fields(x.l.Err(), kv).Log(msg)
}

// Fatal implements netreactor.Logger, mapped onto logiface's
// LevelAlert (logiface reserves LevelFatal for os.Exit semantics this
// package does not want a logging call to trigger implicitly).
func (x *Logger) Fatal(msg string, kv ...any) {
	fields(x.l.Alert(), kv).Log(msg)
}
