// Package pluginlog writes leveled log and progress records from a plugin
// process to the host over stderr, one framed line per record.
package pluginlog

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

// ErrInvalidProgress is returned for NaN progress values.
var ErrInvalidProgress = errors.New("progress value is NaN")

type flusher interface {
	Flush() error
}

// Logger encodes records onto a shared stream. It keeps no state between
// calls beyond the writer; every record goes out in a single Write followed
// by a flush, so concurrent callers never interleave within a line.
type Logger struct {
	w    io.Writer
	fail func(error)
}

// Option configures a Logger.
type Option func(*Logger)

// WithFailHandler replaces the handler invoked when the stream cannot be
// written. The default exits the process with status 1.
func WithFailHandler(fn func(error)) Option {
	return func(l *Logger) {
		l.fail = fn
	}
}

// New returns a Logger writing to w.
func New(w io.Writer, opts ...Option) *Logger {
	l := &Logger{w: w, fail: exitOnFailure}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stderr returns a Logger for the process's stderr.
func Stderr() *Logger {
	return New(os.Stderr)
}

// stderr is the broken stream, so there is nowhere left to report to.
func exitOnFailure(error) {
	os.Exit(1)
}

// Emit writes one record. Multi-line payloads are split into one frame per
// line. Emitting NoLevel is a no-op.
func (l *Logger) Emit(level protocol.Level, msg string) error {
	if level.Code() == "" {
		return nil
	}

	var buf []byte
	for line := range strings.SplitSeq(msg, "\n") {
		buf = protocol.AppendFrame(buf, level, strings.TrimSuffix(line, "\r"))
	}
	if _, err := l.w.Write(buf); err != nil {
		return fmt.Errorf("write log record: %w", err)
	}
	if f, ok := l.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush log record: %w", err)
		}
	}
	return nil
}

// EmitProgress writes a progress record. The fraction is clamped to [0, 1];
// NaN is rejected before anything is written.
func (l *Logger) EmitProgress(fraction float64) error {
	if math.IsNaN(fraction) {
		return ErrInvalidProgress
	}
	return l.Emit(protocol.ProgressLevel, FormatProgress(fraction))
}

// FormatProgress clamps and renders a progress fraction.
func FormatProgress(fraction float64) string {
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	return strconv.FormatFloat(fraction, 'f', -1, 64)
}

func (l *Logger) log(level protocol.Level, msg string) {
	if err := l.Emit(level, msg); err != nil {
		l.fail(err)
	}
}

func (l *Logger) Trace(msg string) { l.log(protocol.TraceLevel, msg) }
func (l *Logger) Debug(msg string) { l.log(protocol.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(protocol.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(protocol.WarningLevel, msg) }
func (l *Logger) Error(msg string) { l.log(protocol.ErrorLevel, msg) }

func (l *Logger) Tracef(format string, args ...any) { l.Trace(fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...any) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.Error(fmt.Sprintf(format, args...)) }

// Progress reports task progress. A NaN fraction is a programming error and
// panics; write failures go to the fail handler.
func (l *Logger) Progress(fraction float64) {
	err := l.EmitProgress(fraction)
	if errors.Is(err, ErrInvalidProgress) {
		panic(err)
	}
	if err != nil {
		l.fail(err)
	}
}
