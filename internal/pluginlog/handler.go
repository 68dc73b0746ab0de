package pluginlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/plugkit/internal/protocol"
)

// Handler is an slog.Handler that renders records as framed log lines, so a
// plugin's structured logging shares the host-visible channel.
type Handler struct {
	logger *Logger
	min    slog.Leveler
	prefix string
	attrs  []slog.Attr
}

// NewHandler returns a Handler writing through l. Records below min are
// mapped to NoLevel and dropped.
func NewHandler(l *Logger, min slog.Leveler) *Handler {
	if min == nil {
		min = slog.LevelDebug
	}
	return &Handler{logger: l, min: min}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	// slog drops handler errors, so write failures go to the fail handler.
	if err := h.logger.Emit(h.levelFor(r.Level), b.String()); err != nil {
		h.logger.fail(err)
		return err
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func (h *Handler) levelFor(level slog.Level) protocol.Level {
	if level < h.min.Level() {
		return protocol.NoLevel
	}
	switch {
	case level >= slog.LevelError:
		return protocol.ErrorLevel
	case level >= slog.LevelWarn:
		return protocol.WarningLevel
	case level >= slog.LevelInfo:
		return protocol.InfoLevel
	case level >= slog.LevelDebug:
		return protocol.DebugLevel
	default:
		return protocol.TraceLevel
	}
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	fmt.Fprintf(b, " %s%s=%v", prefix, a.Key, a.Value.Any())
}
