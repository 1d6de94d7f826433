// Package logger implements a logging adapter using log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/muesli/termenv"

	"github.com/accelforge/enginecache/internal/ui/output"
	"github.com/accelforge/enginecache/internal/ui/style"
)

// PrettyHandler renders records as single colored lines for interactive use:
// a level icon, the message, then space-separated key=value pairs. Pipeline
// output goes through slog's JSON handler instead; this one only exists for
// the human-facing path.
type PrettyHandler struct {
	out    *termenv.Output
	level  *slog.LevelVar
	attrs  []slog.Attr
	prefix string
}

// NewPrettyHandler creates a PrettyHandler writing to w, stderr when nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	level := &slog.LevelVar{}
	if opts != nil && opts.Level != nil {
		level.Set(opts.Level.Level())
	}

	return &PrettyHandler{
		out:   output.New(w),
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and outputs the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder
	if icon := levelIcon(r.Level); icon != "" {
		line.WriteString(icon)
		line.WriteString(" ")
	}
	line.WriteString(r.Message)

	for _, attr := range h.attrs {
		writeAttr(&line, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		attr.Key = h.prefix + attr.Key
		writeAttr(&line, attr)
		return true
	})

	styled := h.out.String(line.String()).Foreground(levelColor(r.Level))
	_, err := h.out.WriteString(styled.String() + "\n")

	return err
}

// WithAttrs returns a handler that prepends the given attributes, keyed under
// the current group path, to every record.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup returns a handler that prefixes subsequent attribute keys with the
// group name, dot-separated.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func writeAttr(line *strings.Builder, attr slog.Attr) {
	line.WriteString(" ")
	line.WriteString(attr.Key)
	line.WriteString("=")
	line.WriteString(attr.Value.String())
}

func levelIcon(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return style.Cross
	case level >= slog.LevelWarn:
		return style.Warning
	default:
		return ""
	}
}

func levelColor(level slog.Level) termenv.Color {
	switch {
	case level >= slog.LevelError:
		return termenv.RGBColor(string(style.Red))
	case level >= slog.LevelWarn:
		return termenv.RGBColor(string(style.Yellow))
	default:
		return termenv.RGBColor(string(style.Slate))
	}
}
