// Package logger implements a logging adapter using log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ANSI color codes for the pretty handler. Kept minimal and
// hand-rolled: termenv and lipgloss belong to the TUI rendering stack
// this package has no dependency on, so there is no color library left
// to reach for here.
const (
	ansiReset  = "\x1b[0m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiDim    = "\x1b[2m"
)

// PrettyHandler is a slog.Handler producing human-readable, colored
// single-line output.
type PrettyHandler struct {
	w       io.Writer
	level   slog.Leveler
	attrs   []slog.Attr
	group   string
	noColor bool
}

// NewPrettyHandler creates a new PrettyHandler writing to w. Color is
// suppressed when the NO_COLOR environment variable is set, per
// https://no-color.org.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level)

	_, noColor := os.LookupEnv("NO_COLOR")

	return &PrettyHandler{w: w, level: levelVar, noColor: noColor}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var prefix, color string
	reset := ansiReset

	switch r.Level {
	case slog.LevelWarn:
		prefix, color = "! ", ansiYellow
	case slog.LevelError:
		prefix, color = "✗ ", ansiRed
	default:
		prefix, color = "", ansiDim
	}

	if h.noColor {
		color, reset = "", ""
	}

	msg := prefix + r.Message

	attrParts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		attrParts = append(attrParts, attr.Key+"="+attr.Value.String())
	}
	r.Attrs(func(attr slog.Attr) bool {
		key := attr.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		attrParts = append(attrParts, key+"="+attr.Value.String())
		return true
	})

	if len(attrParts) > 0 {
		msg += " " + strings.Join(attrParts, " ")
	}

	_, err := io.WriteString(h.w, color+msg+reset+"\n")
	return err
}

// WithAttrs returns a new handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)

	for i, attr := range attrs {
		key := attr.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		newAttrs[len(h.attrs)+i] = slog.Attr{Key: key, Value: attr.Value}
	}

	return &PrettyHandler{w: h.w, level: h.level, attrs: newAttrs, group: h.group, noColor: h.noColor}
}

// WithGroup returns a new handler with the given group name appended.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}

	return &PrettyHandler{w: h.w, level: h.level, attrs: h.attrs, group: newGroup, noColor: h.noColor}
}
