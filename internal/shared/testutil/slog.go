package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// LogRecord represents a captured log record
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record for later assertions
type LogCapture struct {
	mu      sync.Mutex
	records []LogRecord
	attrs   []slog.Attr
	root    *LogCapture
	t       *testing.T
}

// NewTestLogger creates a logger whose records are captured
func NewTestLogger(t *testing.T) (*slog.Logger, *LogCapture) {
	h := &LogCapture{t: t}
	h.root = h
	return slog.New(h), h
}

// Enabled implements slog.Handler
func (h *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler
func (h *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	root := h.root
	root.mu.Lock()
	root.records = append(root.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	root.mu.Unlock()

	if root.t != nil {
		root.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &LogCapture{attrs: merged, root: h.root}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *LogCapture) WithGroup(string) slog.Handler { return h }

// Records returns the captured records at level
func (h *LogCapture) Records(level slog.Level) []LogRecord {
	h.root.mu.Lock()
	defer h.root.mu.Unlock()

	var out []LogRecord
	for _, r := range h.root.records {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Messages returns the messages captured at level, in order
func (h *LogCapture) Messages(level slog.Level) []string {
	var out []string
	for _, r := range h.Records(level) {
		out = append(out, r.Message)
	}
	return out
}
