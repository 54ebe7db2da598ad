package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultActivitySize bounds the operator-facing activity stream.
const DefaultActivitySize = 50

// Entry is one line of the activity stream.
type Entry struct {
	Time    time.Time         `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ActivityLog keeps the most recent entries, newest first.
type ActivityLog struct {
	mu      sync.RWMutex
	entries []Entry
	size    int
}

// NewActivityLog builds a log retaining at most size entries.
func NewActivityLog(size int) *ActivityLog {
	if size <= 0 {
		size = DefaultActivitySize
	}
	return &ActivityLog{size: size}
}

// Add prepends entry and drops the oldest entries beyond capacity.
func (a *ActivityLog) Add(entry Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append([]Entry{entry}, a.entries...)
	if len(a.entries) > a.size {
		a.entries = a.entries[:a.size]
	}
}

// Snapshot returns a copy of the entries, newest first.
func (a *ActivityLog) Snapshot() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// ActivityHandler tees Info+ records into an ActivityLog before delegating.
type ActivityHandler struct {
	next   slog.Handler
	log    *ActivityLog
	attrs  []slog.Attr
	prefix string
}

var _ slog.Handler = (*ActivityHandler)(nil)

// NewActivityHandler wraps next.
func NewActivityHandler(next slog.Handler, log *ActivityLog) *ActivityHandler {
	return &ActivityHandler{next: next, log: log}
}

func (h *ActivityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.next.Enabled(ctx, level)
}

func (h *ActivityHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelInfo {
		attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
		for _, attr := range h.attrs {
			attrs[attr.Key] = attr.Value.String()
		}
		r.Attrs(func(attr slog.Attr) bool {
			attrs[h.prefix+attr.Key] = attr.Value.String()
			return true
		})
		h.log.Add(Entry{
			Time:    r.Time,
			Level:   r.Level.String(),
			Message: r.Message,
			Attrs:   attrs,
		})
	}

	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ActivityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		merged = append(merged, attr)
	}
	return &ActivityHandler{
		next:   h.next.WithAttrs(attrs),
		log:    h.log,
		attrs:  merged,
		prefix: h.prefix,
	}
}

func (h *ActivityHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ActivityHandler{
		next:   h.next.WithGroup(name),
		log:    h.log,
		attrs:  h.attrs,
		prefix: h.prefix + name + ".",
	}
}
