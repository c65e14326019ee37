// Package logcapture wraps a slog.Handler to retain the last N log records
// in memory for the /control/status diagnostic surface (§10.1). It mirrors
// the teacher's log-capture-handler pattern but drops the pub/sub streaming
// half of it: this system has no SSE log endpoint, only a bounded snapshot.
package logcapture

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRingSize is the number of retained log records when none is
// configured.
const DefaultRingSize = 1000

// Entry is a single captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer is a fixed-capacity ring buffer of recent log Entries, safe for
// concurrent use from the wrapped slog.Handler's goroutine and from
// whatever HTTP handler reads Recent().
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	total    int
}

// New constructs an empty Buffer with room for capacity entries. A
// non-positive capacity falls back to DefaultRingSize.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Buffer{entries: make([]Entry, 0, capacity), capacity: capacity}
}

// Add appends an entry, evicting the oldest once the buffer is full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total++
	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, e)
		return
	}
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.capacity
}

// Recent returns up to limit of the most recently captured entries, oldest
// first. limit <= 0 returns everything currently retained.
func (b *Buffer) Recent(limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := make([]Entry, len(b.entries))
	if len(b.entries) < b.capacity {
		copy(ordered, b.entries)
	} else {
		copy(ordered, b.entries[b.next:])
		copy(ordered[b.capacity-b.next:], b.entries[:b.next])
	}

	if limit <= 0 || limit >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-limit:]
}

// Total returns the cumulative number of entries ever added, including
// ones since evicted.
func (b *Buffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Handler wraps an slog.Handler, mirroring every handled record into a
// Buffer before passing it through unchanged.
type Handler struct {
	buffer  *Buffer
	wrapped slog.Handler
}

// Wrap returns a new Handler that captures into buffer and forwards to
// wrapped. The returned handler is what the caller should install as
// slog.Default()'s handler.
func Wrap(wrapped slog.Handler, buffer *Buffer) *Handler {
	return &Handler{buffer: buffer, wrapped: wrapped}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.wrapped.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	entry := Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		if entry.Attrs == nil {
			entry.Attrs = make(map[string]any)
		}
		entry.Attrs[a.Key] = a.Value.Any()
		return true
	})
	h.buffer.Add(entry)
	return h.wrapped.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{buffer: h.buffer, wrapped: h.wrapped.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{buffer: h.buffer, wrapped: h.wrapped.WithGroup(name)}
}
