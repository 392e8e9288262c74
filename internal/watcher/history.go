package watcher

import (
	"sync"

	"github.com/markb/logwatch/internal/log"
)

// DefaultHistorySize is the capacity used when a listener config leaves the
// size unset.
const DefaultHistorySize = 50

// History is a fixed-capacity ring of captured events. Once full, each Add
// overwrites the oldest slot.
type History struct {
	mu    sync.Mutex
	slots []*log.Event
	head  int    // next slot to write
	total uint64 // events ever added
}

// NewHistory creates a ring holding at most capacity events. A non-positive
// capacity falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{slots: make([]*log.Event, capacity)}
}

// Add appends e and reports whether an older event was evicted to make room.
func (h *History) Add(e *log.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	evicted := h.slots[h.head] != nil
	h.slots[h.head] = e
	h.head = (h.head + 1) % len(h.slots)
	h.total++
	return evicted
}

// Since returns the retained events with a timestamp at or after since (in
// epoch milliseconds), oldest first. The flag reports that older matching
// events may already have been evicted: the ring has wrapped and its oldest
// retained event is itself inside the requested window.
func (h *History) Since(since int64) ([]*log.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.lenLocked()
	if n == 0 {
		return nil, false
	}
	start := (h.head - n + len(h.slots)) % len(h.slots)

	var out []*log.Event
	for i := 0; i < n; i++ {
		e := h.slots[(start+i)%len(h.slots)]
		if e.Millis() >= since {
			out = append(out, e)
		}
	}

	oldest := h.slots[start]
	incomplete := h.total > uint64(len(h.slots)) && oldest.Millis() >= since
	return out, incomplete
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lenLocked()
}

func (h *History) lenLocked() int {
	if h.total < uint64(len(h.slots)) {
		return int(h.total)
	}
	return len(h.slots)
}

// Capacity returns the fixed size of the ring.
func (h *History) Capacity() int {
	return len(h.slots)
}

// Total returns the number of events ever added.
func (h *History) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
