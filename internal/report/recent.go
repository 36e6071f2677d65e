package report

import (
	"context"
	"sync"
)

// Recent keeps the last size events in memory. It backs the status API when
// no journal is configured.
type Recent struct {
	mu     sync.Mutex
	events []Event
	size   int
}

// NewRecent creates a ring of the given size.
func NewRecent(size int) *Recent {
	if size < 1 {
		size = 1
	}
	return &Recent{size: size, events: make([]Event, 0, size)}
}

// Report appends ev, evicting the oldest event when the ring is full.
func (r *Recent) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == r.size {
		copy(r.events, r.events[1:])
		r.events = r.events[:r.size-1]
	}
	r.events = append(r.events, ev)
}

// RecentEvents returns up to limit events of kind (all kinds when empty), newest first.
func (r *Recent) RecentEvents(_ context.Context, kind Kind, limit int) ([]Event, error) {
	if limit <= 0 {
		return []Event{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, min(limit, len(r.events)))
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && r.events[i].Kind != kind {
			continue
		}
		out = append(out, r.events[i])
	}
	return out, nil
}
