package events

import (
	"sync"

	"synthnet/core/types"
)

// attributeProjector is implemented by events that can render themselves as a
// generic attribute map for transport.
type attributeProjector interface {
	Event() *types.Event
}

// Recorder retains the most recent events in memory so the RPC surface can
// serve them to indexers and clients.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []*types.Event
}

// NewRecorder constructs a recorder retaining up to limit events.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 256
	}
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(ev Event) {
	if r == nil || ev == nil {
		return
	}
	projected := types.NewEvent(ev.EventType())
	if p, ok := ev.(attributeProjector); ok {
		projected = p.Event()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, projected)
	if len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

// Recent returns up to n of the latest events, newest last.
func (r *Recorder) Recent(n int) []*types.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	out := make([]*types.Event, n)
	copy(out, r.events[len(r.events)-n:])
	return out
}
