package activity

import (
	"context"
	"sync"
)

// CaptureHook keeps every event it receives. Tests and tooling use it to
// inspect what a tree emitted.
type CaptureHook struct {
	mu     sync.Mutex
	Events []Event
	// Err is returned from every Notify call.
	Err error
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, event.Normalized())
	return h.Err
}

// Verbs lists the verbs of the captured events in order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.Events))
	for _, event := range h.Events {
		out = append(out, event.Verb)
	}
	return out
}
