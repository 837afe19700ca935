package activity

import (
	"strings"
	"time"
)

// Event is one change to a settings tree or to a stored settings layer.
// Identifiers stay strings so callers without UUID actors can still emit.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Valid reports whether the event names a verb and the object it touched.
// Hooks drop invalid events.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

// Normalized returns a trimmed copy that owns its metadata and recipients.
// A missing timestamp is set to now.
func (e Event) Normalized() Event {
	out := Event{
		Verb:           strings.TrimSpace(e.Verb),
		ActorID:        strings.TrimSpace(e.ActorID),
		UserID:         strings.TrimSpace(e.UserID),
		TenantID:       strings.TrimSpace(e.TenantID),
		ObjectType:     strings.TrimSpace(e.ObjectType),
		ObjectID:       strings.TrimSpace(e.ObjectID),
		Channel:        strings.TrimSpace(e.Channel),
		DefinitionCode: strings.TrimSpace(e.DefinitionCode),
		Metadata:       cloneMap(e.Metadata),
		OccurredAt:     e.OccurredAt,
	}
	if len(e.Recipients) > 0 {
		out.Recipients = append([]string(nil), e.Recipients...)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// cloneMap is shallow; metadata values are treated as immutable.
func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
