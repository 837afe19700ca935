package activity

import (
	"slices"
	"strings"
	"time"
)

// Verbs emitted by a settings entity tree and its stores.
const (
	VerbStateChanged     = "settings.state.changed"
	VerbOverrideAdded    = "settings.override.added"
	VerbOverrideRemoved  = "settings.override.removed"
	VerbChangesDiscarded = "settings.changes.discarded"
	VerbKeyAdded         = "settings.key.added"
	VerbKeyRenamed       = "settings.key.renamed"
	VerbKeyRemoved       = "settings.key.removed"
	VerbLayerSaved       = "settings.layer.saved"
)

// StateContext captures the override layer an event happened in.
type StateContext struct {
	Name     string
	Label    string
	Priority int
	Category string
	Project  string
	Metadata map[string]any
}

// SettingsEventInput describes the common fields for settings lifecycle
// events.
type SettingsEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Path           string
	OldValue       any
	NewValue       any
	State          StateContext
	OccurredAt     time.Time
}

// BuildStateChangedEvent constructs the event emitted after an override
// state transition.
func BuildStateChangedEvent(input SettingsEventInput) Event {
	return BuildSettingsEvent(VerbStateChanged, input)
}

// BuildLayerSavedEvent constructs the event emitted after a layer document
// was persisted.
func BuildLayerSavedEvent(input SettingsEventInput) Event {
	return BuildSettingsEvent(VerbLayerSaved, input)
}

// BuildSettingsEvent builds the event for verb. The object type is the verb
// family ("settings.key" for "settings.key.added"); the object ID falls back
// to the path, then the category.
func BuildSettingsEvent(verb string, input SettingsEventInput) Event {
	verb = strings.TrimSpace(verb)
	kind := objectTypeFor(verb)

	meta := cloneMap(input.Metadata)
	put := func(key string, value any, keep bool) {
		if !keep {
			return
		}
		if meta == nil {
			meta = map[string]any{}
		}
		meta[key] = value
	}
	state := input.State
	put("path", input.Path, input.Path != "")
	put("state", state.Name, state.Name != "")
	put("state_priority", state.Priority, state.Name != "")
	put("state_label", state.Label, state.Name != "" && state.Label != "")
	put("state_metadata", cloneMap(state.Metadata), state.Name != "" && len(state.Metadata) > 0)
	put("category", state.Category, state.Category != "")
	put("project", state.Project, state.Project != "")
	put("old_value", input.OldValue, input.OldValue != nil)
	put("new_value", input.NewValue, input.NewValue != nil)

	event := Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     kind,
		ObjectID:       firstNonBlank(input.ObjectID, input.Path, state.Category, kind),
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Metadata:       meta,
		OccurredAt:     input.OccurredAt,
	}
	if len(input.Recipients) > 0 {
		event.Recipients = slices.Clone(input.Recipients)
	}
	return event
}

// objectTypeFor maps "settings.<family>.<action>" to "settings.<family>".
func objectTypeFor(verb string) string {
	family, _, ok := strings.Cut(strings.TrimPrefix(verb, "settings."), ".")
	switch {
	case !ok || !strings.HasPrefix(verb, "settings."):
		return "settings"
	case family == "override", family == "key", family == "layer":
		return "settings." + family
	default:
		return "settings"
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
