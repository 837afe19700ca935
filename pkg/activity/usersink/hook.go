// Package usersink forwards settings activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"slices"
	"strings"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/pypeclub/OpenPype/pkg/activity"
)

// Hook records settings activity through a go-users ActivitySink so studio
// administrators see who changed overrides next to other user activity.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs limits recorded events. Empty records every verb.
	Verbs []string
}

// Notify records event unless it is invalid or filtered out by Verbs.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Valid() {
		return nil
	}
	event = event.Normalized()
	if len(h.Verbs) > 0 && !slices.ContainsFunc(h.Verbs, func(verb string) bool {
		return strings.TrimSpace(verb) == event.Verb
	}) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record converts a normalized event. Non-UUID identifiers map to uuid.Nil;
// definition code and recipients move into the record data.
func Record(event activity.Event) usertypes.ActivityRecord {
	data := map[string]any{}
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = append([]string(nil), event.Recipients...)
	}
	if len(data) == 0 {
		data = nil
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   objectID(event),
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

// objectID qualifies project events with the project name so records of
// different projects don't collide.
func objectID(event activity.Event) string {
	project, _ := event.Metadata["project"].(string)
	if project == "" || strings.HasPrefix(event.ObjectID, project+":") {
		return event.ObjectID
	}
	return project + ":" + event.ObjectID
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
