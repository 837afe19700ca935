package usersink_test

import (
	"context"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/pypeclub/OpenPype/pkg/activity"
	"github.com/pypeclub/OpenPype/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestRecordMapsEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actor := uuid.New()
	studio := uuid.New()

	record := usersink.Record(activity.Event{
		Verb:           activity.VerbOverrideAdded,
		ActorID:        actor.String(),
		UserID:         "not-a-uuid",
		TenantID:       studio.String(),
		ObjectType:     "settings.override",
		ObjectID:       "general/fps",
		Channel:        "settings",
		DefinitionCode: "settings:override",
		Recipients:     []string{"supervisor@studio.test"},
		Metadata:       map[string]any{"path": "general/fps", "state": "studio"},
		OccurredAt:     now,
	})

	checks := []struct {
		name      string
		got, want any
	}{
		{"actor", record.ActorID, actor},
		{"user", record.UserID, uuid.Nil},
		{"tenant", record.TenantID, studio},
		{"verb", record.Verb, activity.VerbOverrideAdded},
		{"object type", record.ObjectType, "settings.override"},
		{"object id", record.ObjectID, "general/fps"},
		{"channel", record.Channel, "settings"},
		{"occurred at", record.OccurredAt, now},
		{"path", record.Data["path"], "general/fps"},
		{"state", record.Data["state"], "studio"},
		{"definition code", record.Data["definition_code"], "settings:override"},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("%s: want %v, got %v", check.name, check.want, check.got)
		}
	}
	recipients, ok := record.Data["recipients"].([]string)
	if !ok || len(recipients) != 1 || recipients[0] != "supervisor@studio.test" {
		t.Fatalf("expected recipients in data, got %v", record.Data["recipients"])
	}
	if usersink.Record(activity.Event{Verb: "v", ObjectType: "t", ObjectID: "o"}).Data != nil {
		t.Fatalf("events without metadata produce no data")
	}
}

func TestHookNotifyForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}
	event := activity.BuildSettingsEvent(activity.VerbOverrideAdded, activity.SettingsEventInput{Path: "general/fps"})
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 || sink.records[0].ObjectID != "general/fps" {
		t.Fatalf("unexpected records %+v", sink.records)
	}
	if err := (usersink.Hook{}).Notify(context.Background(), event); err != nil {
		t.Fatalf("hook without sink must be a no-op, got %v", err)
	}
}

func TestHookNotifyQualifiesProjectObjects(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	event := activity.BuildLayerSavedEvent(activity.SettingsEventInput{
		State: activity.StateContext{Name: "project", Category: "project_settings", Project: "demo"},
	})
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 || sink.records[0].ObjectID != "demo:project_settings" {
		t.Fatalf("expected project qualified object id, got %+v", sink.records)
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{activity.VerbLayerSaved}}

	_ = hook.Notify(context.Background(), activity.BuildSettingsEvent(activity.VerbKeyAdded, activity.SettingsEventInput{Path: "tools/maya"}))
	_ = hook.Notify(context.Background(), activity.BuildLayerSavedEvent(activity.SettingsEventInput{Path: "system_settings"}))

	if len(sink.records) != 1 || sink.records[0].Verb != activity.VerbLayerSaved {
		t.Fatalf("expected only the layer saved record, got %+v", sink.records)
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyDefaultsTimestamp(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbKeyAdded,
		ObjectType: "settings.key",
		ObjectID:   "tools/maya",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}
