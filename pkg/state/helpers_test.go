package state_test

import (
	"context"
	"testing"
	"time"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/pkg/state"
	"github.com/pypeclub/OpenPype/schema"
)

const category = "system_settings"

func systemSchema(t *testing.T) *schema.Node {
	t.Helper()
	node, err := schema.NewLoader().LoadDocuments(map[string]any{
		category: map[string]any{
			"type": "dict",
			"key":  category,
			"children": []any{
				map[string]any{
					"type":    "dict",
					"key":     "general",
					"is_file": true,
					"children": []any{
						map[string]any{"type": "text", "key": "studio_name"},
						map[string]any{"type": "number", "key": "fps"},
					},
				},
				map[string]any{
					"type":    "dict",
					"key":     "tools",
					"is_file": true,
					"children": []any{
						map[string]any{
							"type":        "list",
							"key":         "paths",
							"object_type": map[string]any{"type": "text"},
						},
					},
				},
			},
		},
	}, category)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return node
}

func systemDefaults() state.Document {
	return state.Document{
		"general": map[string]any{"studio_name": "Studio", "fps": 25},
		"tools":   map[string]any{"paths": []any{"/mnt/projects"}},
	}
}

// seededStore returns a memory store holding the defaults of category.
func seededStore(t *testing.T) *state.MemoryStore {
	t.Helper()
	store := state.NewMemoryStore()
	if _, err := store.Save(context.Background(), state.DefaultsRef(category), systemDefaults(), state.Meta{}); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	return store
}

func fixedClock() func() time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func mustSet(t *testing.T, root *settings.Root, path string, value any) {
	t.Helper()
	entity, err := root.Get(path)
	if err != nil {
		t.Fatalf("get %q: %v", path, err)
	}
	if err := entity.Set(value); err != nil {
		t.Fatalf("set %q: %v", path, err)
	}
}

func valueAt(t *testing.T, root *settings.Root, path string) any {
	t.Helper()
	entity, err := root.Get(path)
	if err != nil {
		t.Fatalf("get %q: %v", path, err)
	}
	return entity.Value()
}
