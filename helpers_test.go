package settings

import (
	"testing"

	"github.com/pypeclub/OpenPype/schema"
)

func systemSchemaDocument() map[string]any {
	return map[string]any{
		"type": "dict",
		"key":  "system_settings",
		"children": []any{
			map[string]any{
				"type":    "dict",
				"key":     "general",
				"is_file": true,
				"children": []any{
					map[string]any{"type": "text", "key": "studio_name", "label": "Studio Name"},
					map[string]any{"type": "number", "key": "fps", "minimum": 1},
					map[string]any{"type": "number", "key": "pixel_aspect", "decimal": 2},
					map[string]any{"type": "label", "label": "Ftrack connection"},
					map[string]any{
						"type":     "dict",
						"key":      "ftrack",
						"is_group": true,
						"children": []any{
							map[string]any{"type": "boolean", "key": "enabled"},
							map[string]any{"type": "text", "key": "server"},
						},
					},
					map[string]any{
						"type":       "enum",
						"key":        "renderer",
						"enum_items": []any{map[string]any{"arnold": "Arnold"}, map[string]any{"vray": "V-Ray"}},
					},
				},
			},
			map[string]any{
				"type":    "dict",
				"key":     "tools",
				"is_file": true,
				"children": []any{
					map[string]any{
						"type":          "dict-modifiable",
						"key":           "statuses",
						"required_keys": []any{"default"},
						"object_type":   map[string]any{"type": "text"},
					},
					map[string]any{
						"type":               "dict-modifiable",
						"key":                "environments",
						"value_is_env_group": true,
						"object_type":        map[string]any{"type": "raw-json"},
					},
					map[string]any{
						"type":        "list",
						"key":         "paths",
						"object_type": map[string]any{"type": "text"},
					},
				},
			},
		},
	}
}

func systemDefaults() map[string]any {
	return map[string]any{
		"general": map[string]any{
			"studio_name":  "Studio",
			"fps":          25.0,
			"pixel_aspect": 1.0,
			"ftrack": map[string]any{
				"enabled": false,
				"server":  "",
			},
			"renderer": "arnold",
		},
		"tools": map[string]any{
			"statuses":     map[string]any{"default": "Not started"},
			"environments": map[string]any{},
			"paths":        []any{},
		},
	}
}

func loadSystemSchema(t *testing.T) *schema.Node {
	t.Helper()
	node, err := schema.NewLoader().LoadDocuments(map[string]any{
		"system_settings": systemSchemaDocument(),
	}, "system_settings")
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return node
}

// newSystemRoot builds a tree with defaults and the given studio document
// loaded, moved to state.
func newSystemRoot(t *testing.T, studio map[string]any, state OverrideState, opts ...Option) *Root {
	t.Helper()
	root, err := NewRoot(loadSystemSchema(t), opts...)
	if err != nil {
		t.Fatalf("new root: %v", err)
	}
	root.UpdateDefaultValue(systemDefaults())
	if studio != nil {
		root.UpdateStudioValue(studio)
	}
	if err := root.SetOverrideState(state); err != nil {
		t.Fatalf("set override state %s: %v", state, err)
	}
	return root
}

func mustGet(t *testing.T, root *Root, path string) Entity {
	t.Helper()
	entity, err := root.Get(path)
	if err != nil {
		t.Fatalf("get %q: %v", path, err)
	}
	return entity
}

func mustMutable(t *testing.T, root *Root, path string) *DictMutableKeysEntity {
	t.Helper()
	entity, ok := mustGet(t, root, path).(*DictMutableKeysEntity)
	if !ok {
		t.Fatalf("%q is not a mutable dict", path)
	}
	return entity
}

func mustList(t *testing.T, root *Root, path string) *ListEntity {
	t.Helper()
	entity, ok := mustGet(t, root, path).(*ListEntity)
	if !ok {
		t.Fatalf("%q is not a list", path)
	}
	return entity
}

