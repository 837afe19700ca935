package schema_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/pypeclub/OpenPype/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolvesSchemaReferences(t *testing.T) {
	fsys := fstest.MapFS{
		"schema_main.json": {Data: []byte(`{
			"type": "dict",
			"key": "system",
			"children": [{"type": "schema", "name": "schema_general"}]
		}`)},
		"schema_general.yaml": {Data: []byte(`
type: dict
key: general
is_file: true
children:
  - type: text
    key: studio_name
  - type: number
    key: max_jobs
    minimum: 1
`)},
	}

	root, err := schema.NewLoader().Load(fsys, "schema_main")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	general := root.Children[0]
	assert.Equal(t, "general", general.Key)
	assert.True(t, general.IsFile)
	require.Len(t, general.Children, 2)
	minimum, ok := general.Children[1].NumberOption("minimum")
	require.True(t, ok)
	assert.Equal(t, 1.0, minimum)
}

func TestLoadMissingEntryPoint(t *testing.T) {
	_, err := schema.NewLoader().Load(fstest.MapFS{}, "schema_main")

	var notFound *schema.SchemaNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "schema_main", notFound.Name)
}

func TestLoadUnresolvedReference(t *testing.T) {
	fsys := fstest.MapFS{
		"main.json": {Data: []byte(`{"type": "dict", "is_file": true, "children": [{"type": "schema", "name": "nope"}]}`)},
	}
	_, err := schema.NewLoader().Load(fsys, "main")

	var notFound *schema.SchemaNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.Name)
}

func TestLoadTemplateUsedAsSchema(t *testing.T) {
	fsys := fstest.MapFS{
		"main.json":  {Data: []byte(`{"type": "dict", "is_file": true, "children": [{"type": "schema", "name": "tmpl"}]}`)},
		"tmpl.json": {Data: []byte(`[{"type": "text", "key": "a"}]`)},
	}
	_, err := schema.NewLoader().Load(fsys, "main")

	var notFound *schema.SchemaNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.NotEmpty(t, notFound.Reason)
}

func TestTemplateExpansionPerDataSet(t *testing.T) {
	fsys := fstest.MapFS{
		"main.json": {Data: []byte(`{
			"type": "dict",
			"key": "tasks",
			"is_file": true,
			"children": [{
				"type": "schema_template",
				"name": "template_task",
				"template_data": [{"task": "anim"}, {"task": "comp"}]
			}]
		}`)},
		"template_task.json": {Data: []byte(`[{
			"type": "dict",
			"key": "{task}",
			"label": "Task {task}",
			"children": [{"type": "boolean", "key": "enabled"}]
		}]`)},
	}

	root, err := schema.NewLoader().Load(fsys, "main")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "anim", root.Children[0].Key)
	assert.Equal(t, "Task anim", root.Children[0].Label)
	assert.Equal(t, "comp", root.Children[1].Key)
}

func TestTemplateMissingKeys(t *testing.T) {
	fsys := fstest.MapFS{
		"main.json": {Data: []byte(`{
			"type": "dict",
			"is_file": true,
			"children": [{"type": "schema_template", "name": "template_task", "template_data": [{"other": "x"}]}]
		}`)},
		"template_task.json": {Data: []byte(`[{"type": "boolean", "key": "{task}"}]`)},
	}

	_, err := schema.NewLoader().Load(fsys, "main")

	var missing *schema.SchemaTemplateMissingKeys
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "template_task", missing.Template)
	assert.Equal(t, []string{"task"}, missing.Required)
	assert.Equal(t, []string{"task"}, missing.Missing)
}

func TestTemplateDefaultValuesAndRawSubstitution(t *testing.T) {
	template := []any{
		map[string]any{"__default_values__": map[string]any{"multiplier": 2.0}},
		map[string]any{"type": "number", "key": "{name}_value", "maximum": "{multiplier}"},
	}

	filled, err := schema.FillTemplate(template, map[string]any{"name": "render"})
	require.NoError(t, err)
	require.Len(t, filled, 1)

	item := filled[0].(map[string]any)
	assert.Equal(t, "render_value", item["key"])
	assert.Equal(t, 2.0, item["maximum"])
}

func TestValidateCollectsAllProblems(t *testing.T) {
	fsys := fstest.MapFS{
		"main.json": {Data: []byte(`{
			"type": "dict",
			"children": [
				{"type": "raw-json", "key": "a", "env_group_key": "shared", "is_file": true},
				{"type": "raw-json", "key": "b", "env_group_key": "shared", "is_file": true},
				{"type": "text", "key": "loose"},
				{"type": "form", "children": [{"type": "text", "key": "a", "is_file": true}]},
				{
					"type": "dict", "key": "outer", "is_group": true, "is_file": true,
					"children": [{"type": "dict", "key": "inner", "is_group": true, "children": []}]
				}
			]
		}`)},
	}

	_, err := schema.NewLoader().Load(fsys, "main")
	require.Error(t, err)

	var dupEnv *schema.SchemaDuplicatedEnvGroupKeys
	require.ErrorAs(t, err, &dupEnv)
	assert.Equal(t, []string{"a", "b"}, dupEnv.Keys["shared"])

	var dupKey *schema.SchemaDuplicatedKeys
	require.ErrorAs(t, err, &dupKey)
	assert.Equal(t, "a", dupKey.Key)

	var missingFile *schema.SchemaMissingFileInfo
	require.ErrorAs(t, err, &missingFile)
	assert.Equal(t, []string{"loose"}, missingFile.Paths)

	var groupBug *schema.SchemeGroupHierarchyBug
	require.ErrorAs(t, err, &groupBug)
	assert.Equal(t, "outer/inner", groupBug.Path)
}

func TestNestedGroupAllowedBehindFileBoundary(t *testing.T) {
	docs := map[string]any{
		"main": map[string]any{
			"type":     "dict",
			"is_group": true,
			"is_file":  true,
			"children": []any{
				map[string]any{
					"type":     "dict",
					"key":      "project",
					"is_file":  true,
					"is_group": true,
					"children": []any{map[string]any{"type": "text", "key": "name"}},
				},
			},
		},
	}
	_, err := schema.NewLoader().LoadDocuments(docs, "main")
	require.NoError(t, err)
}

func TestUnknownTypeRegisteredLater(t *testing.T) {
	docs := map[string]any{
		"main": map[string]any{
			"type":    "dict",
			"is_file": true,
			"children": []any{
				map[string]any{"type": "color", "key": "tint"},
			},
		},
	}
	registry := schema.NewRegistry()
	_, err := schema.NewLoader(schema.WithRegistry(registry)).LoadDocuments(docs, "main")

	var unknown *schema.SchemaUnknownType
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "color", unknown.Type)

	require.NoError(t, registry.Register("color", schema.KindInput))
	_, err = schema.NewLoader(schema.WithRegistry(registry)).LoadDocuments(docs, "main")
	require.NoError(t, err)
}

func TestLegacyObjectTypeLogsWarning(t *testing.T) {
	docs := map[string]any{
		"main": map[string]any{
			"type":    "dict",
			"is_file": true,
			"children": []any{
				map[string]any{
					"type":            "dict-modifiable",
					"key":             "tags",
					"object_type":     "text",
					"input_modifiers": map[string]any{"multiline": true},
				},
			},
		},
	}
	var events []schema.LogEvent
	logger := schema.LoggerFunc(func(event schema.LogEvent) {
		events = append(events, event)
	})

	root, err := schema.NewLoader(schema.WithLogger(logger)).LoadDocuments(docs, "main")
	require.NoError(t, err)

	objectType := root.Children[0].ObjectType
	require.NotNil(t, objectType)
	assert.Equal(t, "text", objectType.Type)
	assert.True(t, objectType.BoolOption("multiline", false))
	require.Len(t, events, 1)
	assert.Equal(t, "tags", events[0].Path)
}

func TestCircularReference(t *testing.T) {
	fsys := fstest.MapFS{
		"main.json": {Data: []byte(`{"type": "dict", "is_file": true, "children": [{"type": "schema", "name": "loop"}]}`)},
		"loop.json": {Data: []byte(`{"type": "dict", "key": "loop", "children": [{"type": "schema", "name": "loop"}]}`)},
	}
	_, err := schema.NewLoader().Load(fsys, "main")

	var formatErr *schema.SchemaFormatError
	require.ErrorAs(t, err, &formatErr)
}
