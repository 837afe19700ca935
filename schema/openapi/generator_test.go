package openapi

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/schema"
)

func systemSchema(t *testing.T) *schema.Node {
	t.Helper()
	document := map[string]any{
		"type": "dict",
		"key":  "system_settings",
		"children": []any{
			map[string]any{
				"type":    "dict",
				"key":     "general",
				"label":   "General",
				"is_file": true,
				"children": []any{
					map[string]any{"type": "text", "key": "studio_name", "label": "Studio Name"},
					map[string]any{"type": "number", "key": "fps", "minimum": 1, "maximum": 120},
					map[string]any{"type": "number", "key": "pixel_aspect", "decimal": 2},
					map[string]any{"type": "label", "label": "Ftrack"},
					map[string]any{
						"type":     "dict",
						"key":      "ftrack",
						"is_group": true,
						"children": []any{
							map[string]any{"type": "boolean", "key": "enabled"},
							map[string]any{"type": "text", "key": "api_key", "formgen": "widget=password"},
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
						"type":        "list",
						"key":         "extensions",
						"object_type": map[string]any{"type": "text"},
					},
					map[string]any{
						"type": "collapsible-wrap",
						"children": []any{
							map[string]any{"type": "path", "key": "root", "multiplatform": true},
						},
					},
				},
			},
		},
	}
	node, err := schema.NewLoader().LoadDocuments(map[string]any{"system_settings": document}, "system_settings")
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return node
}

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo(Info{Title: "Studio Settings", Version: "2.0.0", Description: "system settings"}),
		WithOperation(Operation{Path: "/settings/system", Method: "POST", ID: "saveSystemSettings", Summary: "Save system settings"}),
		WithContentType("application/yaml"),
		WithResponse("201", "Created"),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}

	if got := internal.config.version; got != "3.1.0" {
		t.Fatalf("expected openapi version 3.1.0, got %q", got)
	}
	if got := internal.config.info.Title; got != "Studio Settings" {
		t.Fatalf("expected info title Studio Settings, got %q", got)
	}
	if got := internal.config.info.Version; got != "2.0.0" {
		t.Fatalf("expected info version 2.0.0, got %q", got)
	}
	if got := internal.config.info.Description; got != "system settings" {
		t.Fatalf("expected info description, got %q", got)
	}
	if got := internal.config.operation.Path; got != "/settings/system" {
		t.Fatalf("expected operation path /settings/system, got %q", got)
	}
	if got := internal.config.operation.Method; got != "post" {
		t.Fatalf("expected method post, got %q", got)
	}
	if got := internal.config.operation.ID; got != "saveSystemSettings" {
		t.Fatalf("expected operation id saveSystemSettings, got %q", got)
	}
	if got := internal.config.operation.Summary; got != "Save system settings" {
		t.Fatalf("expected operation summary, got %q", got)
	}
	if got := internal.config.mediaType; got != "application/yaml" {
		t.Fatalf("expected content type application/yaml, got %q", got)
	}
	if got := internal.config.responses["201"]; got != "Created" {
		t.Fatalf("expected response description Created, got %q", got)
	}
	if _, exists := internal.config.responses["204"]; !exists {
		t.Fatalf("expected default 204 response to remain configured")
	}
}

func requestSchema(t *testing.T, document map[string]any, path, method, contentType string) map[string]any {
	t.Helper()
	paths := document["paths"].(map[string]any)
	operation := paths[path].(map[string]any)[method].(map[string]any)
	content := operation["requestBody"].(map[string]any)["content"].(map[string]any)
	return content[contentType].(map[string]any)["schema"].(map[string]any)
}

func properties(t *testing.T, node map[string]any, key string) map[string]any {
	t.Helper()
	props, ok := node["properties"].(map[string]any)
	if !ok {
		t.Fatalf("node has no properties: %#v", node)
	}
	child, ok := props[key].(map[string]any)
	if !ok {
		t.Fatalf("property %q missing in %#v", key, props)
	}
	return child
}

func TestGenerateSettingsDocument(t *testing.T) {
	doc, err := NewGenerator().Generate(systemSchema(t))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Format != settings.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", settings.SchemaFormatOpenAPI, doc.Format)
	}
	document, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if err := validateDocument(document); err != nil {
		t.Fatalf("invalid document: %v", err)
	}
	if document["openapi"] != "3.0.3" {
		t.Fatalf("unexpected openapi version %v", document["openapi"])
	}
	if title := document["info"].(map[string]any)["title"]; title != "Settings Schema" {
		t.Fatalf("unexpected title %v", title)
	}

	root := requestSchema(t, document, "/settings", "put", "application/json")
	general := properties(t, root, "general")
	if general["title"] != "General" || general["x-settings-file"] != true {
		t.Fatalf("unexpected general metadata %#v", general)
	}
	if _, hasLabel := general["properties"].(map[string]any)[""]; hasLabel {
		t.Fatalf("labels must not become properties")
	}

	fps := properties(t, general, "fps")
	if fps["type"] != "integer" || fps["minimum"] != 1.0 || fps["maximum"] != 120.0 {
		t.Fatalf("unexpected fps schema %#v", fps)
	}
	if aspect := properties(t, general, "pixel_aspect"); aspect["type"] != "number" {
		t.Fatalf("decimal numbers are floats, got %#v", aspect)
	}
	if name := properties(t, general, "studio_name"); name["type"] != "string" || name["title"] != "Studio Name" {
		t.Fatalf("unexpected studio_name schema %#v", name)
	}

	ftrack := properties(t, general, "ftrack")
	if ftrack["x-settings-group"] != true {
		t.Fatalf("group flag missing %#v", ftrack)
	}
	if enabled := properties(t, ftrack, "enabled"); enabled["type"] != "boolean" || enabled["default"] != false {
		t.Fatalf("unexpected boolean schema %#v", enabled)
	}
	apiKey := properties(t, ftrack, "api_key")
	if apiKey["x-formgen"].(map[string]any)["widget"] != "password" {
		t.Fatalf("formgen hints missing %#v", apiKey)
	}

	renderer := properties(t, general, "renderer")
	enum, _ := renderer["enum"].([]any)
	if len(enum) != 2 || enum[0] != "arnold" || enum[1] != "vray" {
		t.Fatalf("unexpected enum %#v", renderer["enum"])
	}

	tools := properties(t, root, "tools")
	statuses := properties(t, tools, "statuses")
	if statuses["type"] != "object" {
		t.Fatalf("mutable dict is an object, got %#v", statuses)
	}
	if additional := statuses["additionalProperties"].(map[string]any); additional["type"] != "string" {
		t.Fatalf("unexpected item schema %#v", additional)
	}
	if required := statuses["required"].([]string); len(required) != 1 || required[0] != "default" {
		t.Fatalf("required keys missing %#v", statuses["required"])
	}
	extensions := properties(t, tools, "extensions")
	if extensions["type"] != "array" || extensions["items"].(map[string]any)["type"] != "string" {
		t.Fatalf("unexpected list schema %#v", extensions)
	}

	platformRoot := properties(t, tools, "root")
	for _, platform := range []string{"windows", "darwin", "linux"} {
		if properties(t, platformRoot, platform)["type"] != "string" {
			t.Fatalf("platform %s missing in %#v", platform, platformRoot)
		}
	}
}

func TestGenerateReusesComponents(t *testing.T) {
	host := func(key string) map[string]any {
		return map[string]any{
			"type": "dict",
			"key":  key,
			"children": []any{
				map[string]any{"type": "text", "key": "host"},
				map[string]any{"type": "number", "key": "port"},
			},
		}
	}
	document := map[string]any{
		"type":     "dict",
		"key":      "project_settings",
		"is_file":  true,
		"children": []any{host("primary"), host("secondary")},
	}
	node, err := schema.NewLoader().LoadDocuments(map[string]any{"project_settings": document}, "project_settings")
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}

	doc, err := NewGenerator().Generate(node)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	out := doc.Document.(map[string]any)
	root := requestSchema(t, out, "/settings", "put", "application/json")
	secondary := properties(t, root, "secondary")
	if secondary["$ref"] != "#/components/schemas/Root_primary" {
		t.Fatalf("expected reference to the first occurrence, got %#v", secondary)
	}
	schemas := out["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["Root_primary"]; !ok {
		t.Fatalf("component missing: %#v", schemas)
	}
}

func TestGenerateRootComponent(t *testing.T) {
	doc, err := NewGenerator(WithRootComponent("SystemSettings")).Generate(systemSchema(t))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	out := doc.Document.(map[string]any)
	root := requestSchema(t, out, "/settings", "put", "application/json")
	if root["$ref"] != "#/components/schemas/SystemSettings" {
		t.Fatalf("expected root reference, got %#v", root)
	}
	schemas := out["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["SystemSettings"]; !ok {
		t.Fatalf("root component missing: %#v", schemas)
	}
}

func TestGeneratorNil(t *testing.T) {
	doc, err := NewGenerator().Generate(nil)
	if err != nil {
		t.Fatalf("Generate(nil) returned error: %v", err)
	}
	document, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if err := validateDocument(document); err != nil {
		t.Fatalf("nil schema produced invalid document: %v", err)
	}
}

func TestGeneratorCustomTypes(t *testing.T) {
	node := &schema.Node{
		Type: "dict",
		Key:  "project_settings",
		Children: []*schema.Node{
			{Type: "color", Key: "background"},
		},
	}
	if _, err := NewGenerator().Generate(node); err == nil || !strings.Contains(err.Error(), `"color"`) {
		t.Fatalf("expected unknown type error, got %v", err)
	}

	registry := schema.NewRegistry()
	if err := registry.Register("color", schema.KindInput); err != nil {
		t.Fatalf("register: %v", err)
	}
	doc, err := NewGenerator(WithRegistry(registry)).Generate(node)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	root := requestSchema(t, doc.Document.(map[string]any), "/settings", "put", "application/json")
	if background := properties(t, root, "background"); len(background) != 0 {
		t.Fatalf("custom inputs are unconstrained, got %#v", background)
	}
}

func TestOptionWiresSnapshotSchema(t *testing.T) {
	root, err := settings.NewRoot(systemSchema(t), settings.WithCategory("system_settings"))
	if err != nil {
		t.Fatalf("new root: %v", err)
	}
	root.UpdateDefaultValue(map[string]any{
		"general": map[string]any{
			"studio_name":  "Studio",
			"fps":          25,
			"pixel_aspect": 1.0,
			"ftrack":       map[string]any{"enabled": false, "api_key": ""},
			"renderer":     "arnold",
		},
		"tools": map[string]any{
			"statuses":   map[string]any{"default": "Not started"},
			"extensions": []any{},
			"root":       map[string]any{"windows": "", "darwin": "", "linux": ""},
		},
	})
	if err := root.SetOverrideState(settings.StateDefaults); err != nil {
		t.Fatalf("set state: %v", err)
	}
	snapshot, err := root.Snapshot(Option(WithInfo(Info{Title: "System"})))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	doc, err := snapshot.Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if doc.Format != settings.SchemaFormatOpenAPI {
		t.Fatalf("expected openapi format, got %q", doc.Format)
	}
	if len(doc.Layers) != 1 || doc.Layers[0].Name != "defaults" {
		t.Fatalf("unexpected layers %#v", doc.Layers)
	}
	raw, err := json.Marshal(doc.Document)
	if err != nil {
		t.Fatalf("document must be json serialisable: %v", err)
	}
	if !strings.Contains(string(raw), `"title":"System"`) {
		t.Fatalf("info title missing in %s", raw)
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	node := systemSchema(t)
	generator := NewGenerator()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(node)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected document payload")
			}
		}()
	}
	wg.Wait()
}
