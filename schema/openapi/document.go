package openapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// documentBuilder renders one schema graph into an OpenAPI document. It is
// used for a single Generate call.
type documentBuilder struct {
	cfg        generatorConfig
	components *components
}

func newDocumentBuilder(cfg generatorConfig) *documentBuilder {
	return &documentBuilder{cfg: cfg, components: newComponents()}
}

func (b *documentBuilder) document(root *schemaNode) (map[string]any, error) {
	if root == nil {
		return nil, errors.New("openapi: nil schema graph")
	}
	var body map[string]any
	if name := b.cfg.rootName; name != "" {
		body = map[string]any{"$ref": b.components.use(name, root, true)}
		b.children(name, root)
	} else {
		body = b.schema(root, "Root")
	}

	doc := map[string]any{
		"openapi": b.cfg.version,
		"info":    b.info(),
		"paths": map[string]any{
			b.cfg.operation.Path: map[string]any{
				b.cfg.operation.Method: b.operation(body),
			},
		},
	}
	if schemas := b.components.schemas(); schemas != nil {
		doc["components"] = map[string]any{"schemas": schemas}
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *documentBuilder) info() map[string]any {
	info := map[string]any{"title": b.cfg.info.Title, "version": b.cfg.info.Version}
	if b.cfg.info.Description != "" {
		info["description"] = b.cfg.info.Description
	}
	return info
}

func (b *documentBuilder) operation(body map[string]any) map[string]any {
	responses := map[string]any{}
	for status, text := range b.cfg.responses {
		responses[status] = map[string]any{"description": text}
	}
	op := map[string]any{
		"operationId": b.cfg.operationID(),
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.cfg.mediaType: map[string]any{"schema": body},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(b.cfg.operation.Summary); summary != "" {
		op["summary"] = summary
	}
	return op
}

// schema renders node, replacing shared objects and arrays with references.
func (b *documentBuilder) schema(node *schemaNode, hint string) map[string]any {
	if node.Type == "object" || node.Type == "array" {
		if ref := b.components.use(hint, node, false); ref != "" {
			return map[string]any{"$ref": ref}
		}
	}

	out := node.baseMap()
	if len(node.Properties) > 0 || node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedNames(node.Properties) {
			props[key] = b.schema(node.Properties[key], joinHint(hint, key))
		}
		out["properties"] = props
	}
	if len(node.Required) > 0 {
		required := append([]string(nil), node.Required...)
		sort.Strings(required)
		out["required"] = required
	}
	if node.Items != nil {
		out["items"] = b.schema(node.Items, joinHint(hint, "item"))
	}
	if node.AdditionalProperties != nil {
		out["additionalProperties"] = b.schema(node.AdditionalProperties, joinHint(hint, "value"))
	}
	node.applyExtensions(out)
	return out
}

// children walks a pinned component so shared descendants are counted.
func (b *documentBuilder) children(hint string, node *schemaNode) {
	for _, key := range sortedNames(node.Properties) {
		b.schema(node.Properties[key], joinHint(hint, key))
	}
	if node.Items != nil {
		b.schema(node.Items, joinHint(hint, "item"))
	}
	if node.AdditionalProperties != nil {
		b.schema(node.AdditionalProperties, joinHint(hint, "value"))
	}
}

// validateDocument checks the parts of an OpenAPI document that settings
// consumers rely on: version, info and one request body per operation.
func validateDocument(doc map[string]any) error {
	if doc == nil {
		return errors.New("openapi: nil document")
	}
	if v, _ := doc["openapi"].(string); v == "" {
		return errors.New("openapi: missing openapi version")
	}
	info, _ := doc["info"].(map[string]any)
	for _, field := range []string{"title", "version"} {
		if s, _ := info[field].(string); s == "" {
			return fmt.Errorf("openapi: info.%s is empty", field)
		}
	}
	paths, _ := doc["paths"].(map[string]any)
	if len(paths) == 0 {
		return errors.New("openapi: no paths")
	}
	for path, item := range paths {
		ops, _ := item.(map[string]any)
		if len(ops) == 0 {
			return fmt.Errorf("openapi: path %q has no operations", path)
		}
		for method, raw := range ops {
			if err := validateOperation(raw); err != nil {
				return fmt.Errorf("openapi: %s %s: %w", strings.ToUpper(method), path, err)
			}
		}
	}
	return nil
}

func validateOperation(raw any) error {
	op, _ := raw.(map[string]any)
	if op == nil {
		return errors.New("operation is not an object")
	}
	if _, ok := op["operationId"].(string); !ok {
		return errors.New("missing operationId")
	}
	body, _ := op["requestBody"].(map[string]any)
	if content, _ := body["content"].(map[string]any); len(content) == 0 {
		return errors.New("missing request body content")
	}
	if _, ok := op["responses"].(map[string]any); !ok {
		return errors.New("missing responses")
	}
	return nil
}
