package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pypeclub/OpenPype/schema"
)

var platforms = []string{"windows", "darwin", "linux"}

type schemaNode struct {
	Type                 string
	Format               string
	Title                string
	Properties           map[string]*schemaNode
	Required             []string
	Items                *schemaNode
	AdditionalProperties *schemaNode
	Enum                 []any
	Default              any
	Minimum              *float64
	Maximum              *float64
	formgen              map[string]string
	additionalMapping    map[string]any
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Title != "" {
		result["title"] = n.Title
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Minimum != nil {
		result["minimum"] = *n.Minimum
	}
	if n.Maximum != nil {
		result["maximum"] = *n.Maximum
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedNames(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}

	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}

	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	if n.AdditionalProperties != nil {
		result["additionalProperties"] = n.AdditionalProperties.inlineOpenAPI()
	}

	n.applyExtensions(result)
	return result
}

func (n *schemaNode) applyExtensions(result map[string]any) {
	if len(n.formgen) > 0 {
		result["x-formgen"] = orderedStringMap(n.formgen)
	}
	for key, value := range n.additionalMapping {
		result[key] = value
	}
}

func (n *schemaNode) ensureFormgen() map[string]string {
	if n.formgen == nil {
		n.formgen = map[string]string{}
	}
	return n.formgen
}

func (n *schemaNode) setExtension(key string, value any) {
	if n.additionalMapping == nil {
		n.additionalMapping = map[string]any{}
	}
	n.additionalMapping[key] = value
}

func (n *schemaNode) Digest() string {
	payload := n.inlineOpenAPI()
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type schemaBuilder struct {
	registry *schema.Registry
}

// buildSchemaGraph converts a settings schema into JSON schema nodes. The
// returned node describes the value of root; keyless wrappers are flattened
// into their enclosing object and decorations are dropped.
func buildSchemaGraph(root *schema.Node, registry *schema.Registry) (*schemaNode, error) {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	if root == nil {
		return newObjectNode(), nil
	}
	builder := &schemaBuilder{registry: registry}
	node, err := builder.build(root)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return newObjectNode(), nil
	}
	return node, nil
}

func (b *schemaBuilder) build(node *schema.Node) (*schemaNode, error) {
	kind, ok := b.registry.Lookup(node.Type)
	if !ok {
		return nil, fmt.Errorf("openapi: unknown schema type %q at %q", node.Type, node.Key)
	}
	var (
		out *schemaNode
		err error
	)
	switch kind {
	case schema.KindDict:
		out, err = b.buildDict(node)
	case schema.KindMutableDict:
		out, err = b.buildMutableDict(node)
	case schema.KindList:
		out, err = b.buildList(node)
	case schema.KindInput:
		out = buildInput(node)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	applyNodeMetadata(out, node)
	return out, nil
}

func (b *schemaBuilder) buildDict(node *schema.Node) (*schemaNode, error) {
	out := newObjectNode()
	if err := b.collectProperties(out, node.Children); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *schemaBuilder) collectProperties(out *schemaNode, children []*schema.Node) error {
	for _, child := range children {
		kind, _ := b.registry.Lookup(child.Type)
		if kind == schema.KindWrapper || (kind == schema.KindDict && child.Key == "") {
			if err := b.collectProperties(out, child.Children); err != nil {
				return err
			}
			continue
		}
		if child.Key == "" {
			continue
		}
		property, err := b.build(child)
		if err != nil {
			return err
		}
		if property == nil {
			continue
		}
		out.Properties[child.Key] = property
	}
	return nil
}

func (b *schemaBuilder) buildMutableDict(node *schema.Node) (*schemaNode, error) {
	out := newObjectNode()
	if node.ObjectType != nil {
		item, err := b.build(node.ObjectType)
		if err != nil {
			return nil, err
		}
		out.AdditionalProperties = item
	}
	out.Required = append(out.Required, node.RequiredKeys...)
	if node.ValueIsEnvGroup {
		out.setExtension("x-env-group", true)
	}
	return out, nil
}

func (b *schemaBuilder) buildList(node *schema.Node) (*schemaNode, error) {
	out := &schemaNode{Type: "array"}
	if node.ObjectType != nil {
		item, err := b.build(node.ObjectType)
		if err != nil {
			return nil, err
		}
		out.Items = item
	}
	if out.Items == nil {
		out.Items = &schemaNode{}
	}
	return out, nil
}

func buildInput(node *schema.Node) *schemaNode {
	switch node.Type {
	case "boolean":
		return &schemaNode{Type: "boolean", Default: false}
	case "number":
		out := &schemaNode{Type: "integer"}
		if decimal, ok := node.NumberOption("decimal"); ok && decimal > 0 {
			out.Type = "number"
		}
		if minimum, ok := node.NumberOption("minimum"); ok {
			out.Minimum = &minimum
		}
		if maximum, ok := node.NumberOption("maximum"); ok {
			out.Maximum = &maximum
		}
		return out
	case "text":
		out := &schemaNode{Type: "string"}
		if node.BoolOption("multiline", false) {
			out.ensureFormgen()["widget"] = "textarea"
		}
		return out
	case "path":
		return buildPath(node)
	case "enum":
		values := enumValues(node)
		if node.BoolOption("multiselection", false) {
			return &schemaNode{Type: "array", Items: &schemaNode{Type: "string", Enum: values}}
		}
		return &schemaNode{Type: "string", Enum: values}
	case "raw-json":
		if node.BoolOption("is_list", false) {
			return &schemaNode{Type: "array", Items: &schemaNode{}}
		}
		return newObjectNode()
	default:
		return &schemaNode{}
	}
}

func buildPath(node *schema.Node) *schemaNode {
	single := func() *schemaNode {
		if node.BoolOption("multipath", false) {
			return &schemaNode{Type: "array", Items: &schemaNode{Type: "string"}}
		}
		return &schemaNode{Type: "string"}
	}
	if !node.BoolOption("multiplatform", false) {
		return single()
	}
	out := newObjectNode()
	for _, platform := range platforms {
		out.Properties[platform] = single()
	}
	return out
}

// enumValues returns enum item keys; items given as {value: label} maps
// contribute their keys.
func enumValues(node *schema.Node) []any {
	raw, _ := node.Option("enum_items")
	list, _ := raw.([]any)
	var out []any
	for _, entry := range list {
		m, isMap := entry.(map[string]any)
		if !isMap {
			out = append(out, entry)
			continue
		}
		keys := make([]string, 0, len(m))
		for key := range m {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, key)
		}
	}
	return out
}

func applyNodeMetadata(out *schemaNode, node *schema.Node) {
	if out == nil {
		return
	}
	if node.Label != "" {
		out.Title = node.Label
	}
	if node.IsGroup {
		out.setExtension("x-settings-group", true)
	}
	if node.IsFile {
		out.setExtension("x-settings-file", true)
	}
	if node.EnvGroupKey != "" {
		out.setExtension("x-env-group-key", node.EnvGroupKey)
	}
	if tag := node.StringOption("formgen", ""); tag != "" {
		formgen := out.ensureFormgen()
		for key, value := range parseKeyValueTag(tag) {
			formgen[key] = value
		}
	}
}

// parseKeyValueTag parses "key=value,key2=value2" hints.
func parseKeyValueTag(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	values := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			key = part
			value = ""
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

func sortedNames(properties map[string]*schemaNode) []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func orderedStringMap(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
