package schema

import "strings"

// Node is one resolved schema descriptor. Nodes are built once by the Loader
// and must be treated as read-only afterwards; use Clone when a modified copy
// is required.
type Node struct {
	Type     string
	Key      string
	Label    string
	Children []*Node
	// ObjectType is the template used for every item of a mutable dict or list.
	ObjectType *Node

	IsGroup         bool
	IsFile          bool
	RequiredKeys    []string
	ValueIsEnvGroup bool
	EnvGroupKey     string
	CollapsibleKey  bool

	// Options keeps every field that is not structural (GUI metadata, input
	// modifiers such as "minimum" or "enum_items").
	Options map[string]any
}

var structuralFields = map[string]struct{}{
	"type":               {},
	"key":                {},
	"label":              {},
	"children":           {},
	"object_type":        {},
	"is_group":           {},
	"is_file":            {},
	"required_keys":      {},
	"value_is_env_group": {},
	"env_group_key":      {},
	"collapsible_key":    {},
}

// Option returns a non-structural field value.
func (n *Node) Option(name string) (any, bool) {
	if n == nil || n.Options == nil {
		return nil, false
	}
	value, ok := n.Options[name]
	return value, ok
}

// StringOption returns a string option or fallback.
func (n *Node) StringOption(name, fallback string) string {
	value, ok := n.Option(name)
	if !ok {
		return fallback
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}

// BoolOption returns a boolean option or fallback.
func (n *Node) BoolOption(name string, fallback bool) bool {
	value, ok := n.Option(name)
	if !ok {
		return fallback
	}
	if b, ok := value.(bool); ok {
		return b
	}
	return fallback
}

// NumberOption returns a numeric option as float64.
func (n *Node) NumberOption(name string) (float64, bool) {
	value, ok := n.Option(name)
	if !ok {
		return 0, false
	}
	return toFloat(value)
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.Clone()
		}
	}
	out.ObjectType = n.ObjectType.Clone()
	if n.RequiredKeys != nil {
		out.RequiredKeys = append([]string(nil), n.RequiredKeys...)
	}
	if n.Options != nil {
		out.Options = cloneAny(n.Options).(map[string]any)
	}
	return &out
}

// Walk visits n and its descendants depth first. Object type templates are
// visited after regular children. Returning false from fn skips the subtree.
func (n *Node) Walk(fn func(path []string, node *Node) bool) {
	n.walk(nil, fn)
}

func (n *Node) walk(path []string, fn func([]string, *Node) bool) {
	if n == nil {
		return
	}
	if n.Key != "" {
		path = append(append([]string(nil), path...), n.Key)
	}
	if !fn(path, n) {
		return
	}
	for _, child := range n.Children {
		child.walk(path, fn)
	}
	n.ObjectType.walk(path, fn)
}

// JoinPath renders a key path the way entity paths are rendered.
func JoinPath(keys ...string) string {
	filtered := keys[:0:0]
	for _, key := range keys {
		if key != "" {
			filtered = append(filtered, key)
		}
	}
	return strings.Join(filtered, "/")
}

// nodeFromMap converts a fully resolved raw descriptor into a Node.
func nodeFromMap(raw map[string]any) (*Node, error) {
	node := &Node{}
	typ, _ := raw["type"].(string)
	if typ == "" {
		return nil, &SchemaFormatError{Reason: "node is missing \"type\"", Raw: raw}
	}
	node.Type = typ
	node.Key, _ = raw["key"].(string)
	node.Label, _ = raw["label"].(string)
	node.IsGroup, _ = raw["is_group"].(bool)
	node.IsFile, _ = raw["is_file"].(bool)
	node.ValueIsEnvGroup, _ = raw["value_is_env_group"].(bool)
	node.EnvGroupKey, _ = raw["env_group_key"].(string)
	node.CollapsibleKey, _ = raw["collapsible_key"].(bool)

	if keys, ok := raw["required_keys"].([]any); ok {
		for _, key := range keys {
			if s, ok := key.(string); ok {
				node.RequiredKeys = append(node.RequiredKeys, s)
			}
		}
	}

	if children, ok := raw["children"].([]any); ok {
		for _, child := range children {
			childMap, ok := child.(map[string]any)
			if !ok {
				return nil, &SchemaFormatError{Reason: "child is not an object", Raw: raw}
			}
			converted, err := nodeFromMap(childMap)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, converted)
		}
	}

	switch objectType := raw["object_type"].(type) {
	case map[string]any:
		converted, err := nodeFromMap(objectType)
		if err != nil {
			return nil, err
		}
		node.ObjectType = converted
	case string:
		// Legacy form: the item type is a bare tag and modifiers live in
		// "input_modifiers".
		legacy := map[string]any{"type": objectType}
		if modifiers, ok := raw["input_modifiers"].(map[string]any); ok {
			for key, value := range modifiers {
				legacy[key] = value
			}
		}
		converted, err := nodeFromMap(legacy)
		if err != nil {
			return nil, err
		}
		node.ObjectType = converted
		if node.Options == nil {
			node.Options = map[string]any{}
		}
		node.Options["legacy_object_type"] = true
	}

	for key, value := range raw {
		if _, ok := structuralFields[key]; ok {
			continue
		}
		if node.Options == nil {
			node.Options = map[string]any{}
		}
		node.Options[key] = value
	}
	return node, nil
}

func cloneAny(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = cloneAny(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return value
	}
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	default:
		return 0, false
	}
}
