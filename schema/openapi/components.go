package openapi

import (
	"strconv"
	"strings"
	"unicode"
)

const componentsPrefix = "#/components/schemas/"

// components tracks object and array schemas by digest. A schema met a
// second time is published and referenced; its first occurrence stays
// inline. Pinned schemas are published on first use.
type components struct {
	byDigest map[string]*component
	taken    map[string]bool
}

type component struct {
	name   string
	node   *schemaNode
	uses   int
	pinned bool
}

func (c *component) published() bool {
	return c.pinned || c.uses > 1
}

func newComponents() *components {
	return &components{byDigest: map[string]*component{}, taken: map[string]bool{}}
}

// use records one occurrence of node and returns the reference to emit, or
// "" when the schema should be written inline.
func (c *components) use(hint string, node *schemaNode, pin bool) string {
	if node == nil {
		return ""
	}
	digest := node.Digest()
	entry, seen := c.byDigest[digest]
	if !seen {
		entry = &component{name: c.claim(hint), node: node}
		c.byDigest[digest] = entry
	}
	entry.uses++
	entry.pinned = entry.pinned || pin
	if !entry.published() {
		return ""
	}
	return componentsPrefix + entry.name
}

// schemas renders every published component, or nil when there are none.
func (c *components) schemas() map[string]any {
	var out map[string]any
	for _, entry := range c.byDigest {
		if !entry.published() {
			continue
		}
		if out == nil {
			out = map[string]any{}
		}
		out[entry.name] = entry.node.inlineOpenAPI()
	}
	return out
}

func (c *components) claim(hint string) string {
	base := componentName(hint)
	name := base
	for i := 1; c.taken[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	c.taken[name] = true
	return name
}

// componentName turns a hint into a valid component key: runs of characters
// outside [A-Za-z0-9_] become "_", and a leading digit gets a "_" prefix.
func componentName(hint string) string {
	parts := strings.FieldsFunc(hint, func(r rune) bool {
		return r != '_' && (r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	name := strings.Trim(strings.Join(parts, "_"), "_")
	if name == "" {
		return "Schema"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// joinHint builds nested component hints such as "Root_tools_item".
func joinHint(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "Schema"
	}
	return strings.Join(kept, "_")
}
