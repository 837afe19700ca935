package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Kind is the closed set of entity implementations a type tag can map to.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput is a leaf value (boolean, number, text, ...).
	KindInput
	// KindDict is a dictionary with keys fixed by the schema.
	KindDict
	// KindMutableDict is a dictionary whose keys are edited by the user.
	KindMutableDict
	// KindList is an ordered list of homogeneous items.
	KindList
	// KindWrapper is a layout node without a key whose children belong to the
	// enclosing dictionary.
	KindWrapper
	// KindGUI is a decoration without value.
	KindGUI
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDict:
		return "dict"
	case KindMutableDict:
		return "dict-modifiable"
	case KindList:
		return "list"
	case KindWrapper:
		return "wrapper"
	case KindGUI:
		return "gui"
	default:
		return "unknown"
	}
}

// IsEndpoint reports whether entities of this kind own their override values
// directly instead of delegating to children.
func (k Kind) IsEndpoint() bool {
	return k == KindInput || k == KindMutableDict || k == KindList
}

// Registry maps schema type tags to kinds. A Registry is built once and passed
// explicitly to the Loader and to the entity factory.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewRegistry returns a registry holding the built-in type tags.
func NewRegistry() *Registry {
	r := &Registry{kinds: map[string]Kind{}}
	for _, tag := range []string{"boolean", "number", "text", "enum", "raw-json", "path"} {
		r.kinds[tag] = KindInput
	}
	r.kinds["dict"] = KindDict
	r.kinds["dict-modifiable"] = KindMutableDict
	r.kinds["list"] = KindList
	for _, tag := range []string{"form", "collapsible-wrap", "splitter"} {
		r.kinds[tag] = KindWrapper
	}
	for _, tag := range []string{"label", "separator"} {
		r.kinds[tag] = KindGUI
	}
	return r
}

// Register binds tag to kind. Rebinding an existing tag is rejected.
func (r *Registry) Register(tag string, kind Kind) error {
	if tag == "" {
		return fmt.Errorf("schema: type tag must not be empty")
	}
	if kind == KindUnknown {
		return fmt.Errorf("schema: type %q needs a kind", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kinds == nil {
		r.kinds = map[string]Kind{}
	}
	if existing, ok := r.kinds[tag]; ok {
		return fmt.Errorf("schema: type %q already registered as %s", tag, existing)
	}
	r.kinds[tag] = kind
	return nil
}

// Lookup returns the kind bound to tag.
func (r *Registry) Lookup(tag string) (Kind, bool) {
	if r == nil {
		return KindUnknown, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.kinds[tag]
	return kind, ok
}

// Tags returns registered tags sorted alphabetically.
func (r *Registry) Tags() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.kinds))
	for tag := range r.kinds {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
