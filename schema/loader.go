package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	refTypeSchema   = "schema"
	refTypeTemplate = "schema_template"
)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRegistry sets the type registry used for validation.
func WithRegistry(registry *Registry) LoaderOption {
	return func(l *Loader) {
		if registry != nil {
			l.registry = registry
		}
	}
}

// WithLogger attaches a logger receiving loader warnings.
func WithLogger(logger Logger) LoaderOption {
	return func(l *Loader) {
		if logger == nil {
			l.logger = NoopLogger{}
			return
		}
		l.logger = logger
	}
}

// Loader resolves schema directories into Node trees.
type Loader struct {
	registry *Registry
	logger   Logger
}

// NewLoader constructs a Loader. Without WithRegistry the built-in registry is
// used.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.registry == nil {
		l.registry = NewRegistry()
	}
	if l.logger == nil {
		l.logger = NoopLogger{}
	}
	return l
}

// Registry returns the registry the loader validates against.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// LoadDir loads every schema document below root and resolves entry.
func LoadDir(root, entry string, opts ...LoaderOption) (*Node, error) {
	return NewLoader(opts...).LoadDir(root, entry)
}

// LoadDir is Load over os.DirFS(root).
func (l *Loader) LoadDir(root, entry string) (*Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("schema: open %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema: %q is not a directory", root)
	}
	return l.Load(os.DirFS(root), entry)
}

// Load reads every .json/.yaml/.yml document of fsys, resolves the schema
// named entry and validates the result.
func (l *Loader) Load(fsys fs.FS, entry string) (*Node, error) {
	coll, err := readCollection(fsys)
	if err != nil {
		return nil, err
	}
	return l.resolve(coll, entry)
}

// LoadDocuments resolves entry from in-memory documents. Each value must be a
// map (schema) or a list (template).
func (l *Loader) LoadDocuments(documents map[string]any, entry string) (*Node, error) {
	coll := newCollection()
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := coll.add(name, name, normalizeDocument(documents[name])); err != nil {
			return nil, err
		}
	}
	return l.resolve(coll, entry)
}

func (l *Loader) resolve(coll *collection, entry string) (*Node, error) {
	raw, ok := coll.schemas[entry]
	if !ok {
		if _, isTemplate := coll.templates[entry]; isTemplate {
			return nil, &SchemaNotFoundError{Name: entry, Reason: "is a template and can't be an entry point"}
		}
		return nil, &SchemaNotFoundError{Name: entry}
	}
	if typ, _ := raw["type"].(string); typ == refTypeSchema || typ == refTypeTemplate {
		return nil, &SchemaFormatError{File: coll.files[entry], Reason: "entry point can't be a reference"}
	}

	r := &resolver{coll: coll, logger: l.logger}
	resolved, err := r.resolveNode(cloneAny(raw).(map[string]any), []string{entry})
	if err != nil {
		return nil, err
	}
	root, err := nodeFromMap(resolved)
	if err != nil {
		return nil, err
	}
	l.warnLegacy(root)
	if err := Validate(root, l.registry); err != nil {
		return nil, err
	}
	return root, nil
}

func (l *Loader) warnLegacy(root *Node) {
	root.Walk(func(keys []string, node *Node) bool {
		if node.BoolOption("legacy_object_type", false) {
			l.logger.Log(LogEvent{
				Level:   LogLevelWarn,
				Path:    JoinPath(keys...),
				Message: "object_type given as a type name; use an object with modifiers instead of input_modifiers",
			})
		}
		return true
	})
}

type collection struct {
	schemas   map[string]map[string]any
	templates map[string][]any
	files     map[string]string
}

func newCollection() *collection {
	return &collection{
		schemas:   map[string]map[string]any{},
		templates: map[string][]any{},
		files:     map[string]string{},
	}
}

func (c *collection) add(name, file string, document any) error {
	if existing, ok := c.files[name]; ok {
		return &SchemaFormatError{
			File:   file,
			Reason: fmt.Sprintf("name %q is already defined by %s", name, existing),
		}
	}
	switch typed := document.(type) {
	case map[string]any:
		c.schemas[name] = typed
	case []any:
		c.templates[name] = typed
	default:
		return &SchemaFormatError{File: file, Reason: "document must be an object or a list"}
	}
	c.files[name] = file
	return nil
}

func readCollection(fsys fs.FS) (*collection, error) {
	coll := newCollection()
	err := fs.WalkDir(fsys, ".", func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(filePath))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", filePath, err)
		}
		document, err := decodeDocument(ext, data)
		if err != nil {
			return &SchemaFormatError{File: filePath, Reason: "unable to parse document", Err: err}
		}
		name := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
		return coll.add(name, filePath, document)
	})
	if err != nil {
		var formatErr *SchemaFormatError
		if errors.As(err, &formatErr) {
			return nil, err
		}
		return nil, fmt.Errorf("schema: walk: %w", err)
	}
	return coll, nil
}

func decodeDocument(ext string, data []byte) (any, error) {
	var document any
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, err
		}
	}
	return normalizeDocument(document), nil
}

// normalizeDocument converts YAML specific shapes (map[any]any, int) into the
// JSON shapes the resolver works with.
func normalizeDocument(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeDocument(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = normalizeDocument(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeDocument(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeDocument(item)
		}
		return out
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case uint64:
		return float64(typed)
	default:
		return value
	}
}

type resolver struct {
	coll   *collection
	logger Logger
}

func (r *resolver) resolveNode(raw map[string]any, stack []string) (map[string]any, error) {
	for _, field := range []string{"children", "object_type"} {
		value, ok := raw[field]
		if !ok || value == nil {
			continue
		}
		if field == "object_type" {
			objectType, ok := value.(map[string]any)
			if !ok {
				continue
			}
			items, err := r.resolveChild(objectType, stack)
			if err != nil {
				return nil, err
			}
			if len(items) != 1 {
				return nil, &SchemaFormatError{
					Reason: fmt.Sprintf("object_type of %q must resolve to exactly one node, got %d", raw["key"], len(items)),
				}
			}
			raw[field] = items[0]
			continue
		}

		children, ok := value.([]any)
		if !ok {
			return nil, &SchemaFormatError{Reason: "children must be a list", Raw: raw}
		}
		resolved := make([]any, 0, len(children))
		for _, child := range children {
			childMap, ok := child.(map[string]any)
			if !ok {
				return nil, &SchemaFormatError{Reason: "child must be an object", Raw: raw}
			}
			items, err := r.resolveChild(childMap, stack)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				resolved = append(resolved, item)
			}
		}
		raw[field] = resolved
	}
	return raw, nil
}

// resolveChild returns the nodes a child expands to: one for plain nodes and
// schema references, any number for templates.
func (r *resolver) resolveChild(child map[string]any, stack []string) ([]map[string]any, error) {
	typ, _ := child["type"].(string)
	switch typ {
	case refTypeSchema:
		name, _ := child["name"].(string)
		target, ok := r.coll.schemas[name]
		if !ok {
			if _, isTemplate := r.coll.templates[name]; isTemplate {
				return nil, &SchemaNotFoundError{Name: name, Reason: "is a template used as `schema`"}
			}
			return nil, &SchemaNotFoundError{Name: name}
		}
		if containsString(stack, name) {
			return nil, &SchemaFormatError{
				File:   r.coll.files[name],
				Reason: fmt.Sprintf("circular schema reference %s", strings.Join(append(stack, name), " -> ")),
			}
		}
		resolved, err := r.resolveNode(cloneAny(target).(map[string]any), append(stack, name))
		if err != nil {
			return nil, err
		}
		return []map[string]any{resolved}, nil
	case refTypeTemplate:
		return r.expandTemplate(child, stack)
	default:
		resolved, err := r.resolveNode(child, stack)
		if err != nil {
			return nil, err
		}
		return []map[string]any{resolved}, nil
	}
}

func (r *resolver) expandTemplate(ref map[string]any, stack []string) ([]map[string]any, error) {
	name, _ := ref["name"].(string)
	template, ok := r.coll.templates[name]
	if !ok {
		if _, isSchema := r.coll.schemas[name]; isSchema {
			return nil, &SchemaNotFoundError{Name: name, Reason: "is a schema used as `schema_template`"}
		}
		return nil, &SchemaNotFoundError{Name: name, Reason: "template was not found"}
	}
	if containsString(stack, name) {
		return nil, &SchemaFormatError{
			File:   r.coll.files[name],
			Reason: fmt.Sprintf("circular template reference %s", strings.Join(append(stack, name), " -> ")),
		}
	}

	dataSets, err := templateDataSets(ref["template_data"])
	if err != nil {
		return nil, &SchemaFormatError{File: r.coll.files[name], Reason: err.Error()}
	}

	var output []map[string]any
	for _, data := range dataSets {
		filled, err := fillTemplate(template, data)
		if err != nil {
			var missing *SchemaTemplateMissingKeys
			if errors.As(err, &missing) {
				missing.Template = name
			}
			return nil, err
		}
		for _, item := range filled {
			itemMap, ok := item.(map[string]any)
			if !ok {
				return nil, &SchemaFormatError{File: r.coll.files[name], Reason: "template items must be objects"}
			}
			items, err := r.resolveChild(itemMap, append(stack, name))
			if err != nil {
				return nil, err
			}
			output = append(output, items...)
		}
	}
	return output, nil
}

// templateDataSets normalizes template_data: absent means one empty set, a map
// means one set and a list means one set per entry.
func templateDataSets(value any) ([]map[string]any, error) {
	switch typed := value.(type) {
	case nil:
		return []map[string]any{{}}, nil
	case map[string]any:
		return []map[string]any{typed}, nil
	case []any:
		sets := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			data, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("template_data entries must be objects")
			}
			sets = append(sets, data)
		}
		return sets, nil
	default:
		return nil, fmt.Errorf("template_data must be an object or a list of objects")
	}
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
