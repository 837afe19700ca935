package schema

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaNotFoundError reports an unresolved entry point or reference.
type SchemaNotFoundError struct {
	Name string
	// Reason is set when the name exists but is used the wrong way (a
	// template referenced as schema or the reverse).
	Reason string
}

func (e *SchemaNotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason != "" {
		return fmt.Sprintf("schema: %q %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("schema: %q was not found", e.Name)
}

// SchemaTemplateMissingKeys reports placeholders without template data.
type SchemaTemplateMissingKeys struct {
	Template string
	Required []string
	Missing  []string
}

func (e *SchemaTemplateMissingKeys) Error() string {
	if e == nil {
		return "<nil>"
	}
	name := e.Template
	if name == "" {
		name = "<inline>"
	}
	return fmt.Sprintf(
		"schema: template %q is missing keys %s (required %s)",
		name, quoteAll(e.Missing), quoteAll(e.Required),
	)
}

// SchemaDuplicatedEnvGroupKeys reports environment group keys used more than
// once. Keys maps each offending env group key to every path using it.
type SchemaDuplicatedEnvGroupKeys struct {
	Keys map[string][]string
}

func (e *SchemaDuplicatedEnvGroupKeys) Error() string {
	if e == nil {
		return "<nil>"
	}
	keys := make([]string, 0, len(e.Keys))
	for key := range e.Keys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%q used by %s", key, quoteAll(e.Keys[key])))
	}
	return "schema: duplicated environment group keys: " + strings.Join(parts, "; ")
}

// SchemaDuplicatedKeys reports two siblings sharing the same key.
type SchemaDuplicatedKeys struct {
	Path string
	Key  string
}

func (e *SchemaDuplicatedKeys) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("schema: key %q is duplicated under %q", e.Key, displayPath(e.Path))
}

// SchemeGroupHierarchyBug reports a group nested inside another group.
type SchemeGroupHierarchyBug struct {
	Path string
}

func (e *SchemeGroupHierarchyBug) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("schema: group %q is nested inside another group", displayPath(e.Path))
}

// SchemaMissingFileInfo reports values that would not be stored in any file.
type SchemaMissingFileInfo struct {
	Paths []string
}

func (e *SchemaMissingFileInfo) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("schema: values without file boundary: %s", quoteAll(e.Paths))
}

// SchemaUnknownType reports a type tag missing from the registry.
type SchemaUnknownType struct {
	Path string
	Type string
}

func (e *SchemaUnknownType) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("schema: unknown type %q at %q", e.Type, displayPath(e.Path))
}

// SchemaFormatError reports a document that does not have the node shape.
type SchemaFormatError struct {
	File   string
	Reason string
	Raw    map[string]any
	Err    error
}

func (e *SchemaFormatError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "schema: " + e.Reason
	if e.File != "" {
		msg = fmt.Sprintf("schema: %s: %s", e.File, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaFormatError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = fmt.Sprintf("%q", value)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
