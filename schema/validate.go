package schema

import (
	"errors"
	"fmt"
	"sort"
)

// Validate checks the structural invariants of a resolved tree. Every
// violation is collected; the returned error joins them so callers can
// errors.As for each specific type.
func Validate(root *Node, registry *Registry) error {
	if root == nil {
		return &SchemaFormatError{Reason: "root node is nil"}
	}
	if registry == nil {
		registry = NewRegistry()
	}

	var errs []error
	errs = append(errs, validateTypes(root, registry)...)
	if len(errs) > 0 {
		// The remaining checks depend on kinds being known.
		return errors.Join(errs...)
	}
	if kind, _ := registry.Lookup(root.Type); kind != KindDict {
		errs = append(errs, &SchemaFormatError{Reason: fmt.Sprintf("root must be a dict, got %q", root.Type)})
	}
	errs = append(errs, validateKeys(root, registry, "")...)
	errs = append(errs, validateEnvGroupKeys(root)...)
	errs = append(errs, validateGroups(root, "", false)...)
	if missing := collectMissingFileInfo(root, registry, "", false, nil); len(missing) > 0 {
		errs = append(errs, &SchemaMissingFileInfo{Paths: missing})
	}
	return errors.Join(errs...)
}

func validateTypes(root *Node, registry *Registry) []error {
	var errs []error
	root.Walk(func(keys []string, node *Node) bool {
		if _, ok := registry.Lookup(node.Type); !ok {
			errs = append(errs, &SchemaUnknownType{Path: JoinPath(keys...), Type: node.Type})
		}
		return true
	})
	return errs
}

// levelChildren returns the children that share one key namespace: wrapper
// children are lifted into their parent.
func levelChildren(node *Node, registry *Registry) []*Node {
	var out []*Node
	for _, child := range node.Children {
		kind, _ := registry.Lookup(child.Type)
		if kind == KindWrapper {
			out = append(out, levelChildren(child, registry)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func validateKeys(node *Node, registry *Registry, path string) []error {
	var errs []error
	kind, _ := registry.Lookup(node.Type)
	switch kind {
	case KindDict:
		seen := map[string]struct{}{}
		for _, child := range levelChildren(node, registry) {
			childKind, _ := registry.Lookup(child.Type)
			if childKind == KindGUI {
				continue
			}
			if child.Key == "" {
				errs = append(errs, &SchemaFormatError{
					Reason: fmt.Sprintf("%s child of %q has no key", child.Type, displayPath(path)),
				})
				continue
			}
			if _, ok := seen[child.Key]; ok {
				errs = append(errs, &SchemaDuplicatedKeys{Path: path, Key: child.Key})
				continue
			}
			seen[child.Key] = struct{}{}
			errs = append(errs, validateKeys(child, registry, JoinPath(path, child.Key))...)
		}
	case KindMutableDict, KindList:
		if node.ObjectType != nil {
			errs = append(errs, validateKeys(node.ObjectType, registry, path)...)
		}
	}
	return errs
}

func validateEnvGroupKeys(root *Node) []error {
	usage := map[string][]string{}
	root.Walk(func(keys []string, node *Node) bool {
		if node.EnvGroupKey != "" {
			usage[node.EnvGroupKey] = append(usage[node.EnvGroupKey], JoinPath(keys...))
		}
		return true
	})
	invalid := map[string][]string{}
	for key, paths := range usage {
		if len(paths) > 1 {
			sort.Strings(paths)
			invalid[key] = paths
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return []error{&SchemaDuplicatedEnvGroupKeys{Keys: invalid}}
}

func validateGroups(node *Node, path string, inGroup bool) []error {
	var errs []error
	if node.IsFile {
		inGroup = false
	}
	if node.IsGroup {
		if inGroup {
			errs = append(errs, &SchemeGroupHierarchyBug{Path: path})
		}
		inGroup = true
	}
	for _, child := range node.Children {
		errs = append(errs, validateGroups(child, JoinPath(path, child.Key), inGroup)...)
	}
	if node.ObjectType != nil {
		errs = append(errs, validateGroups(node.ObjectType, path, inGroup)...)
	}
	return errs
}

func collectMissingFileInfo(node *Node, registry *Registry, path string, hasFile bool, out []string) []string {
	hasFile = hasFile || node.IsFile
	kind, _ := registry.Lookup(node.Type)
	if kind.IsEndpoint() {
		if !hasFile {
			out = append(out, displayPath(path))
		}
		// Items of lists and mutable dicts are stored with their container.
		return out
	}
	for _, child := range node.Children {
		out = collectMissingFileInfo(child, registry, JoinPath(path, child.Key), hasFile, out)
	}
	return out
}
