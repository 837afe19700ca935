package layering

import (
	"fmt"
	"slices"
)

// Level identifies the precedence of a layer document. Higher levels override
// lower levels when resolving.
type Level int

const (
	// LevelUnknown guards against layers built without metadata.
	LevelUnknown Level = iota
	// LevelDefaults is the weakest layer shipped with the schema.
	LevelDefaults
	// LevelStudio holds studio wide overrides.
	LevelStudio
	// LevelProject holds overrides of a single project.
	LevelProject
)

func (l Level) String() string {
	switch l {
	case LevelDefaults:
		return "defaults"
	case LevelStudio:
		return "studio"
	case LevelProject:
		return "project"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string representation into the matching Level.
func ParseLevel(value string) Level {
	switch value {
	case "defaults", "DEFAULTS", "default":
		return LevelDefaults
	case "studio", "STUDIO":
		return LevelStudio
	case "project", "PROJECT":
		return LevelProject
	default:
		return LevelUnknown
	}
}

// Layer is a single override document within a chain.
type Layer struct {
	Category string // settings category, e.g. "system_settings"
	Level    Level
	Project  string // project name when Level == LevelProject
	Document map[string]any
}

// Identifier returns a stable slug used for deduplication and storage keys,
// e.g. "project/demo/project_settings".
func (l Layer) Identifier() string {
	switch l.Level {
	case LevelProject:
		return fmt.Sprintf("project/%s/%s", l.Project, l.Category)
	case LevelStudio:
		return fmt.Sprintf("studio/%s", l.Category)
	case LevelDefaults:
		return fmt.Sprintf("defaults/%s", l.Category)
	default:
		return fmt.Sprintf("unknown/%s", l.Category)
	}
}

// Chain describes the ordered layering sequence from strongest to weakest.
type Chain struct {
	ordered []Layer
}

// NewChain constructs a chain and deduplicates layers by Identifier, keeping
// the first occurrence. Stronger levels are placed before weaker ones.
func NewChain(layers ...Layer) Chain {
	filtered := make([]Layer, 0, len(layers))
	seen := map[string]struct{}{}

	for _, layer := range layers {
		if layer.Level == LevelUnknown {
			continue
		}
		id := layer.Identifier()
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, layer)
	}

	slices.SortStableFunc(filtered, func(a, b Layer) int {
		if a.Level == b.Level {
			return 0
		}
		if a.Level > b.Level {
			return -1
		}
		return 1
	})

	return Chain{ordered: filtered}
}

// Ordered returns the layers from strongest (index 0) to weakest.
func (c Chain) Ordered() []Layer {
	out := make([]Layer, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Resolve applies every layer on top of the weaker ones and strips metadata
// from the result.
func (c Chain) Resolve() map[string]any {
	result := map[string]any{}
	for i := len(c.ordered) - 1; i >= 0; i-- {
		result = ApplyOverrides(result, c.ordered[i].Document)
	}
	return StripMetadata(result).(map[string]any)
}

// LookupPath returns the value stored at path inside doc.
func LookupPath(doc map[string]any, path []string) (any, bool) {
	var current any = doc
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	if doc == nil {
		return nil, false
	}
	return current, true
}
