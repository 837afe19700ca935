package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/layering"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// ErrDefaultsNotFound is returned when a category has no stored defaults.
var ErrDefaultsNotFound = errors.New("state: defaults layer not found")

// Document is a raw layer document as stored, metadata keys included.
type Document = map[string]any

// Ref identifies one persisted layer document.
type Ref struct {
	Category string
	Level    layering.Level
	Project  string
}

// DefaultsRef references the defaults of category.
func DefaultsRef(category string) Ref {
	return Ref{Category: category, Level: layering.LevelDefaults}
}

// StudioRef references the studio overrides of category.
func StudioRef(category string) Ref {
	return Ref{Category: category, Level: layering.LevelStudio}
}

// ProjectRef references the overrides of category for one project.
func ProjectRef(category, project string) Ref {
	return Ref{Category: category, Level: layering.LevelProject, Project: project}
}

// RefFor returns the reference of the layer edited in override state s.
func RefFor(s settings.OverrideState, category, project string) (Ref, error) {
	switch s {
	case settings.StateDefaults:
		return DefaultsRef(category), nil
	case settings.StateStudio:
		return StudioRef(category), nil
	case settings.StateProject:
		return ProjectRef(category, project), nil
	default:
		return Ref{}, fmt.Errorf("state: no layer for override state %s", s)
	}
}

// State returns the override state editing the referenced layer.
func (r Ref) State() settings.OverrideState {
	switch r.Level {
	case layering.LevelDefaults:
		return settings.StateDefaults
	case layering.LevelStudio:
		return settings.StateStudio
	case layering.LevelProject:
		return settings.StateProject
	default:
		return settings.StateNotDefined
	}
}

// Identifier returns the canonical storage key, e.g.
// "project/demo/project_settings".
func (r Ref) Identifier() (string, error) {
	if r.Category == "" {
		return "", fmt.Errorf("missing category for %s layer", r.Level)
	}
	switch r.Level {
	case layering.LevelDefaults, layering.LevelStudio:
		if r.Project != "" {
			return "", fmt.Errorf("project %q set on %s layer", r.Project, r.Level)
		}
	case layering.LevelProject:
		if r.Project == "" {
			return "", fmt.Errorf("missing project name for project layer of %q", r.Category)
		}
	default:
		return "", fmt.Errorf("unsupported layer level %d", int(r.Level))
	}
	return layering.Layer{Category: r.Category, Level: r.Level, Project: r.Project}.Identifier(), nil
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty" toml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty" toml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty" toml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty" toml:"extra,omitempty"`
}

// Store loads and saves one layer document for a single reference. Missing
// documents are reported with ok == false and a nil error.
type Store interface {
	Load(ctx context.Context, ref Ref) (doc Document, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, doc Document, meta Meta) (Meta, error)
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
