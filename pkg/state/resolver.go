package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/pkg/activity"
	"github.com/pypeclub/OpenPype/schema"
)

// Resolver loads layer documents from a Store into settings trees and saves
// edited layers back.
type Resolver struct {
	Store Store
	// Hooks receive a settings.layer.saved event per successful Save.
	Hooks activity.Hooks
	// Activity controls emission. The zero Config emits on the default
	// channel.
	Activity activity.Config
	// ActorID is attached to emitted events.
	ActorID string
	// Now defaults to time.Now.
	Now func() time.Time
	// Logger receives a warning when hooks fail after a save. Nil drops it.
	Logger settings.Logger
}

// Mutator edits an opened settings tree.
type Mutator func(root *settings.Root) error

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Resolver) check(ref Ref) (string, error) {
	if r.Store == nil {
		return "", fmt.Errorf("state: store is required")
	}
	id, err := ref.Identifier()
	if err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	return id, nil
}

func (r Resolver) load(ctx context.Context, ref Ref) (Document, Meta, bool, error) {
	doc, meta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		id, _ := ref.Identifier()
		return nil, Meta{}, false, fmt.Errorf("state: load %q: %w", id, err)
	}
	return doc, meta, ok, nil
}

// Open builds a settings tree for node with every layer up to ref loaded and
// the tree moved to the state editing ref. The returned Meta belongs to the
// referenced layer; it is zero when that layer was never saved.
//
// Missing studio overrides load as an empty document. A missing project
// document leaves the project layer unset.
func (r Resolver) Open(ctx context.Context, node *schema.Node, ref Ref, opts ...settings.Option) (*settings.Root, Meta, error) {
	id, err := r.check(ref)
	if err != nil {
		return nil, Meta{}, err
	}
	opts = append(opts, settings.WithCategory(ref.Category), settings.WithProject(ref.Project))
	root, err := settings.NewRoot(node, opts...)
	if err != nil {
		return nil, Meta{}, err
	}

	defaults, meta, ok, err := r.load(ctx, DefaultsRef(ref.Category))
	if err != nil {
		return nil, Meta{}, err
	}
	if !ok {
		return nil, Meta{}, fmt.Errorf("%w: %q", ErrDefaultsNotFound, ref.Category)
	}
	root.UpdateDefaultValue(defaults)

	if ref.Level >= layering.LevelStudio {
		studio, studioMeta, ok, err := r.load(ctx, StudioRef(ref.Category))
		if err != nil {
			return nil, Meta{}, err
		}
		if !ok {
			studio = Document{}
		}
		root.UpdateStudioValue(studio)
		meta = studioMeta
	}
	if ref.Level == layering.LevelProject {
		project, projectMeta, ok, err := r.load(ctx, ref)
		if err != nil {
			return nil, Meta{}, err
		}
		if ok {
			root.UpdateProjectValue(project)
		}
		meta = projectMeta
	}

	if err := root.SetOverrideState(ref.State()); err != nil {
		return nil, Meta{}, fmt.Errorf("state: open %q: %w", id, err)
	}
	return root, meta, nil
}

// Save persists the layer edited by root. A non-empty meta.ETag must match
// the stored ETag, otherwise ErrETagMismatch is returned and nothing is
// written. On success the saved document becomes the tree's baseline.
func (r Resolver) Save(ctx context.Context, root *settings.Root, meta Meta) (Meta, error) {
	if root == nil {
		return Meta{}, fmt.Errorf("state: root is required")
	}
	state := root.OverrideState()
	ref, err := RefFor(state, root.Category(), root.Project())
	if err != nil {
		return Meta{}, err
	}
	id, err := r.check(ref)
	if err != nil {
		return Meta{}, err
	}

	_, current, ok, err := r.load(ctx, ref)
	if err != nil {
		return Meta{}, err
	}
	if meta.ETag != "" && ok && current.ETag != meta.ETag {
		return current, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.ETag)
	}

	doc := root.SettingsValue()
	etag, err := digest(doc)
	if err != nil {
		return Meta{}, fmt.Errorf("state: digest %q: %w", id, err)
	}
	next := mergeMeta(current, Meta{Extra: meta.Extra})
	next.SnapshotID = uuid.NewString()
	next.ETag = etag
	next.UpdatedAt = r.now().UTC()

	saved, err := r.Store.Save(ctx, ref, doc, next)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q: %w", id, err)
	}

	switch state {
	case settings.StateDefaults:
		root.UpdateDefaultValue(doc)
	case settings.StateStudio:
		root.UpdateStudioValue(doc)
	case settings.StateProject:
		root.UpdateProjectValue(doc)
	}
	if err := root.SetOverrideState(state); err != nil {
		return saved, err
	}
	r.emitSaved(ctx, root, id, saved)
	return saved, nil
}

// Mutate opens ref, applies fn and saves the layer when fn changed anything.
// meta.ETag is checked against the stored layer before fn runs.
func (r Resolver) Mutate(ctx context.Context, node *schema.Node, ref Ref, meta Meta, fn Mutator, opts ...settings.Option) (*settings.Root, Meta, error) {
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}
	root, loaded, err := r.Open(ctx, node, ref, opts...)
	if err != nil {
		return nil, Meta{}, err
	}
	if meta.ETag != "" && loaded.ETag != "" && meta.ETag != loaded.ETag {
		return nil, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}
	if err := fn(root); err != nil {
		return nil, loaded, err
	}
	if !root.HasUnsavedChanges() {
		return root, loaded, nil
	}
	saved, err := r.Save(ctx, root, Meta{ETag: loaded.ETag, Extra: meta.Extra})
	if err != nil {
		return nil, loaded, err
	}
	return root, saved, nil
}

// ResolveValues returns the effective values for ref without building a
// settings tree. Overrides are applied by their __overriden_keys__ markers
// only, so values are not validated against a schema.
func (r Resolver) ResolveValues(ctx context.Context, ref Ref) (map[string]any, error) {
	if _, err := r.check(ref); err != nil {
		return nil, err
	}
	refs := []Ref{DefaultsRef(ref.Category)}
	if ref.Level >= layering.LevelStudio {
		refs = append(refs, StudioRef(ref.Category))
	}
	if ref.Level == layering.LevelProject {
		refs = append(refs, ref)
	}

	layers := make([]layering.Layer, 0, len(refs))
	for _, layerRef := range refs {
		doc, _, ok, err := r.load(ctx, layerRef)
		if err != nil {
			return nil, err
		}
		if !ok {
			if layerRef.Level == layering.LevelDefaults {
				return nil, fmt.Errorf("%w: %q", ErrDefaultsNotFound, ref.Category)
			}
			continue
		}
		layers = append(layers, layering.Layer{
			Category: layerRef.Category,
			Level:    layerRef.Level,
			Project:  layerRef.Project,
			Document: doc,
		})
	}
	return layering.NewChain(layers...).Resolve(), nil
}

func (r Resolver) emitSaved(ctx context.Context, root *settings.Root, id string, meta Meta) {
	cfg := r.Activity
	if cfg == (activity.Config{}) {
		cfg.Enabled = true
	}
	emitter := activity.NewEmitter(r.Hooks, cfg)
	if !emitter.Enabled() {
		return
	}
	state := root.OverrideState()
	event := activity.BuildLayerSavedEvent(activity.SettingsEventInput{
		ActorID:  r.ActorID,
		ObjectID: id,
		Metadata: map[string]any{
			"snapshot_id": meta.SnapshotID,
			"etag":        meta.ETag,
		},
		State: activity.StateContext{
			Name:     state.String(),
			Label:    state.Label(),
			Priority: int(state),
			Category: root.Category(),
			Project:  root.Project(),
		},
		OccurredAt: meta.UpdatedAt,
	})
	// Hook failures do not undo a completed save.
	if err := emitter.Emit(ctx, event); err != nil && r.Logger != nil {
		r.Logger.Log(settings.LogEvent{
			Level:   schema.LogLevelWarn,
			Path:    id,
			Message: fmt.Sprintf("activity hooks failed: %v", err),
		})
	}
}

// digest hashes the canonical JSON encoding of doc. Map keys are sorted by
// encoding/json so equal documents share an ETag.
func digest(doc Document) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8]), nil
}
