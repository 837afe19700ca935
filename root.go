package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/pkg/activity"
	"github.com/pypeclub/OpenPype/schema"
)

const (
	verbStateChanged     = activity.VerbStateChanged
	verbOverrideAdded    = activity.VerbOverrideAdded
	verbOverrideRemoved  = activity.VerbOverrideRemoved
	verbChangesDiscarded = activity.VerbChangesDiscarded
	verbKeyAdded         = activity.VerbKeyAdded
	verbKeyRenamed       = activity.VerbKeyRenamed
	verbKeyRemoved       = activity.VerbKeyRemoved
)

// Option configures a Root.
type Option func(*rootConfig)

type rootConfig struct {
	registry       *schema.Registry
	logger         Logger
	activityHooks  activity.Hooks
	activityConfig activity.Config
	category       string
	project        string
	actorID        string
}

// WithRegistry sets the type registry used to build entities. It must match
// the registry the schema was loaded with.
func WithRegistry(registry *schema.Registry) Option {
	return func(cfg *rootConfig) {
		if registry != nil {
			cfg.registry = registry
		}
	}
}

// WithLogger attaches a logger receiving tree warnings.
func WithLogger(logger Logger) Option {
	return func(cfg *rootConfig) {
		if logger == nil {
			cfg.logger = schema.NoopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks notified about tree lifecycle
// events. Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *rootConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig controls whether activity is emitted and on which
// channel.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *rootConfig) {
		cfg.activityConfig = config
	}
}

// WithCategory names the settings category the tree represents, e.g.
// "system_settings".
func WithCategory(category string) Option {
	return func(cfg *rootConfig) {
		cfg.category = strings.TrimSpace(category)
	}
}

// WithProject names the project whose overrides the tree edits.
func WithProject(project string) Option {
	return func(cfg *rootConfig) {
		cfg.project = strings.TrimSpace(project)
	}
}

// WithActor records who drives the tree in emitted activity.
func WithActor(actorID string) Option {
	return func(cfg *rootConfig) {
		cfg.actorID = strings.TrimSpace(actorID)
	}
}

// Root owns an entity tree. It is the only place where the override state
// changes; the whole tree always shares the same state.
type Root struct {
	node      *schema.Node
	cfg       rootConfig
	registry  *schema.Registry
	logger    Logger
	emitter   *activity.Emitter
	top       *DictEntity
	state     OverrideState
	callbacks []func(Entity)
	muted     int
}

// NewRoot builds the entity tree described by node. The returned tree has no
// override state until values are loaded and SetOverrideState is called.
func NewRoot(node *schema.Node, opts ...Option) (*Root, error) {
	cfg := rootConfig{
		registry: schema.NewRegistry(),
		logger:   schema.NoopLogger{},
		activityConfig: activity.Config{
			Enabled: true,
			Channel: "settings",
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if node == nil {
		return nil, &EntitySchemaError{Type: "dict", Reason: "root schema is nil"}
	}

	r := &Root{
		node:     node,
		cfg:      cfg,
		registry: cfg.registry,
		logger:   cfg.logger,
		emitter:  activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
		state:    StateNotDefined,
	}
	if kind, _ := r.registry.Lookup(node.Type); kind != schema.KindDict {
		return nil, &EntitySchemaError{Type: node.Type, Reason: "root must be a dict"}
	}
	top, err := newDictEntity(r, node, nil, node.Key, false)
	if err != nil {
		return nil, err
	}
	r.top = top
	if err := r.validateTree(top); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Root) newEntity(node *schema.Node, parent item, key string, dynamic bool) (item, error) {
	if node == nil {
		return nil, &EntitySchemaError{Path: key, Reason: "schema is nil"}
	}
	kind, ok := r.registry.Lookup(node.Type)
	if !ok {
		return nil, &EntitySchemaError{Path: key, Type: node.Type, Reason: "unknown type"}
	}
	switch kind {
	case schema.KindInput:
		return newInputEntity(r, node, parent, key, dynamic), nil
	case schema.KindDict:
		return newDictEntity(r, node, parent, key, dynamic)
	case schema.KindMutableDict:
		return newDictMutableKeysEntity(r, node, parent, key, dynamic), nil
	case schema.KindList:
		return newListEntity(r, node, parent, key, dynamic), nil
	case schema.KindGUI:
		return newGUIEntity(r, node, parent), nil
	default:
		return nil, &EntitySchemaError{Path: key, Type: node.Type, Reason: fmt.Sprintf("%s can't be used as a value", kind)}
	}
}

// validateTree runs schema checks of e and every descendant, joining all
// problems.
func (r *Root) validateTree(e item) error {
	var errs []error
	var visit func(item)
	visit = func(current item) {
		if err := current.validate(); err != nil {
			errs = append(errs, err)
		}
		for _, child := range current.childItems() {
			visit(child)
		}
	}
	visit(e)
	return errors.Join(errs...)
}

// Schema returns the root schema node.
func (r *Root) Schema() *schema.Node { return r.node }

// Registry returns the registry the tree was built with.
func (r *Root) Registry() *schema.Registry { return r.registry }

// Category returns the configured settings category.
func (r *Root) Category() string { return r.cfg.category }

// Project returns the configured project name.
func (r *Root) Project() string { return r.cfg.project }

// Top returns the root dict entity.
func (r *Root) Top() *DictEntity { return r.top }

// OverrideState returns the state shared by the whole tree.
func (r *Root) OverrideState() OverrideState { return r.state }

// SetOverrideState validates that every layer needed by state is loaded and
// then moves the whole tree to state. Nothing changes when validation fails.
func (r *Root) SetOverrideState(state OverrideState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, int(state))
	}
	if state > StateDefaults {
		var errs []error
		collectMissingDefaults(r.top, &errs)
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		if !r.top.hadStudio {
			return &StudioDefaultsNotDefined{Path: r.top.Path()}
		}
	}

	previous := r.state
	r.state = state
	r.top.applyState(state)
	r.emit(verbStateChanged, "", previous.String(), state.String())
	return nil
}

func collectMissingDefaults(e item, errs *[]error) {
	switch e.Kind() {
	case schema.KindDict:
		for _, child := range e.childItems() {
			collectMissingDefaults(child, errs)
		}
	case schema.KindGUI:
	default:
		if !e.HasDefaultValue() {
			*errs = append(*errs, &DefaultsNotDefined{Path: e.Path()})
		}
	}
}

// UpdateDefaultValue loads the defaults document.
func (r *Root) UpdateDefaultValue(value any) { r.top.UpdateDefaultValue(value) }

// UpdateStudioValue loads the studio overrides document. An empty document
// counts as loaded; NotSet marks studio overrides as missing.
func (r *Root) UpdateStudioValue(value any) { r.top.UpdateStudioValue(value) }

// UpdateProjectValue loads the project overrides document.
func (r *Root) UpdateProjectValue(value any) { r.top.UpdateProjectValue(value) }

// Value returns the effective values of the whole tree.
func (r *Root) Value() map[string]any {
	value, _ := r.top.Value().(map[string]any)
	return value
}

// Set assigns values of the fixed root keys present in value.
func (r *Root) Set(value map[string]any) error {
	return r.top.Set(value)
}

// SettingsValue returns the document to persist for the current layer. A
// layer without overrides yields an empty document.
func (r *Root) SettingsValue() map[string]any {
	value, ok := r.top.SettingsValue().(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return value
}

// HasUnsavedChanges reports whether anything changed since the last state
// transition.
func (r *Root) HasUnsavedChanges() bool { return r.top.HasUnsavedChanges() }

// DiscardChanges reverts the whole tree to the loaded values.
func (r *Root) DiscardChanges() { r.top.DiscardChanges() }

// OnChange registers fn to be called with the top dict whenever any value of
// the tree changes.
func (r *Root) OnChange(fn func(Entity)) {
	if fn != nil {
		r.callbacks = append(r.callbacks, fn)
	}
}

func (r *Root) childChanged(changed item) {
	for _, fn := range r.callbacks {
		fn(changed)
	}
}

// Get returns the entity at path. Path segments are joined by "/" and may
// address mutable dict keys and list indexes.
func (r *Root) Get(path string) (Entity, error) {
	var current item = r.top
	for _, key := range splitPath(path) {
		if key == "" {
			continue
		}
		next, ok := current.child(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, path)
		}
		current = next
	}
	return current, nil
}

// Walk visits every entity depth first. Returning false from fn skips the
// subtree.
func (r *Root) Walk(fn func(Entity) bool) {
	var visit func(item)
	visit = func(current item) {
		if !fn(current) {
			return
		}
		for _, child := range current.childItems() {
			visit(child)
		}
	}
	visit(r.top)
}

// FileValues splits SettingsValue by file boundaries. Keys of the result are
// entity paths of is_file nodes; nested files are removed from the document
// of the enclosing file.
func (r *Root) FileValues() (map[string]any, error) {
	if r.state == StateNotDefined {
		return nil, ErrNotDefined
	}
	doc := layering.CloneMap(r.SettingsValue())
	files := map[string]any{}

	var visit func(e item, keys []string)
	visit = func(e item, keys []string) {
		if e.Kind() == schema.KindDict {
			for _, child := range e.childItems() {
				if child.Kind() == schema.KindGUI {
					continue
				}
				visit(child, append(append([]string(nil), keys...), child.core().key))
			}
		}
		if !e.Schema().IsFile {
			return
		}
		if value, ok := extractPath(doc, keys); ok {
			files[schema.JoinPath(keys...)] = value
		}
	}
	visit(r.top, nil)
	return files, nil
}

func extractPath(doc map[string]any, keys []string) (any, bool) {
	if len(keys) == 0 {
		out := layering.CloneMap(doc)
		for key := range doc {
			delete(doc, key)
		}
		return out, true
	}
	current := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	last := keys[len(keys)-1]
	value, ok := current[last]
	if !ok {
		return nil, false
	}
	delete(current, last)
	return value, true
}

func (r *Root) emit(verb, path string, oldValue, newValue any) {
	if r == nil || !r.emitter.Enabled() {
		return
	}
	event := activity.BuildSettingsEvent(verb, activity.SettingsEventInput{
		ActorID:  r.cfg.actorID,
		Path:     path,
		OldValue: oldValue,
		NewValue: newValue,
		State: activity.StateContext{
			Name:     r.state.String(),
			Label:    r.state.Label(),
			Priority: int(r.state),
			Category: r.cfg.category,
			Project:  r.cfg.project,
		},
	})
	if err := r.emitter.Emit(context.Background(), event); err != nil {
		r.warnf(path, "activity hooks failed: %v", err)
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (r *Root) ActivityHooks() activity.Hooks {
	if r == nil {
		return nil
	}
	return r.cfg.activityHooks.Compact()
}
