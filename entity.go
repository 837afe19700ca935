package settings

import (
	"github.com/google/uuid"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/schema"
)

// Entity is a node of a settings tree. Values flow through three layers
// (defaults, studio, project); the OverrideState of the tree decides which
// of them is exposed.
type Entity interface {
	ID() uuid.UUID
	Key() string
	Path() string
	Kind() schema.Kind
	Schema() *schema.Node
	Parent() Entity
	Root() *Root

	IsGroup() bool
	IsDynamicItem() bool
	IsInDynamicItem() bool
	EnvGroupKey() string

	Value() any
	Set(value any) error
	SettingsValue() any

	OverrideState() OverrideState
	SetOverrideState(state OverrideState) error

	HasUnsavedChanges() bool
	HasDefaultValue() bool
	HasStudioOverride() bool
	HasProjectOverride() bool
	HadStudioOverride() bool
	HadProjectOverride() bool

	UpdateDefaultValue(value any)
	UpdateStudioValue(value any)
	UpdateProjectValue(value any)

	DiscardChanges()
	AddToStudioDefault()
	RemoveFromStudioDefault()
	AddToProjectOverride()
	RemoveFromProjectOverride()

	OnChange(fn func(Entity))
}

// item is the internal contract every entity kind fulfils.
type item interface {
	Entity

	core() *baseEntity
	applyState(state OverrideState)
	updateLayer(layer OverrideState, value any)
	settingsValue() any
	childChanged(child item)
	childKey(child item) (string, bool)
	child(key string) (item, bool)
	childItems() []item
	validate() error

	addStudio()
	removeStudio()
	addProject()
	removeProject()
}

// baseEntity carries the state shared by every entity kind. Kinds embed it
// and set self so shared code can dispatch to their overrides.
type baseEntity struct {
	id     uuid.UUID
	node   *schema.Node
	kind   schema.Kind
	key    string
	parent item
	root   *Root
	self   item

	// group is the nearest group at or above this entity, nil outside groups.
	group item
	// file is the nearest file boundary at or above this entity.
	file      item
	dynamic   bool
	inDynamic bool
	envKey    string

	state        OverrideState
	defaultValue any
	studioValue  any
	projectValue any

	hasStudio  bool
	hasProject bool
	hadStudio  bool
	hadProject bool

	initialValue any
	callbacks    []func(Entity)
}

func (b *baseEntity) init(r *Root, self item, node *schema.Node, parent item, key string, dynamic bool) {
	b.id = uuid.New()
	b.node = node
	b.kind, _ = r.registry.Lookup(node.Type)
	b.key = key
	b.parent = parent
	b.root = r
	b.self = self
	b.dynamic = dynamic
	b.envKey = node.EnvGroupKey
	b.state = StateNotDefined
	b.defaultValue = NotSet
	b.studioValue = NotSet
	b.projectValue = NotSet
	b.initialValue = NotSet

	if parent != nil {
		pc := parent.core()
		b.group = pc.group
		b.file = pc.file
		b.inDynamic = pc.dynamic || pc.inDynamic
	}
	if node.IsFile {
		b.file = self
	}
	if b.group == nil && (node.IsGroup || b.kind.IsEndpoint()) {
		b.group = self
	}
}

func (b *baseEntity) core() *baseEntity { return b }

func (b *baseEntity) ID() uuid.UUID { return b.id }

func (b *baseEntity) Kind() schema.Kind { return b.kind }

func (b *baseEntity) Schema() *schema.Node { return b.node }

func (b *baseEntity) Root() *Root { return b.root }

func (b *baseEntity) Parent() Entity {
	if b.parent == nil {
		return nil
	}
	return b.parent
}

func (b *baseEntity) Key() string {
	if b.parent != nil {
		if key, ok := b.parent.childKey(b.self); ok {
			return key
		}
	}
	return b.key
}

func (b *baseEntity) Path() string {
	if b.parent == nil {
		return ""
	}
	return schema.JoinPath(b.parent.Path(), b.Key())
}

func (b *baseEntity) IsGroup() bool {
	return b.group != nil && b.group.core() == b
}

func (b *baseEntity) inGroup() bool {
	return b.group != nil && b.group.core() != b
}

func (b *baseEntity) IsDynamicItem() bool { return b.dynamic }

func (b *baseEntity) IsInDynamicItem() bool { return b.inDynamic }

func (b *baseEntity) EnvGroupKey() string { return b.envKey }

func (b *baseEntity) OverrideState() OverrideState { return b.state }

func (b *baseEntity) SetOverrideState(state OverrideState) error {
	return b.root.SetOverrideState(state)
}

func (b *baseEntity) OnChange(fn func(Entity)) {
	if fn != nil {
		b.callbacks = append(b.callbacks, fn)
	}
}

func (b *baseEntity) UpdateDefaultValue(value any) { b.self.updateLayer(StateDefaults, value) }

func (b *baseEntity) UpdateStudioValue(value any) { b.self.updateLayer(StateStudio, value) }

func (b *baseEntity) UpdateProjectValue(value any) { b.self.updateLayer(StateProject, value) }

// storeLayer records the raw value of a layer and the matching loaded flag.
func (b *baseEntity) storeLayer(layer OverrideState, value any) {
	switch layer {
	case StateDefaults:
		b.defaultValue = value
	case StateStudio:
		b.studioValue = value
		b.hadStudio = !IsNotSet(value)
	case StateProject:
		b.projectValue = value
		b.hadProject = !IsNotSet(value)
	}
}

// layerValue returns the strongest stored value visible in state.
func (b *baseEntity) layerValue(state OverrideState) (any, OverrideState) {
	if state >= StateProject && !IsNotSet(b.projectValue) {
		return b.projectValue, StateProject
	}
	if state >= StateStudio && !IsNotSet(b.studioValue) {
		return b.studioValue, StateStudio
	}
	if !IsNotSet(b.defaultValue) {
		return b.defaultValue, StateDefaults
	}
	return NotSet, StateNotDefined
}

func (b *baseEntity) resetFlags() {
	b.hasStudio = b.hadStudio
	b.hasProject = b.hadProject
}

// flagOwner is the entity whose override flags apply to b.
func (b *baseEntity) flagOwner() *baseEntity {
	if b.group != nil {
		return b.group.core()
	}
	return b
}

func (b *baseEntity) studioFlag() bool { return b.flagOwner().hasStudio }

func (b *baseEntity) projectFlag() bool { return b.flagOwner().hasProject }

func (b *baseEntity) HasStudioOverride() bool {
	return b.state >= StateStudio && b.studioFlag()
}

func (b *baseEntity) HasProjectOverride() bool {
	return b.state >= StateProject && b.projectFlag()
}

func (b *baseEntity) HadStudioOverride() bool { return b.flagOwner().hadStudio }

func (b *baseEntity) HadProjectOverride() bool { return b.flagOwner().hadProject }

func (b *baseEntity) flagsChanged() bool {
	owner := b.flagOwner()
	switch b.state {
	case StateStudio:
		return owner.hasStudio != owner.hadStudio
	case StateProject:
		return owner.hasProject != owner.hadProject
	}
	return false
}

// gatedSettingsValue hides the value of a group that is not overridden at
// the current layer.
func (b *baseEntity) gatedSettingsValue() any {
	if b.state == StateNotDefined {
		return NotSet
	}
	if b.IsGroup() {
		if b.state == StateStudio && !b.hasStudio {
			return NotSet
		}
		if b.state == StateProject && !b.hasProject {
			return NotSet
		}
	}
	return b.self.settingsValue()
}

func (b *baseEntity) valueChanged() bool {
	return !layering.Equal(b.self.SettingsValue(), b.initialValue)
}

func (b *baseEntity) snapshotInitial() {
	b.initialValue = layering.Clone(b.self.SettingsValue())
}

// changed marks the owning group as overridden at the current layer and
// notifies listeners.
func (b *baseEntity) changed() {
	if b.group != nil {
		owner := b.group.core()
		switch b.state {
		case StateStudio:
			owner.hasStudio = true
		case StateProject:
			owner.hasProject = true
		}
	}
	b.notify()
}

func (b *baseEntity) notify() {
	if b.root != nil && b.root.muted > 0 {
		return
	}
	for _, fn := range b.callbacks {
		fn(b.self)
	}
	if b.parent != nil {
		b.parent.childChanged(b.self)
		return
	}
	if b.root != nil {
		b.root.childChanged(b.self)
	}
}

func (b *baseEntity) childChanged(item) { b.notify() }

func (b *baseEntity) childKey(item) (string, bool) { return "", false }

func (b *baseEntity) child(string) (item, bool) { return nil, false }

func (b *baseEntity) childItems() []item { return nil }

func (b *baseEntity) validate() error {
	if b.node.IsGroup && b.group != nil && b.group.core() != b {
		return &EntitySchemaError{Path: b.Path(), Type: b.node.Type, Reason: "group is nested inside another group"}
	}
	return nil
}

func (b *baseEntity) DiscardChanges() {
	if b.state == StateNotDefined {
		return
	}
	b.self.applyState(b.state)
	b.notify()
	b.root.emit(verbChangesDiscarded, b.Path(), nil, nil)
}

func (b *baseEntity) AddToStudioDefault() {
	if b.state != StateStudio || b.inGroup() {
		return
	}
	b.self.addStudio()
	b.notify()
	b.root.emit(verbOverrideAdded, b.Path(), nil, StateStudio.String())
}

func (b *baseEntity) RemoveFromStudioDefault() {
	if b.state != StateStudio || b.inGroup() || !b.self.HasStudioOverride() {
		return
	}
	b.self.removeStudio()
	b.notify()
	b.root.emit(verbOverrideRemoved, b.Path(), StateStudio.String(), nil)
}

func (b *baseEntity) AddToProjectOverride() {
	if b.state != StateProject || b.inGroup() {
		return
	}
	b.self.addProject()
	b.notify()
	b.root.emit(verbOverrideAdded, b.Path(), nil, StateProject.String())
}

func (b *baseEntity) RemoveFromProjectOverride() {
	if b.state != StateProject || b.inGroup() || !b.self.HasProjectOverride() {
		return
	}
	b.self.removeProject()
	b.notify()
	b.root.emit(verbOverrideRemoved, b.Path(), StateProject.String(), nil)
}

// fallbackForProjectRemoval returns the layer a project override falls back
// to once removed.
func (b *baseEntity) fallbackForProjectRemoval() (any, OverrideState) {
	if b.studioFlag() && !IsNotSet(b.studioValue) {
		return b.studioValue, StateStudio
	}
	if !IsNotSet(b.defaultValue) {
		return b.defaultValue, StateDefaults
	}
	return NotSet, StateNotDefined
}

// detach points the group references of a subtree that still hang on an
// outer group at the subtree root, so setting values on it leaves the outer
// group flags alone. The returned func restores the references.
func detach(top item) (attach func()) {
	outer := top.core().group
	if outer == nil || outer.core() == top.core() {
		return func() {}
	}
	var moved []*baseEntity
	var walk func(current item)
	walk = func(current item) {
		c := current.core()
		if c.group != nil && c.group.core() == outer.core() {
			c.group = top
			moved = append(moved, c)
		}
		for _, child := range current.childItems() {
			walk(child)
		}
	}
	walk(top)
	return func() {
		for _, c := range moved {
			c.group = outer
		}
	}
}

// trySet sets value on a throwaway copy of node so a rejected value is
// reported without touching the tree.
func trySet(r *Root, node *schema.Node, parent item, key string, dynamic bool, state OverrideState, value any) error {
	scratch, err := r.newEntity(node, parent, key, dynamic)
	if err != nil {
		return err
	}
	detach(scratch)
	scratch.applyState(state)
	r.muted++
	defer func() { r.muted-- }()
	return scratch.Set(value)
}
