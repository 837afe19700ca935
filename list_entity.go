package settings

import (
	"fmt"
	"strconv"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/schema"
)

// ListEntity is an ordered list of items built from the object_type schema.
type ListEntity struct {
	baseEntity

	itemNode *schema.Node
	items    []item
}

func newListEntity(r *Root, node *schema.Node, parent item, key string, dynamic bool) *ListEntity {
	l := &ListEntity{itemNode: node.ObjectType}
	l.init(r, l, node, parent, key, dynamic)
	return l
}

func (l *ListEntity) validate() error {
	if err := l.baseEntity.validate(); err != nil {
		return err
	}
	if l.itemNode == nil {
		return &EntitySchemaError{Path: l.Path(), Type: l.node.Type, Reason: "object_type is not set"}
	}
	probe, err := l.root.newEntity(l.itemNode.Clone(), l, "", true)
	if err != nil {
		return err
	}
	return l.root.validateTree(probe)
}

func (l *ListEntity) newItem() (item, error) {
	return l.root.newEntity(l.itemNode.Clone(), l, "", true)
}

func (l *ListEntity) childKey(child item) (string, bool) {
	for i, candidate := range l.items {
		if candidate.core() == child.core() {
			return strconv.Itoa(i), true
		}
	}
	return "", false
}

func (l *ListEntity) child(key string) (item, bool) {
	index, err := strconv.Atoi(key)
	if err != nil || index < 0 || index >= len(l.items) {
		return nil, false
	}
	return l.items[index], true
}

func (l *ListEntity) childItems() []item {
	return append([]item(nil), l.items...)
}

// Len returns the number of items.
func (l *ListEntity) Len() int { return len(l.items) }

// Get returns the item at index.
func (l *ListEntity) Get(index int) (Entity, error) {
	if index < 0 || index >= len(l.items) {
		return nil, fmt.Errorf("%w: %d in %q", ErrIndexOutOfRange, index, displayPath(l.Path()))
	}
	return l.items[index], nil
}

// Items returns the items in order.
func (l *ListEntity) Items() []Entity {
	out := make([]Entity, len(l.items))
	for i, child := range l.items {
		out[i] = child
	}
	return out
}

func (l *ListEntity) Value() any {
	out := make([]any, len(l.items))
	for i, child := range l.items {
		out[i] = child.Value()
	}
	return out
}

// Set replaces every item. Nothing changes when any value is rejected.
func (l *ListEntity) Set(value any) error {
	if l.state == StateNotDefined {
		return ErrNotDefined
	}
	values, ok := value.([]any)
	if !ok {
		return &InvalidValueType{Path: l.Path(), Expected: "list", Value: value}
	}
	l.root.muted++
	items := make([]item, 0, len(values))
	var err error
	for _, v := range values {
		var child item
		child, err = l.buildItem(v)
		if err != nil {
			break
		}
		items = append(items, child)
	}
	l.root.muted--
	if err != nil {
		return err
	}
	l.items = items
	l.changed()
	return nil
}

func (l *ListEntity) buildItem(value any) (item, error) {
	child, err := l.newItem()
	if err != nil {
		return nil, err
	}
	child.applyState(l.state)
	attach := detach(child)
	err = child.Set(value)
	attach()
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Append adds value at the end of the list.
func (l *ListEntity) Append(value any) (Entity, error) {
	return l.Insert(len(l.items), value)
}

// Insert adds value at index, shifting later items.
func (l *ListEntity) Insert(index int, value any) (Entity, error) {
	if l.state == StateNotDefined {
		return nil, ErrNotDefined
	}
	if index < 0 || index > len(l.items) {
		return nil, fmt.Errorf("%w: %d in %q", ErrIndexOutOfRange, index, displayPath(l.Path()))
	}
	l.root.muted++
	child, err := l.buildItem(value)
	l.root.muted--
	if err != nil {
		return nil, err
	}
	l.items = append(l.items, nil)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = child
	l.changed()
	return child, nil
}

// Remove drops the item at index and returns it.
func (l *ListEntity) Remove(index int) (Entity, error) {
	if l.state == StateNotDefined {
		return nil, ErrNotDefined
	}
	if index < 0 || index >= len(l.items) {
		return nil, fmt.Errorf("%w: %d in %q", ErrIndexOutOfRange, index, displayPath(l.Path()))
	}
	removed := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	l.changed()
	return removed, nil
}

// Swap exchanges the items at positions i and j.
func (l *ListEntity) Swap(i, j int) error {
	if l.state == StateNotDefined {
		return ErrNotDefined
	}
	if i < 0 || j < 0 || i >= len(l.items) || j >= len(l.items) {
		return fmt.Errorf("%w: %d, %d in %q", ErrIndexOutOfRange, i, j, displayPath(l.Path()))
	}
	if i == j {
		return nil
	}
	l.items[i], l.items[j] = l.items[j], l.items[i]
	l.changed()
	return nil
}

func (l *ListEntity) updateLayer(layer OverrideState, value any) {
	if !IsNotSet(value) {
		if _, ok := value.([]any); !ok {
			l.root.warnf(l.Path(), "%s value of list is %T, ignored", layer, value)
			value = NotSet
		}
	}
	l.storeLayer(layer, layering.Clone(value))
}

func (l *ListEntity) applyState(state OverrideState) {
	l.state = state
	l.resetFlags()
	source, layer := l.layerValue(state)
	l.rebuild(source, layer)
	l.snapshotInitial()
}

func (l *ListEntity) rebuild(source any, layer OverrideState) {
	values, _ := source.([]any)
	l.items = make([]item, 0, len(values))
	for _, value := range values {
		child, err := l.newItem()
		if err != nil {
			l.root.warnf(l.Path(), "can't create list item: %v", err)
			continue
		}
		child.updateLayer(StateDefaults, value)
		switch layer {
		case StateProject:
			child.updateLayer(StateProject, value)
		case StateStudio:
			child.updateLayer(StateStudio, value)
		}
		l.items = append(l.items, child)
		child.applyState(l.state)
	}
}

func (l *ListEntity) SettingsValue() any {
	return l.gatedSettingsValue()
}

func (l *ListEntity) settingsValue() any {
	out := make([]any, 0, len(l.items))
	for _, child := range l.items {
		value := child.SettingsValue()
		if IsNotSet(value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

func (l *ListEntity) HasDefaultValue() bool {
	return !IsNotSet(l.defaultValue)
}

func (l *ListEntity) HasUnsavedChanges() bool {
	if l.state == StateNotDefined {
		return false
	}
	if l.flagsChanged() {
		return true
	}
	for _, child := range l.items {
		if child.HasUnsavedChanges() {
			return true
		}
	}
	return l.valueChanged()
}

func (l *ListEntity) addStudio() { l.hasStudio = true }

func (l *ListEntity) addProject() { l.hasProject = true }

func (l *ListEntity) removeStudio() {
	l.hasStudio = false
	l.rebuild(l.defaultValue, StateDefaults)
}

func (l *ListEntity) removeProject() {
	l.hasProject = false
	source, layer := l.fallbackForProjectRemoval()
	l.rebuild(source, layer)
}
