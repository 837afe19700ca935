package settings

import (
	"fmt"
	"sort"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/schema"
)

// DictEntity is a dict with keys fixed by the schema. Wrapper children are
// flattened into it and GUI children never carry values.
type DictEntity struct {
	baseEntity

	order    []item
	children map[string]item
	gui      []item
}

func newDictEntity(r *Root, node *schema.Node, parent item, key string, dynamic bool) (*DictEntity, error) {
	d := &DictEntity{children: map[string]item{}}
	d.init(r, d, node, parent, key, dynamic)
	if err := d.addChildren(node.Children); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DictEntity) addChildren(nodes []*schema.Node) error {
	for _, childNode := range nodes {
		kind, _ := d.root.registry.Lookup(childNode.Type)
		switch kind {
		case schema.KindWrapper:
			if err := d.addChildren(childNode.Children); err != nil {
				return err
			}
			continue
		case schema.KindGUI:
			d.gui = append(d.gui, newGUIEntity(d.root, childNode, d))
			continue
		}
		if childNode.Key == "" {
			return &EntitySchemaError{Path: d.Path(), Type: childNode.Type, Reason: "child is missing \"key\""}
		}
		if _, exists := d.children[childNode.Key]; exists {
			return &EntitySchemaError{
				Path:   schema.JoinPath(d.Path(), childNode.Key),
				Type:   childNode.Type,
				Reason: "key is duplicated",
			}
		}
		child, err := d.root.newEntity(childNode, d, childNode.Key, false)
		if err != nil {
			return err
		}
		d.children[childNode.Key] = child
		d.order = append(d.order, child)
	}
	return nil
}

// Get returns the child stored under key.
func (d *DictEntity) Get(key string) (Entity, bool) {
	child, ok := d.children[key]
	if !ok {
		return nil, false
	}
	return child, true
}

// Keys returns child keys in schema order.
func (d *DictEntity) Keys() []string {
	keys := make([]string, 0, len(d.order))
	for _, child := range d.order {
		keys = append(keys, child.core().key)
	}
	return keys
}

// Children returns value children in schema order.
func (d *DictEntity) Children() []Entity {
	out := make([]Entity, 0, len(d.order))
	for _, child := range d.order {
		out = append(out, child)
	}
	return out
}

// GUIChildren returns presentation-only children.
func (d *DictEntity) GUIChildren() []Entity {
	out := make([]Entity, 0, len(d.gui))
	for _, child := range d.gui {
		out = append(out, child)
	}
	return out
}

func (d *DictEntity) child(key string) (item, bool) {
	child, ok := d.children[key]
	return child, ok
}

func (d *DictEntity) childItems() []item {
	out := make([]item, 0, len(d.order)+len(d.gui))
	out = append(out, d.order...)
	return append(out, d.gui...)
}

func (d *DictEntity) Value() any {
	out := make(map[string]any, len(d.order))
	for _, child := range d.order {
		out[child.core().key] = child.Value()
	}
	return out
}

// Set assigns the values of every key present in value. Nothing changes when
// a key is unknown or any value is rejected.
func (d *DictEntity) Set(value any) error {
	if d.state == StateNotDefined {
		return ErrNotDefined
	}
	m, ok := value.(map[string]any)
	if !ok {
		return &InvalidValueType{Path: d.Path(), Expected: "dict", Value: value}
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		if _, exists := d.children[key]; !exists {
			return fmt.Errorf("%w: %q in %q", ErrKeyNotFound, key, displayPath(d.Path()))
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c := d.children[key].core()
		if err := trySet(d.root, c.node, d, key, c.dynamic, d.state, m[key]); err != nil {
			return err
		}
	}
	for _, key := range keys {
		if err := d.children[key].Set(m[key]); err != nil {
			return err
		}
	}
	return nil
}

func (d *DictEntity) updateLayer(layer OverrideState, value any) {
	data := map[string]any{}
	if !IsNotSet(value) {
		m, ok := value.(map[string]any)
		if !ok {
			d.root.warnf(d.Path(), "%s value of dict is %T, ignored", layer, value)
			value = NotSet
		} else {
			data, _ = layering.SplitMetadata(m)
		}
	}
	d.storeLayer(layer, value)

	for key := range data {
		if _, exists := d.children[key]; !exists {
			d.root.warnf(schema.JoinPath(d.Path(), key), "unknown key in %s value, ignored", layer)
		}
	}
	for _, child := range d.order {
		childValue, exists := data[child.core().key]
		if !exists {
			childValue = NotSet
		}
		child.updateLayer(layer, childValue)
	}
}

func (d *DictEntity) applyState(state OverrideState) {
	d.state = state
	d.resetFlags()
	for _, child := range d.order {
		child.applyState(state)
	}
	for _, child := range d.gui {
		child.applyState(state)
	}
	d.snapshotInitial()
}

func (d *DictEntity) SettingsValue() any {
	if d.state == StateNotDefined {
		return NotSet
	}
	if d.IsGroup() {
		return d.gatedSettingsValue()
	}
	value := d.settingsValue()
	if d.state >= StateStudio && d.group == nil {
		if m, ok := value.(map[string]any); ok && len(m) == 0 {
			return NotSet
		}
	}
	return value
}

func (d *DictEntity) settingsValue() any {
	out := map[string]any{}
	var overridden []string
	for _, child := range d.order {
		value := child.SettingsValue()
		if IsNotSet(value) {
			continue
		}
		key := child.core().key
		out[key] = value
		if child.IsGroup() && d.childOverridden(child) {
			overridden = append(overridden, key)
		}
	}
	if len(overridden) > 0 {
		sort.Strings(overridden)
		list := make([]any, len(overridden))
		for i, key := range overridden {
			list[i] = key
		}
		out[MOverridenKey] = list
	}
	if d.envKey != "" {
		keys := make([]any, 0, len(d.order))
		for _, key := range d.Keys() {
			keys = append(keys, key)
		}
		out[MEnvironmentKey] = map[string]any{d.envKey: keys}
	}
	return out
}

func (d *DictEntity) childOverridden(child item) bool {
	switch d.state {
	case StateStudio:
		return child.HasStudioOverride()
	case StateProject:
		return child.HasProjectOverride()
	}
	return false
}

func (d *DictEntity) HasStudioOverride() bool {
	if d.state < StateStudio {
		return false
	}
	if d.group != nil {
		return d.studioFlag()
	}
	for _, child := range d.order {
		if child.HasStudioOverride() {
			return true
		}
	}
	return false
}

func (d *DictEntity) HasProjectOverride() bool {
	if d.state < StateProject {
		return false
	}
	if d.group != nil {
		return d.projectFlag()
	}
	for _, child := range d.order {
		if child.HasProjectOverride() {
			return true
		}
	}
	return false
}

func (d *DictEntity) HasDefaultValue() bool {
	for _, child := range d.order {
		if !child.HasDefaultValue() {
			return false
		}
	}
	return true
}

func (d *DictEntity) HasUnsavedChanges() bool {
	if d.state == StateNotDefined {
		return false
	}
	if d.group != nil && d.flagsChanged() {
		return true
	}
	for _, child := range d.order {
		if child.HasUnsavedChanges() {
			return true
		}
	}
	return d.valueChanged()
}

func (d *DictEntity) addStudio() {
	if d.group != nil {
		d.hasStudio = true
		return
	}
	for _, child := range d.order {
		child.addStudio()
	}
}

func (d *DictEntity) addProject() {
	if d.group != nil {
		d.hasProject = true
		return
	}
	for _, child := range d.order {
		child.addProject()
	}
}

func (d *DictEntity) removeStudio() {
	if d.group != nil {
		d.hasStudio = false
	}
	for _, child := range d.order {
		child.removeStudio()
	}
}

func (d *DictEntity) removeProject() {
	if d.group != nil {
		d.hasProject = false
	}
	for _, child := range d.order {
		child.removeProject()
	}
}
