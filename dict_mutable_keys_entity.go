package settings

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/schema"
)

// DictMutableKeysEntity is a dict whose keys are chosen at runtime. Every
// value is an entity built from the object_type schema. Required keys always
// exist and can't be renamed or removed.
type DictMutableKeysEntity struct {
	baseEntity

	itemNode       *schema.Node
	requiredKeys   []string
	valueIsEnv     bool
	collapsibleKey bool

	children    map[string]item
	labels      map[uuid.UUID]string
	initialMeta map[string]any
}

func newDictMutableKeysEntity(r *Root, node *schema.Node, parent item, key string, dynamic bool) *DictMutableKeysEntity {
	m := &DictMutableKeysEntity{
		itemNode:       node.ObjectType,
		requiredKeys:   append([]string(nil), node.RequiredKeys...),
		valueIsEnv:     node.ValueIsEnvGroup,
		collapsibleKey: node.CollapsibleKey,
		children:       map[string]item{},
		labels:         map[uuid.UUID]string{},
		initialMeta:    map[string]any{},
	}
	m.init(r, m, node, parent, key, dynamic)
	return m
}

func (m *DictMutableKeysEntity) validate() error {
	if err := m.baseEntity.validate(); err != nil {
		return err
	}
	if m.itemNode == nil {
		return &EntitySchemaError{Path: m.Path(), Type: m.node.Type, Reason: "object_type is not set"}
	}
	if m.collapsibleKey && m.file == nil {
		return &EntitySchemaError{Path: m.Path(), Type: m.node.Type, Reason: "collapsible_key requires a file boundary above"}
	}
	for _, key := range m.requiredKeys {
		if !ValidKey(key) {
			return &EntitySchemaError{Path: m.Path(), Type: m.node.Type, Reason: fmt.Sprintf("required key %q contains invalid symbols", key)}
		}
	}
	probe, err := m.root.newEntity(m.childNode("probe"), m, "probe", true)
	if err != nil {
		return err
	}
	return m.root.validateTree(probe)
}

func (m *DictMutableKeysEntity) childNode(key string) *schema.Node {
	node := m.itemNode.Clone()
	if m.valueIsEnv {
		node.EnvGroupKey = key
	}
	return node
}

func (m *DictMutableKeysEntity) newChild(key string) (item, error) {
	child, err := m.root.newEntity(m.childNode(key), m, key, true)
	if err != nil {
		return nil, err
	}
	m.children[key] = child
	return child, nil
}

func (m *DictMutableKeysEntity) isRequired(key string) bool {
	for _, required := range m.requiredKeys {
		if required == key {
			return true
		}
	}
	return false
}

func (m *DictMutableKeysEntity) childKey(child item) (string, bool) {
	for key, candidate := range m.children {
		if candidate.core() == child.core() {
			return key, true
		}
	}
	return "", false
}

func (m *DictMutableKeysEntity) child(key string) (item, bool) {
	child, ok := m.children[key]
	return child, ok
}

func (m *DictMutableKeysEntity) childItems() []item {
	out := make([]item, 0, len(m.children))
	for _, key := range m.Keys() {
		out = append(out, m.children[key])
	}
	return out
}

// Keys returns the current keys sorted.
func (m *DictMutableKeysEntity) Keys() []string {
	keys := make([]string, 0, len(m.children))
	for key := range m.children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (m *DictMutableKeysEntity) Len() int { return len(m.children) }

// Get returns the entity stored under key.
func (m *DictMutableKeysEntity) Get(key string) (Entity, bool) {
	child, ok := m.children[key]
	if !ok {
		return nil, false
	}
	return child, true
}

func (m *DictMutableKeysEntity) Contains(key string) bool {
	_, ok := m.children[key]
	return ok
}

// ChildKey returns the key child is stored under.
func (m *DictMutableKeysEntity) ChildKey(child Entity) (string, bool) {
	it, ok := child.(item)
	if !ok {
		return "", false
	}
	return m.childKey(it)
}

// Items returns a copy of the key to entity mapping.
func (m *DictMutableKeysEntity) Items() map[string]Entity {
	out := make(map[string]Entity, len(m.children))
	for key, child := range m.children {
		out[key] = child
	}
	return out
}

// RequiredKeys returns the keys that can't be renamed or removed.
func (m *DictMutableKeysEntity) RequiredKeys() []string {
	return append([]string(nil), m.requiredKeys...)
}

func (m *DictMutableKeysEntity) Value() any {
	out := make(map[string]any, len(m.children))
	for key, child := range m.children {
		out[key] = child.Value()
	}
	return out
}

// Set replaces the whole content. Nothing changes when a required key is
// missing or any value is rejected.
func (m *DictMutableKeysEntity) Set(value any) error {
	if m.state == StateNotDefined {
		return ErrNotDefined
	}
	data, ok := value.(map[string]any)
	if !ok {
		return &InvalidValueType{Path: m.Path(), Expected: "dict", Value: value}
	}
	for _, key := range m.requiredKeys {
		if _, exists := data[key]; !exists {
			return &RequiredKeyModified{Path: m.Path(), Key: key}
		}
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		if !ValidKey(key) {
			return &InvalidKeySymbols{Path: m.Path(), Key: key}
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	m.root.muted++
	err := m.checkValues(keys, data)
	if err == nil {
		err = m.replace(keys, data)
	}
	m.root.muted--
	if err != nil {
		return err
	}
	m.changed()
	return nil
}

// checkValues sets every value on a detached item so a rejected value is
// reported before the content changes.
func (m *DictMutableKeysEntity) checkValues(keys []string, data map[string]any) error {
	for _, key := range keys {
		if err := trySet(m.root, m.childNode(key), m, key, true, m.state, data[key]); err != nil {
			return err
		}
	}
	return nil
}

func (m *DictMutableKeysEntity) replace(keys []string, data map[string]any) error {
	for _, key := range m.Keys() {
		if _, keep := data[key]; !keep {
			m.removeChild(key)
		}
	}
	for _, key := range keys {
		if err := m.setKeyValue(key, data[key]); err != nil {
			return err
		}
	}
	return nil
}

// SetKeyValue stores value under key, creating the key when missing.
func (m *DictMutableKeysEntity) SetKeyValue(key string, value any) error {
	if m.state == StateNotDefined {
		return ErrNotDefined
	}
	if err := m.setKeyValue(key, value); err != nil {
		return err
	}
	m.changed()
	return nil
}

func (m *DictMutableKeysEntity) setKeyValue(key string, value any) error {
	if existing, ok := m.children[key]; ok {
		return existing.Set(value)
	}
	if !ValidKey(key) {
		return &InvalidKeySymbols{Path: m.Path(), Key: key}
	}
	child, err := m.newChild(key)
	if err != nil {
		return err
	}
	child.applyState(m.state)
	attach := detach(child)
	m.root.muted++
	err = child.Set(value)
	m.root.muted--
	attach()
	if err != nil {
		m.removeChild(key)
		return err
	}
	return nil
}

// AddKey creates an empty item under key. An existing non-required key is
// replaced.
func (m *DictMutableKeysEntity) AddKey(key string) (Entity, error) {
	if m.state == StateNotDefined {
		return nil, ErrNotDefined
	}
	if !ValidKey(key) {
		return nil, &InvalidKeySymbols{Path: m.Path(), Key: key}
	}
	if _, exists := m.children[key]; exists {
		if m.isRequired(key) {
			return nil, &RequiredKeyModified{Path: m.Path(), Key: key}
		}
		m.removeChild(key)
	}
	child, err := m.newChild(key)
	if err != nil {
		return nil, err
	}
	child.applyState(m.state)
	m.changed()
	m.root.emit(verbKeyAdded, schema.JoinPath(m.Path(), key), nil, key)
	return child, nil
}

// ChangeKey renames oldKey to newKey keeping the item, its label and its
// environment binding. An existing item under newKey is dropped.
func (m *DictMutableKeysEntity) ChangeKey(oldKey, newKey string) error {
	if m.state == StateNotDefined {
		return ErrNotDefined
	}
	if m.isRequired(oldKey) {
		return &RequiredKeyModified{Path: m.Path(), Key: oldKey}
	}
	if oldKey == newKey {
		return nil
	}
	if !ValidKey(newKey) {
		return &InvalidKeySymbols{Path: m.Path(), Key: newKey}
	}
	child, ok := m.children[oldKey]
	if !ok {
		return fmt.Errorf("%w: %q in %q", ErrKeyNotFound, oldKey, displayPath(m.Path()))
	}
	if _, exists := m.children[newKey]; exists {
		m.removeChild(newKey)
	}
	delete(m.children, oldKey)
	m.children[newKey] = child
	child.core().key = newKey
	if m.valueIsEnv {
		child.core().envKey = newKey
	}
	m.changed()
	m.root.emit(verbKeyRenamed, m.Path(), oldKey, newKey)
	return nil
}

// ChangeChildKey renames the key under which child is stored.
func (m *DictMutableKeysEntity) ChangeChildKey(child Entity, newKey string) error {
	if child == nil {
		return fmt.Errorf("%w: nil child", ErrKeyNotFound)
	}
	for key, candidate := range m.children {
		if candidate.ID() == child.ID() {
			return m.ChangeKey(key, newKey)
		}
	}
	return fmt.Errorf("%w: child %s in %q", ErrKeyNotFound, child.ID(), displayPath(m.Path()))
}

// Pop removes key and returns its entity.
func (m *DictMutableKeysEntity) Pop(key string) (Entity, error) {
	if m.state == StateNotDefined {
		return nil, ErrNotDefined
	}
	if m.isRequired(key) {
		return nil, &RequiredKeyModified{Path: m.Path(), Key: key}
	}
	child, ok := m.children[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrKeyNotFound, key, displayPath(m.Path()))
	}
	m.removeChild(key)
	m.changed()
	m.root.emit(verbKeyRemoved, schema.JoinPath(m.Path(), key), key, nil)
	return child, nil
}

// Clear removes every key except the required ones.
func (m *DictMutableKeysEntity) Clear() error {
	if m.state == StateNotDefined {
		return ErrNotDefined
	}
	removed := false
	for _, key := range m.Keys() {
		if m.isRequired(key) {
			continue
		}
		m.removeChild(key)
		removed = true
	}
	if removed {
		m.changed()
	}
	return nil
}

func (m *DictMutableKeysEntity) removeChild(key string) {
	child, ok := m.children[key]
	if !ok {
		return
	}
	delete(m.labels, child.ID())
	delete(m.children, key)
}

// ChildLabel returns the display label of child, empty when unset.
func (m *DictMutableKeysEntity) ChildLabel(child Entity) string {
	if child == nil {
		return ""
	}
	return m.labels[child.ID()]
}

// KeyLabel returns the display label of the item under key.
func (m *DictMutableKeysEntity) KeyLabel(key string) string {
	child, ok := m.children[key]
	if !ok {
		return ""
	}
	return m.labels[child.ID()]
}

// SetChildLabel changes the display label of child. An empty label removes
// it.
func (m *DictMutableKeysEntity) SetChildLabel(child Entity, label string) error {
	if child == nil {
		return fmt.Errorf("%w: nil child", ErrKeyNotFound)
	}
	for key, candidate := range m.children {
		if candidate.ID() == child.ID() {
			return m.SetKeyLabel(key, label)
		}
	}
	return fmt.Errorf("%w: child %s in %q", ErrKeyNotFound, child.ID(), displayPath(m.Path()))
}

// SetKeyLabel changes the display label of the item under key.
func (m *DictMutableKeysEntity) SetKeyLabel(key, label string) error {
	child, ok := m.children[key]
	if !ok {
		return fmt.Errorf("%w: %q in %q", ErrKeyNotFound, key, displayPath(m.Path()))
	}
	if m.labels[child.ID()] == label {
		return nil
	}
	if label == "" {
		delete(m.labels, child.ID())
	} else {
		m.labels[child.ID()] = label
	}
	m.changed()
	return nil
}

func (m *DictMutableKeysEntity) metadata() map[string]any {
	labels := map[string]any{}
	for key, child := range m.children {
		if label, ok := m.labels[child.ID()]; ok && label != "" {
			labels[key] = label
		}
	}
	if len(labels) == 0 {
		return map[string]any{}
	}
	return map[string]any{MDynamicKeyLabel: labels}
}

func (m *DictMutableKeysEntity) updateLayer(layer OverrideState, value any) {
	if !IsNotSet(value) {
		if _, ok := value.(map[string]any); !ok {
			m.root.warnf(m.Path(), "%s value of mutable dict is %T, ignored", layer, value)
			value = NotSet
		}
	}
	m.storeLayer(layer, layering.Clone(value))
}

func (m *DictMutableKeysEntity) applyState(state OverrideState) {
	m.state = state
	m.resetFlags()
	source, layer := m.layerValue(state)
	m.rebuild(source, layer)
	m.snapshotInitial()
	m.initialMeta = m.metadata()
}

// rebuild recreates every child from source, a raw layer document, feeding
// the value to the child layers up to layer.
func (m *DictMutableKeysEntity) rebuild(source any, layer OverrideState) {
	m.children = map[string]item{}
	m.labels = map[uuid.UUID]string{}

	data := map[string]any{}
	meta := map[string]any{}
	if raw, ok := source.(map[string]any); ok {
		data, meta = layering.SplitMetadata(layering.CloneMap(raw))
	}
	for _, key := range m.requiredKeys {
		if _, exists := data[key]; !exists {
			data[key] = NotSet
		}
	}
	labels, _ := meta[MDynamicKeyLabel].(map[string]any)

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := data[key]
		name := key
		if !ValidKey(name) {
			name = SanitizeKey(key)
			m.root.warnf(m.Path(), "key %q contains invalid symbols, renamed to %q", key, name)
			if !ValidKey(name) {
				continue
			}
		}
		child, err := m.newChild(name)
		if err != nil {
			m.root.warnf(m.Path(), "can't create item %q: %v", name, err)
			continue
		}
		child.updateLayer(StateDefaults, value)
		switch layer {
		case StateProject:
			child.updateLayer(StateProject, value)
		case StateStudio:
			child.updateLayer(StateStudio, value)
		}
		if label, ok := labels[key].(string); ok && label != "" {
			m.labels[child.ID()] = label
		}
		child.applyState(m.state)
	}
}

func (m *DictMutableKeysEntity) SettingsValue() any {
	return m.gatedSettingsValue()
}

func (m *DictMutableKeysEntity) settingsValue() any {
	out := make(map[string]any, len(m.children)+1)
	for key, child := range m.children {
		value := child.SettingsValue()
		if IsNotSet(value) {
			continue
		}
		if m.valueIsEnv {
			value = rekeyEnvironment(value, key)
		}
		out[key] = value
	}
	for key, value := range m.metadata() {
		out[key] = value
	}
	return out
}

// rekeyEnvironment makes the single environment binding of value point at
// key.
func rekeyEnvironment(value any, key string) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	envs, ok := m[MEnvironmentKey].(map[string]any)
	if !ok {
		return value
	}
	if _, bound := envs[key]; bound || len(envs) != 1 {
		return value
	}
	for _, keys := range envs {
		m[MEnvironmentKey] = map[string]any{key: keys}
	}
	return m
}

func (m *DictMutableKeysEntity) HasDefaultValue() bool {
	raw, ok := m.defaultValue.(map[string]any)
	if !ok {
		return false
	}
	for _, key := range m.requiredKeys {
		if _, exists := raw[key]; !exists {
			return false
		}
	}
	return true
}

func (m *DictMutableKeysEntity) HasUnsavedChanges() bool {
	if m.state == StateNotDefined {
		return false
	}
	if m.flagsChanged() {
		return true
	}
	for _, child := range m.children {
		if child.HasUnsavedChanges() {
			return true
		}
	}
	if !layering.Equal(m.metadata(), m.initialMeta) {
		return true
	}
	return m.valueChanged()
}

func (m *DictMutableKeysEntity) addStudio() { m.hasStudio = true }

func (m *DictMutableKeysEntity) addProject() { m.hasProject = true }

func (m *DictMutableKeysEntity) removeStudio() {
	m.hasStudio = false
	source := m.defaultValue
	if IsNotSet(source) {
		source = map[string]any{}
	}
	m.rebuild(source, StateDefaults)
}

func (m *DictMutableKeysEntity) removeProject() {
	m.hasProject = false
	source, layer := m.fallbackForProjectRemoval()
	if IsNotSet(source) {
		source = map[string]any{}
	}
	m.rebuild(source, layer)
}
