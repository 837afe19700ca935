package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/schema"
)

var platforms = []string{"windows", "darwin", "linux"}

// valueConverter normalizes an incoming value, reporting false when the value
// can't be held by the entity.
type valueConverter func(value any) (any, bool)

// inputEntity holds a single scalar or opaque value.
type inputEntity struct {
	baseEntity

	current     any
	expected    string
	notSetValue any
	convert     valueConverter
}

func newInputEntity(r *Root, node *schema.Node, parent item, key string, dynamic bool) *inputEntity {
	e := &inputEntity{}
	e.init(r, e, node, parent, key, dynamic)
	e.configure()
	e.current = layering.Clone(e.notSetValue)
	return e
}

func (e *inputEntity) configure() {
	node := e.node
	switch node.Type {
	case "boolean":
		e.expected = "boolean"
		e.notSetValue = false
		e.convert = func(value any) (any, bool) {
			b, ok := value.(bool)
			return b, ok
		}
	case "number":
		places, _ := node.NumberOption("decimal")
		decimal := int(places)
		if decimal > 0 {
			e.expected = "number"
			e.notSetValue = 0.0
		} else {
			e.expected = "integer"
			e.notSetValue = 0
		}
		e.convert = func(value any) (any, bool) {
			if _, isBool := value.(bool); isBool {
				return nil, false
			}
			f, ok := layering.Number(value)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, false
			}
			if decimal > 0 {
				return f, true
			}
			return int(math.Round(f)), true
		}
	case "text":
		e.expected = "string"
		e.notSetValue = ""
		e.convert = convertString
	case "path":
		e.configurePath()
	case "enum":
		e.configureEnum()
	case "raw-json":
		e.expected = "json object"
		e.notSetValue = map[string]any{}
		if node.BoolOption("is_list", false) {
			e.expected = "json array"
			e.notSetValue = []any{}
		}
		e.convert = e.convertJSON
	default:
		e.expected = "any"
		e.notSetValue = nil
		e.convert = func(value any) (any, bool) { return layering.Clone(value), true }
	}
}

func convertString(value any) (any, bool) {
	s, ok := value.(string)
	return s, ok
}

func convertStringList(value any) (any, bool) {
	items, ok := value.([]any)
	if !ok {
		strs, isStrings := value.([]string)
		if !isStrings {
			return nil, false
		}
		out := make([]any, len(strs))
		for i, s := range strs {
			out[i] = s
		}
		return out, true
	}
	out := make([]any, len(items))
	for i, item := range items {
		s, isString := item.(string)
		if !isString {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func (e *inputEntity) configurePath() {
	multiplatform := e.node.BoolOption("multiplatform", false)
	multipath := e.node.BoolOption("multipath", false)

	single := valueConverter(convertString)
	var singleEmpty any = ""
	if multipath {
		single = convertStringList
		singleEmpty = []any{}
	}
	if !multiplatform {
		e.expected = "path"
		if multipath {
			e.expected = "list of paths"
		}
		e.notSetValue = singleEmpty
		e.convert = single
		return
	}

	e.expected = "platform paths"
	empty := map[string]any{}
	for _, platform := range platforms {
		empty[platform] = layering.Clone(singleEmpty)
	}
	e.notSetValue = empty
	e.convert = func(value any) (any, bool) {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		out := map[string]any{}
		for _, platform := range platforms {
			raw, exists := m[platform]
			if !exists {
				out[platform] = layering.Clone(singleEmpty)
				continue
			}
			converted, valid := single(raw)
			if !valid {
				return nil, false
			}
			out[platform] = converted
		}
		return out, true
	}
}

func (e *inputEntity) configureEnum() {
	raw, _ := e.node.Option("enum_items")
	allowed := enumItems(raw)
	multi := e.node.BoolOption("multiselection", false)
	isAllowed := func(value any) bool {
		for _, candidate := range allowed {
			if layering.Equal(candidate, value) {
				return true
			}
		}
		return false
	}

	if multi {
		e.expected = fmt.Sprintf("list of %v", allowed)
		e.notSetValue = []any{}
		e.convert = func(value any) (any, bool) {
			items, ok := value.([]any)
			if strs, isStrings := value.([]string); isStrings {
				items, ok = make([]any, len(strs)), true
				for i, s := range strs {
					items[i] = s
				}
			}
			if !ok {
				return nil, false
			}
			out := make([]any, 0, len(items))
			for _, item := range items {
				if !isAllowed(item) {
					return nil, false
				}
				out = append(out, item)
			}
			return out, true
		}
		return
	}

	e.expected = fmt.Sprintf("one of %v", allowed)
	e.notSetValue = ""
	if len(allowed) > 0 {
		e.notSetValue = allowed[0]
	}
	e.convert = func(value any) (any, bool) {
		if !isAllowed(value) {
			return nil, false
		}
		return value, true
	}
}

// enumItems accepts either a list of values or a list of single entry
// {value: label} maps.
func enumItems(raw any) []any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []any
	for _, entry := range list {
		m, isMap := entry.(map[string]any)
		if !isMap {
			out = append(out, entry)
			continue
		}
		keys := make([]string, 0, len(m))
		for key := range m {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, key)
		}
	}
	return out
}

func (e *inputEntity) convertJSON(value any) (any, bool) {
	if s, ok := value.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, false
		}
		value = decoded
	}
	switch typed := value.(type) {
	case map[string]any:
		if _, isList := e.notSetValue.([]any); isList {
			return nil, false
		}
		return layering.StripMetadata(typed), true
	case []any:
		if _, isMap := e.notSetValue.(map[string]any); isMap {
			return nil, false
		}
		return layering.Clone(typed), true
	}
	return nil, false
}

func (e *inputEntity) validate() error {
	if err := e.baseEntity.validate(); err != nil {
		return err
	}
	raw, _ := e.node.Option("enum_items")
	if e.node.Type == "enum" && len(enumItems(raw)) == 0 {
		return &EntitySchemaError{Path: e.Path(), Type: e.node.Type, Reason: "enum_items are empty"}
	}
	return nil
}

func (e *inputEntity) Value() any {
	return layering.Clone(e.current)
}

func (e *inputEntity) Set(value any) error {
	if e.state == StateNotDefined {
		return ErrNotDefined
	}
	converted, ok := e.convert(value)
	if !ok {
		return &InvalidValueType{Path: e.Path(), Expected: e.expected, Value: value}
	}
	old := e.current
	e.current = converted
	e.changed()
	e.root.debugf(e.Path(), "value changed from %v to %v", old, converted)
	return nil
}

func (e *inputEntity) updateLayer(layer OverrideState, value any) {
	if !IsNotSet(value) {
		converted, ok := e.convert(value)
		if !ok {
			e.root.warnf(e.Path(), "%s value %v is not %s, ignored", layer, value, e.expected)
			value = NotSet
		} else {
			value = converted
		}
	}
	e.storeLayer(layer, value)
}

func (e *inputEntity) applyState(state OverrideState) {
	e.state = state
	e.resetFlags()
	value, _ := e.layerValue(state)
	if IsNotSet(value) {
		value = e.notSetValue
	}
	e.current = layering.Clone(value)
	e.snapshotInitial()
}

func (e *inputEntity) SettingsValue() any {
	return e.gatedSettingsValue()
}

func (e *inputEntity) settingsValue() any {
	value := layering.Clone(e.current)
	if e.envKey == "" {
		return value
	}
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	envKeys := make([]any, len(keys))
	for i, key := range keys {
		envKeys[i] = key
	}
	m[MEnvironmentKey] = map[string]any{e.envKey: envKeys}
	return m
}

func (e *inputEntity) HasDefaultValue() bool {
	return !IsNotSet(e.defaultValue)
}

func (e *inputEntity) HasUnsavedChanges() bool {
	if e.state == StateNotDefined {
		return false
	}
	return e.flagsChanged() || e.valueChanged()
}

func (e *inputEntity) addStudio() { e.hasStudio = true }

func (e *inputEntity) addProject() { e.hasProject = true }

func (e *inputEntity) removeStudio() {
	e.hasStudio = false
	e.current = e.valueOrEmpty(e.defaultValue)
}

func (e *inputEntity) removeProject() {
	e.hasProject = false
	value, _ := e.fallbackForProjectRemoval()
	e.current = e.valueOrEmpty(value)
}

func (e *inputEntity) valueOrEmpty(value any) any {
	if IsNotSet(value) {
		return layering.Clone(e.notSetValue)
	}
	return layering.Clone(value)
}
