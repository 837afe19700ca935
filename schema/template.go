package schema

import (
	"fmt"
	"regexp"
	"sort"
)

const templateDefaultsKey = "__default_values__"

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_\-]*)\}`)

// FillTemplate substitutes {placeholder} markers of template with data. It is
// the function used for schema_template expansion and is exported for tools
// that need to preview one template instance.
func FillTemplate(template []any, data map[string]any) ([]any, error) {
	return fillTemplate(template, data)
}

func fillTemplate(template []any, data map[string]any) ([]any, error) {
	values := make(map[string]any, len(data))
	for key, value := range data {
		values[key] = value
	}

	items := make([]any, 0, len(template))
	for _, item := range template {
		if itemMap, ok := item.(map[string]any); ok {
			if defaults, ok := itemMap[templateDefaultsKey].(map[string]any); ok {
				for key, value := range defaults {
					if _, exists := values[key]; !exists {
						values[key] = value
					}
				}
				continue
			}
		}
		items = append(items, item)
	}

	f := &templateFiller{
		data:     values,
		required: map[string]struct{}{},
		missing:  map[string]struct{}{},
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = f.fill(item)
	}
	if len(f.missing) > 0 {
		return nil, &SchemaTemplateMissingKeys{
			Required: sortedKeys(f.required),
			Missing:  sortedKeys(f.missing),
		}
	}
	return out, nil
}

type templateFiller struct {
	data     map[string]any
	required map[string]struct{}
	missing  map[string]struct{}
}

func (f *templateFiller) fill(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = f.fill(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = f.fill(item)
		}
		return out
	case string:
		return f.fillString(typed)
	default:
		return value
	}
}

func (f *templateFiller) fillString(input string) any {
	matches := placeholderPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}
	for _, match := range matches {
		key := input[match[2]:match[3]]
		f.required[key] = struct{}{}
		if _, ok := f.data[key]; !ok {
			f.missing[key] = struct{}{}
		}
	}
	// A string made of exactly one placeholder takes the raw value so
	// templates can inject numbers, booleans or whole lists.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(input) {
		key := input[matches[0][2]:matches[0][3]]
		if value, ok := f.data[key]; ok {
			return cloneAny(value)
		}
		return input
	}
	return placeholderPattern.ReplaceAllStringFunc(input, func(marker string) string {
		key := marker[1 : len(marker)-1]
		value, ok := f.data[key]
		if !ok {
			return marker
		}
		return fmt.Sprint(value)
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
