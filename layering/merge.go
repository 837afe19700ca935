package layering

// ApplyOverrides merges an override document on top of source and returns a
// new document. Keys listed in the override's OverridenKey metadata, and keys
// missing from source, are replaced wholesale. Nested maps merge recursively.
// The OverridenKey marker itself is not copied into the result.
func ApplyOverrides(source, overrides map[string]any) map[string]any {
	result := CloneMap(source)
	if len(overrides) == 0 {
		return result
	}
	return mergeOverrides(result, overrides)
}

func mergeOverrides(source, overrides map[string]any) map[string]any {
	replaced := map[string]struct{}{}
	for _, key := range StringList(overrides[OverridenKey]) {
		replaced[key] = struct{}{}
	}
	for key, value := range overrides {
		if key == OverridenKey {
			continue
		}
		current, exists := source[key]
		_, wholesale := replaced[key]
		if wholesale || !exists {
			source[key] = Clone(value)
			continue
		}
		overrideMap, okOverride := value.(map[string]any)
		currentMap, okCurrent := current.(map[string]any)
		if okOverride && okCurrent {
			source[key] = mergeOverrides(currentMap, overrideMap)
			continue
		}
		source[key] = Clone(value)
	}
	return source
}
