package layering

import (
	"reflect"
	"testing"
)

func TestApplyOverridesMergesNestedMaps(t *testing.T) {
	source := map[string]any{
		"general": map[string]any{"name": "studio", "fps": 25.0},
		"tools":   map[string]any{"maya": map[string]any{"version": "2022"}},
	}
	overrides := map[string]any{
		"general": map[string]any{"fps": 30.0},
		"new":     "value",
	}

	got := ApplyOverrides(source, overrides)
	want := map[string]any{
		"general": map[string]any{"name": "studio", "fps": 30.0},
		"tools":   map[string]any{"maya": map[string]any{"version": "2022"}},
		"new":     "value",
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("merged document mismatch\nwant: %#v\n got: %#v", want, got)
	}
	if source["general"].(map[string]any)["fps"] != 25.0 {
		t.Fatalf("expected source to stay untouched, got %#v", source)
	}
}

func TestApplyOverridesReplacesOverriddenKeys(t *testing.T) {
	source := map[string]any{
		"colors": map[string]any{"red": 1.0, "green": 2.0},
	}
	overrides := map[string]any{
		OverridenKey: []any{"colors"},
		"colors":     map[string]any{"blue": 3.0},
	}

	got := ApplyOverrides(source, overrides)
	want := map[string]any{"colors": map[string]any{"blue": 3.0}}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("expected wholesale replacement\nwant: %#v\n got: %#v", want, got)
	}
}

func TestEqualNormalizesNumbers(t *testing.T) {
	if !Equal(map[string]any{"n": 3}, map[string]any{"n": 3.0}) {
		t.Fatal("expected int and float with same value to be equal")
	}
	if Equal([]any{"a"}, []any{"a", "b"}) {
		t.Fatal("expected slices of different length to differ")
	}
	if !Equal([]string{"a", "b"}, []any{"a", "b"}) {
		t.Fatal("expected string slice to equal any slice with same items")
	}
	if Equal(NotSet, nil) {
		t.Fatal("expected NotSet to differ from nil")
	}
	if !Equal(NotSet, NotSet) {
		t.Fatal("expected NotSet to equal itself")
	}
}

func TestStripMetadataRemovesReservedKeys(t *testing.T) {
	doc := map[string]any{
		OverridenKey: []any{"a"},
		"a": map[string]any{
			EnvironmentKey: map[string]any{"grp": []any{"PATH"}},
			"PATH":         "/bin",
		},
	}
	got := StripMetadata(doc)
	want := map[string]any{"a": map[string]any{"PATH": "/bin"}}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected stripped document\nwant: %#v\n got: %#v", want, got)
	}
}
