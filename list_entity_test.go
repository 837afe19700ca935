package settings

import (
	"errors"
	"testing"

	"github.com/pypeclub/OpenPype/layering"
)

func TestListOperations(t *testing.T) {
	root := newSystemRoot(t, nil, StateDefaults)
	paths := mustList(t, root, "tools/paths")

	for _, value := range []string{"/mnt/projects", "/mnt/library"} {
		if _, err := paths.Append(value); err != nil {
			t.Fatalf("append %q: %v", value, err)
		}
	}
	if _, err := paths.Insert(0, "/mnt/cache"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	want := []any{"/mnt/cache", "/mnt/projects", "/mnt/library"}
	if got := paths.Value(); !layering.Equal(got, want) {
		t.Fatalf("unexpected list %#v", got)
	}

	if err := paths.Swap(0, 2); err != nil {
		t.Fatalf("swap: %v", err)
	}
	removed, err := paths.Remove(1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Value() != "/mnt/projects" {
		t.Fatalf("unexpected removed item %#v", removed.Value())
	}
	want = []any{"/mnt/library", "/mnt/cache"}
	if got := paths.Value(); !layering.Equal(got, want) {
		t.Fatalf("unexpected list %#v", got)
	}

	item, err := paths.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Path() != "tools/paths/1" || !item.IsDynamicItem() {
		t.Fatalf("unexpected item path %q", item.Path())
	}
	if mustGet(t, root, "tools/paths/0").Value() != "/mnt/library" {
		t.Fatalf("index lookup through the root failed")
	}
}

func TestListIndexErrors(t *testing.T) {
	root := newSystemRoot(t, nil, StateDefaults)
	paths := mustList(t, root, "tools/paths")

	if _, err := paths.Get(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := paths.Insert(2, "x"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := paths.Remove(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := paths.Swap(0, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestListSetIsAtomic(t *testing.T) {
	root := newSystemRoot(t, nil, StateDefaults)
	paths := mustList(t, root, "tools/paths")

	if err := paths.Set([]any{"/a", "/b"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := paths.Set([]any{"/c", 3})
	var invalid *InvalidValueType
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidValueType, got %v", err)
	}
	if got := paths.Value(); !layering.Equal(got, []any{"/a", "/b"}) {
		t.Fatalf("rejected Set must keep items, got %#v", got)
	}
	if err := paths.Set("not a list"); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidValueType for non list, got %v", err)
	}
}

func TestListStudioOverride(t *testing.T) {
	studio := map[string]any{
		"tools": map[string]any{
			MOverridenKey: []any{"paths"},
			"paths":       []any{"/studio/pipeline"},
		},
	}
	root := newSystemRoot(t, studio, StateStudio)
	paths := mustList(t, root, "tools/paths")

	if got := paths.Value(); !layering.Equal(got, []any{"/studio/pipeline"}) {
		t.Fatalf("expected studio items, got %#v", got)
	}
	if !paths.HasStudioOverride() {
		t.Fatalf("expected studio override")
	}
	if got := root.SettingsValue(); !layering.Equal(got, studio) {
		t.Fatalf("round trip mismatch:\nwant: %#v\n got: %#v", studio, got)
	}

	item, err := paths.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := item.Set("/studio/tools"); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if !root.HasUnsavedChanges() {
		t.Fatalf("editing an item is a change")
	}

	paths.RemoveFromStudioDefault()
	if paths.Len() != 0 || paths.HasStudioOverride() {
		t.Fatalf("removing the override restores the empty default, got %#v", paths.Value())
	}
}
