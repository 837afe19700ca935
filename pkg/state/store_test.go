package state_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/pkg/state"
)

func studioDocument() state.Document {
	return state.Document{
		"general": map[string]any{
			settings.MOverridenKey: []any{"studio_name"},
			"studio_name":          "Pype Club",
		},
		"tools": map[string]any{
			settings.MOverridenKey: []any{"paths"},
			"paths":                []any{"/studio/a", "/studio/b"},
		},
	}
}

func studioMeta() state.Meta {
	return state.Meta{
		SnapshotID: "snap-1",
		ETag:       "abc123",
		UpdatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Extra:      map[string]string{"author": "jane"},
	}
}

func assertRoundTrip(t *testing.T, store state.Store) {
	t.Helper()
	ctx := context.Background()
	ref := state.StudioRef(category)

	if _, _, ok, err := store.Load(ctx, ref); err != nil || ok {
		t.Fatalf("expected missing layer, got ok=%v err=%v", ok, err)
	}

	saved, err := store.Save(ctx, ref, studioDocument(), studioMeta())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ETag != "abc123" || saved.SnapshotID != "snap-1" {
		t.Fatalf("unexpected saved meta %#v", saved)
	}

	doc, meta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !layering.Equal(doc, studioDocument()) {
		t.Fatalf("unexpected document %#v", doc)
	}
	if meta.SnapshotID != "snap-1" || meta.ETag != "abc123" || meta.Extra["author"] != "jane" {
		t.Fatalf("unexpected meta %#v", meta)
	}
	if !meta.UpdatedAt.Equal(studioMeta().UpdatedAt) {
		t.Fatalf("unexpected updated_at %v", meta.UpdatedAt)
	}

	// Overwrites replace the previous record.
	if _, err := store.Save(ctx, ref, state.Document{}, state.Meta{ETag: "def456"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	doc, meta, ok, err = store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("reload: ok=%v err=%v", ok, err)
	}
	if len(doc) != 0 || meta.ETag != "def456" || meta.SnapshotID != "" {
		t.Fatalf("expected overwritten record, got %#v %#v", doc, meta)
	}

	if _, err := store.Save(ctx, state.ProjectRef(category, ""), state.Document{}, state.Meta{}); err == nil {
		t.Fatalf("expected invalid ref error")
	}
}

func TestMemoryStore(t *testing.T) {
	assertRoundTrip(t, state.NewMemoryStore())
}

func TestMemoryStoreClonesDocuments(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	doc := studioDocument()
	meta := studioMeta()
	if _, err := store.Save(ctx, state.StudioRef(category), doc, meta); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc["general"].(map[string]any)["studio_name"] = "Changed"
	meta.Extra["author"] = "john"

	loaded, loadedMeta, _, err := store.Load(ctx, state.StudioRef(category))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["general"].(map[string]any)["studio_name"] != "Pype Club" {
		t.Fatalf("store shares the saved document")
	}
	if loadedMeta.Extra["author"] != "jane" {
		t.Fatalf("store shares the saved meta")
	}

	loaded["general"].(map[string]any)["studio_name"] = "Again"
	again, _, _, _ := store.Load(ctx, state.StudioRef(category))
	if again["general"].(map[string]any)["studio_name"] != "Pype Club" {
		t.Fatalf("store shares the loaded document")
	}

	if _, err := store.Save(ctx, state.ProjectRef(category, "demo"), nil, state.Meta{}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	ids := store.Identifiers()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "project/demo/system_settings" || ids[1] != "studio/system_settings" {
		t.Fatalf("unexpected identifiers %v", ids)
	}
}

func TestFileStoreFormats(t *testing.T) {
	for _, format := range []state.FileFormat{state.FormatJSON, state.FormatYAML, state.FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			store, err := state.NewFileStore(dir, format)
			if err != nil {
				t.Fatalf("new file store: %v", err)
			}
			assertRoundTrip(t, store)

			path, err := store.Path(state.StudioRef(category))
			if err != nil {
				t.Fatalf("path: %v", err)
			}
			want := filepath.Join(dir, "studio", "system_settings."+string(format))
			if path != want {
				t.Fatalf("expected %s, got %s", want, path)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected layer file: %v", err)
			}
			entries, err := os.ReadDir(filepath.Dir(path))
			if err != nil {
				t.Fatalf("read dir: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("temporary files left behind: %v", entries)
			}
		})
	}
}

func TestFileStoreRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewFileStore(dir, state.FormatJSON)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	path, _ := store.Path(state.DefaultsRef(category))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := store.Load(context.Background(), state.DefaultsRef(category)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParseFileFormat(t *testing.T) {
	cases := map[string]state.FileFormat{
		"":      state.FormatJSON,
		".json": state.FormatJSON,
		"YAML":  state.FormatYAML,
		".yml":  state.FormatYAML,
		"toml":  state.FormatTOML,
	}
	for input, want := range cases {
		got, err := state.ParseFileFormat(input)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %q, %v", input, got, err)
		}
	}
	if _, err := state.ParseFileFormat("ini"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := state.NewFileStore("", state.FormatJSON); err == nil {
		t.Fatalf("expected missing root error")
	}
}
