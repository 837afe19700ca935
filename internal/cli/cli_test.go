package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pypeclub/OpenPype/internal/cli"
	"github.com/pypeclub/OpenPype/pkg/state"
	"github.com/pypeclub/OpenPype/pkg/state/sqlstore"
)

const schemaJSON = `{
  "type": "dict",
  "key": "system_settings",
  "children": [
    {
      "type": "dict",
      "key": "general",
      "is_file": true,
      "children": [
        {"type": "text", "key": "studio_name", "label": "Studio Name"},
        {"type": "number", "key": "fps"}
      ]
    }
  ]
}`

type fixture struct {
	schemaDir string
	storeDir  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fx := fixture{schemaDir: t.TempDir(), storeDir: t.TempDir()}
	if err := os.WriteFile(filepath.Join(fx.schemaDir, "system_settings.json"), []byte(schemaJSON), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	store, err := state.NewFileStore(fx.storeDir, state.FormatYAML)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	defaults := state.Document{"general": map[string]any{"studio_name": "Studio", "fps": 25}}
	if _, err := store.Save(context.Background(), state.DefaultsRef("system_settings"), defaults, state.Meta{}); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	return fx
}

func (fx fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCmd(&stdout, &stderr)
	base := []string{"--schema", fx.schemaDir, "--store", fx.storeDir, "--store-format", "yaml"}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (fx fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := fx.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestValidateSchemaOnly(t *testing.T) {
	fx := newFixture(t)
	var stdout bytes.Buffer
	cmd := cli.NewRootCmd(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "--schema", fx.schemaDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := stdout.String(); got != "schema system_settings ok\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestValidateLayers(t *testing.T) {
	fx := newFixture(t)
	if out := fx.mustRun(t, "validate", "--project", "demo"); out != "project/demo/system_settings ok\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := fx.run(t, "validate", "--level", "bogus"); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestSetResolveAndDiff(t *testing.T) {
	fx := newFixture(t)

	out := fx.mustRun(t, "set", "general/studio_name", "Pype Club")
	if !strings.HasPrefix(out, "studio/system_settings etag ") {
		t.Fatalf("unexpected set output %q", out)
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(fx.mustRun(t, "resolve", "-o", "json")), &values); err != nil {
		t.Fatalf("decode resolve output: %v", err)
	}
	general := values["general"].(map[string]any)
	if general["studio_name"] != "Pype Club" || general["fps"] != float64(25) {
		t.Fatalf("unexpected resolved values %#v", general)
	}

	diff := fx.mustRun(t, "diff")
	for _, want := range []string{"--- defaults/system_settings", "+++ studio/system_settings", "-    studio_name: Studio", "+    studio_name: Pype Club"} {
		if !strings.Contains(diff, want) {
			t.Fatalf("diff misses %q:\n%s", want, diff)
		}
	}

	fx.mustRun(t, "set", "--remove", "general/studio_name")
	diff = fx.mustRun(t, "diff")
	if !strings.Contains(diff, "resolve to the same values") {
		t.Fatalf("expected no differences, got:\n%s", diff)
	}
}

func TestSetProjectLayer(t *testing.T) {
	fx := newFixture(t)
	fx.mustRun(t, "set", "--project", "demo", "general/fps", "30")

	out := fx.mustRun(t, "resolve", "--project", "demo", "-o", "yaml")
	if !strings.Contains(out, "fps: 30") {
		t.Fatalf("project override missing:\n%s", out)
	}
	out = fx.mustRun(t, "resolve", "--level", "studio")
	if !strings.Contains(out, "fps: 25") {
		t.Fatalf("project override leaked into studio:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(fx.storeDir, "project", "demo", "system_settings.yaml")); err != nil {
		t.Fatalf("expected project layer file: %v", err)
	}
}

func TestSetRejectsStaleETag(t *testing.T) {
	fx := newFixture(t)
	fx.mustRun(t, "set", "general/fps", "24")
	if _, err := fx.run(t, "set", "--etag", "stale", "general/fps", "30"); err == nil {
		t.Fatalf("expected etag mismatch")
	}
	if _, err := fx.run(t, "set", "general/fps"); err == nil {
		t.Fatalf("expected missing value error")
	}
}

func TestOpenAPI(t *testing.T) {
	fx := newFixture(t)
	var doc map[string]any
	if err := json.Unmarshal([]byte(fx.mustRun(t, "openapi", "--title", "System")), &doc); err != nil {
		t.Fatalf("decode openapi output: %v", err)
	}
	if doc["openapi"] == nil {
		t.Fatalf("missing openapi version: %#v", doc)
	}
	if doc["info"].(map[string]any)["title"] != "System" {
		t.Fatalf("unexpected info %#v", doc["info"])
	}
}

func TestResolveRequiresStore(t *testing.T) {
	var stdout bytes.Buffer
	cmd := cli.NewRootCmd(&stdout, &bytes.Buffer{})
	cmd.SetArgs([]string{"resolve"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected missing store error")
	}
}

func TestResolveFromSQLite(t *testing.T) {
	fx := newFixture(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "settings.db")

	var stdout bytes.Buffer
	run := func(args ...string) error {
		stdout.Reset()
		cmd := cli.NewRootCmd(&stdout, &bytes.Buffer{})
		cmd.SetArgs(append(args, "--schema", fx.schemaDir, "--sqlite", dsn))
		return cmd.Execute()
	}

	if err := run("resolve"); err == nil {
		t.Fatalf("expected missing defaults error")
	}

	store, err := sqlstore.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defaults := state.Document{"general": map[string]any{"studio_name": "Studio", "fps": 25}}
	if _, err := store.Save(context.Background(), state.DefaultsRef("system_settings"), defaults, state.Meta{}); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	if err := run("set", "general/studio_name", "Pype Club"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := run("resolve", "-o", "toml"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(stdout.String(), `studio_name = "Pype Club"`) {
		t.Fatalf("unexpected toml output:\n%s", stdout.String())
	}
}
