// Package cli implements the pype-settings command line tool.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/pkg/activity"
	"github.com/pypeclub/OpenPype/pkg/state"
	"github.com/pypeclub/OpenPype/pkg/state/sqlstore"
	"github.com/pypeclub/OpenPype/schema"
)

// GlobalOptions are shared by every subcommand.
type GlobalOptions struct {
	SchemaDir   string
	Entry       string
	Category    string
	Project     string
	StoreDir    string
	StoreFormat string
	SQLite      string
	Verbose     bool

	stdout io.Writer
	stderr io.Writer
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &GlobalOptions{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:           "pype-settings",
		Short:         "Inspect and edit layered pipeline settings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.SchemaDir, "schema", "", "Directory holding schema documents")
	flags.StringVar(&o.Entry, "entry", "", "Schema entry name (defaults to the category)")
	flags.StringVarP(&o.Category, "category", "c", "system_settings", "Settings category")
	flags.StringVarP(&o.Project, "project", "p", "", "Project name")
	flags.StringVar(&o.StoreDir, "store", "", "Directory of layer files")
	flags.StringVar(&o.StoreFormat, "store-format", "json", "Layer file format (json, yaml, toml)")
	flags.StringVar(&o.SQLite, "sqlite", "", "SQLite DSN used instead of --store")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "Log schema and tree events to stderr")

	cmd.AddCommand(
		NewValidateCmd(o),
		NewResolveCmd(o),
		NewOpenAPICmd(o),
		NewDiffCmd(o),
		NewSetCmd(o),
	)
	return cmd
}

func (o *GlobalOptions) logger() schema.Logger {
	if !o.Verbose {
		return schema.NoopLogger{}
	}
	return schema.LoggerFunc(func(event schema.LogEvent) {
		fmt.Fprintf(o.stderr, "%s %s: %s\n", event.Level, event.Path, event.Message)
	})
}

func (o *GlobalOptions) loadSchema() (*schema.Node, error) {
	if o.SchemaDir == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	entry := o.Entry
	if entry == "" {
		entry = o.Category
	}
	return schema.LoadDir(o.SchemaDir, entry, schema.WithLogger(o.logger()))
}

// openStore returns the configured store and a close func.
func (o *GlobalOptions) openStore(ctx context.Context) (state.Store, func() error, error) {
	noop := func() error { return nil }
	switch {
	case o.SQLite != "":
		store, err := sqlstore.Open(ctx, o.SQLite)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case o.StoreDir != "":
		format, err := state.ParseFileFormat(o.StoreFormat)
		if err != nil {
			return nil, noop, err
		}
		store, err := state.NewFileStore(o.StoreDir, format)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("one of --store or --sqlite is required")
	}
}

// ref returns the layer named by level, or the strongest layer the flags
// allow when level is empty.
func (o *GlobalOptions) ref(level string) (state.Ref, error) {
	if level == "" {
		if o.Project != "" {
			level = "project"
		} else {
			level = "studio"
		}
	}
	switch layering.ParseLevel(strings.ToLower(level)) {
	case layering.LevelDefaults:
		return state.DefaultsRef(o.Category), nil
	case layering.LevelStudio:
		return state.StudioRef(o.Category), nil
	case layering.LevelProject:
		return state.ProjectRef(o.Category, o.Project), nil
	default:
		return state.Ref{}, fmt.Errorf("unknown level %q", level)
	}
}

func (o *GlobalOptions) resolver(store state.Store) state.Resolver {
	resolver := state.Resolver{Store: store}
	if o.Verbose {
		resolver.Hooks = activity.Hooks{o.activityHook()}
	}
	return resolver
}

func (o *GlobalOptions) activityHook() activity.Hook {
	return activity.HookFunc(func(_ context.Context, event activity.Event) error {
		fmt.Fprintf(o.stderr, "%s %s %v\n", event.Verb, event.ObjectID, event.Metadata)
		return nil
	})
}

// values returns the effective values at ref. With a schema the tree is
// built and validated, otherwise stored documents are merged directly.
func (o *GlobalOptions) values(ctx context.Context, store state.Store, ref state.Ref) (map[string]any, error) {
	resolver := o.resolver(store)
	if o.SchemaDir == "" {
		return resolver.ResolveValues(ctx, ref)
	}
	node, err := o.loadSchema()
	if err != nil {
		return nil, err
	}
	root, _, err := resolver.Open(ctx, node, ref, settings.WithLogger(o.logger()))
	if err != nil {
		return nil, err
	}
	return root.Value(), nil
}

func encodeDocument(value any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		raw, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(raw, '\n'), nil
	case "yaml", "yml", "":
		return yaml.Marshal(value)
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(value); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
