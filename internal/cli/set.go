package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/pkg/state"
)

type SetOptions struct {
	*GlobalOptions
	Level  string
	ETag   string
	Remove bool
}

func NewSetCmd(g *GlobalOptions) *cobra.Command {
	o := &SetOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "set PATH [VALUE]",
		Short: "Override one value in a layer and save it",
		Long: "Override one value in a layer and save it. VALUE is parsed as YAML, " +
			"so 25, true, [a, b] and {key: value} keep their types.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVar(&o.Level, "level", "", "Layer to edit (defaults, studio, project)")
	cmd.Flags().StringVar(&o.ETag, "etag", "", "Expected etag of the stored layer")
	cmd.Flags().BoolVar(&o.Remove, "remove", false, "Drop the override of PATH instead of setting it")
	return cmd
}

func (o *SetOptions) Run(ctx context.Context, args []string) error {
	path := args[0]
	if !o.Remove && len(args) != 2 {
		return fmt.Errorf("set %s: a value is required", path)
	}

	var value any
	if !o.Remove {
		if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil {
			return fmt.Errorf("set %s: parse value: %w", path, err)
		}
	}

	node, err := o.loadSchema()
	if err != nil {
		return err
	}
	store, closeStore, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ref, err := o.ref(o.Level)
	if err != nil {
		return err
	}
	id, err := ref.Identifier()
	if err != nil {
		return err
	}

	resolver := o.resolver(store)
	_, meta, err := resolver.Mutate(ctx, node, ref, state.Meta{ETag: o.ETag}, func(root *settings.Root) error {
		entity, err := root.Get(path)
		if err != nil {
			return err
		}
		if o.Remove {
			return removeOverride(entity, ref)
		}
		return entity.Set(value)
	}, settings.WithLogger(o.logger()))
	if err != nil {
		return fmt.Errorf("set %s in %s: %w", path, id, err)
	}
	fmt.Fprintf(o.stdout, "%s etag %s\n", id, meta.ETag)
	return nil
}

func removeOverride(entity settings.Entity, ref state.Ref) error {
	switch ref.State() {
	case settings.StateStudio:
		entity.RemoveFromStudioDefault()
	case settings.StateProject:
		entity.RemoveFromProjectOverride()
	default:
		return fmt.Errorf("defaults have no overrides to remove")
	}
	return nil
}
