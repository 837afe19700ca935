package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	settings "github.com/pypeclub/OpenPype"
)

type ValidateOptions struct {
	*GlobalOptions
	Level string
}

func NewValidateCmd(g *GlobalOptions) *cobra.Command {
	o := &ValidateOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schema and, with a store, the layers stored for it",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return o.Run(cmd.Context()) },
	}
	cmd.Flags().StringVar(&o.Level, "level", "", "Layer to validate up to (defaults, studio, project)")
	return cmd
}

func (o *ValidateOptions) Run(ctx context.Context) error {
	node, err := o.loadSchema()
	if err != nil {
		return err
	}
	if o.StoreDir == "" && o.SQLite == "" {
		fmt.Fprintf(o.stdout, "schema %s ok\n", node.Key)
		return nil
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
	if _, _, err := o.resolver(store).Open(ctx, node, ref, settings.WithLogger(o.logger())); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	fmt.Fprintf(o.stdout, "%s ok\n", id)
	return nil
}
