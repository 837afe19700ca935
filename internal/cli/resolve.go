package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type ResolveOptions struct {
	*GlobalOptions
	Level  string
	Output string
}

func NewResolveCmd(g *GlobalOptions) *cobra.Command {
	o := &ResolveOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective settings of a layer",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return o.Run(cmd.Context()) },
	}
	cmd.Flags().StringVar(&o.Level, "level", "", "Layer to resolve (defaults, studio, project)")
	cmd.Flags().StringVarP(&o.Output, "output", "o", "yaml", "Output format (yaml, json, toml)")
	return cmd
}

func (o *ResolveOptions) Run(ctx context.Context) error {
	store, closeStore, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ref, err := o.ref(o.Level)
	if err != nil {
		return err
	}
	values, err := o.values(ctx, store, ref)
	if err != nil {
		return err
	}
	raw, err := encodeDocument(values, o.Output)
	if err != nil {
		return err
	}
	_, err = o.stdout.Write(raw)
	return err
}
