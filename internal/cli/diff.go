package cli

import (
	"context"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/pypeclub/OpenPype/pkg/state"
)

type DiffOptions struct {
	*GlobalOptions
	From    string
	To      string
	Context int
}

func NewDiffCmd(g *GlobalOptions) *cobra.Command {
	o := &DiffOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show how one layer changes the effective settings of another",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return o.Run(cmd.Context()) },
	}
	cmd.Flags().StringVar(&o.From, "from", "defaults", "Base layer")
	cmd.Flags().StringVar(&o.To, "to", "", "Compared layer (defaults to the strongest available)")
	cmd.Flags().IntVar(&o.Context, "context", 3, "Lines of context")
	return cmd
}

func (o *DiffOptions) Run(ctx context.Context) error {
	store, closeStore, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	fromRef, err := o.ref(o.From)
	if err != nil {
		return err
	}
	toRef, err := o.ref(o.To)
	if err != nil {
		return err
	}
	fromID, err := fromRef.Identifier()
	if err != nil {
		return err
	}
	toID, err := toRef.Identifier()
	if err != nil {
		return err
	}

	from, err := o.render(ctx, store, fromRef)
	if err != nil {
		return err
	}
	to, err := o.render(ctx, store, toRef)
	if err != nil {
		return err
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: fromID,
		ToFile:   toID,
		Context:  o.Context,
	})
	if err != nil {
		return fmt.Errorf("diff %s %s: %w", fromID, toID, err)
	}
	if out == "" {
		fmt.Fprintf(o.stdout, "%s and %s resolve to the same values\n", fromID, toID)
		return nil
	}
	fmt.Fprint(o.stdout, out)
	return nil
}

// render resolves ref and encodes it as YAML, which sorts map keys.
func (o *DiffOptions) render(ctx context.Context, store state.Store, ref state.Ref) (string, error) {
	values, err := o.values(ctx, store, ref)
	if err != nil {
		return "", err
	}
	raw, err := encodeDocument(values, "yaml")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
