package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pypeclub/OpenPype/schema/openapi"
)

type OpenAPIOptions struct {
	*GlobalOptions
	Title   string
	Version string
}

func NewOpenAPICmd(g *GlobalOptions) *cobra.Command {
	o := &OpenAPIOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print an OpenAPI document describing the settings schema",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return o.Run() },
	}
	cmd.Flags().StringVar(&o.Title, "title", "", "Document title")
	cmd.Flags().StringVar(&o.Version, "version", "", "Document version")
	return cmd
}

func (o *OpenAPIOptions) Run() error {
	node, err := o.loadSchema()
	if err != nil {
		return err
	}
	info := openapi.Info{Title: o.Title, Version: o.Version}
	doc, err := openapi.NewGenerator(openapi.WithInfo(info)).Generate(node)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc.Document, "", "  ")
	if err != nil {
		return fmt.Errorf("encode openapi document: %w", err)
	}
	fmt.Fprintln(o.stdout, string(raw))
	return nil
}
