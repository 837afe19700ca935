package openapi

import (
	settings "github.com/pypeclub/OpenPype"
	"github.com/pypeclub/OpenPype/schema"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI-compatible schema generator. The
// request body of the generated operation is the settings document the
// schema describes.
func NewGenerator(opts ...GeneratorOption) settings.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option returns a snapshot option that makes Snapshot.Schema produce
// OpenAPI documents.
func Option(opts ...GeneratorOption) settings.SnapshotOption {
	return settings.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(node *schema.Node) (settings.SchemaDocument, error) {
	root, err := buildSchemaGraph(node, g.config.registry)
	if err != nil {
		return settings.SchemaDocument{}, err
	}
	document, err := newDocumentBuilder(g.config).document(root)
	if err != nil {
		return settings.SchemaDocument{}, err
	}
	return settings.SchemaDocument{
		Format:   settings.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
