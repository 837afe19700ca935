package settings

import (
	"github.com/pypeclub/OpenPype/schema"
)

// SchemaGenerator transforms a settings schema into a schema document. All
// implementations MUST be safe for concurrent use and handle nil inputs by
// returning an empty schema document.
type SchemaGenerator interface {
	Generate(node *schema.Node) (SchemaDocument, error)
}

// FieldDescriptor describes one keyed schema node. Items of mutable dicts
// and lists use "*" as their path segment.
type FieldDescriptor struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
	Group bool   `json:"group,omitempty"`
	File  bool   `json:"file,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(node *schema.Node) (SchemaDocument, error) {
	descriptors := []FieldDescriptor{}
	if node != nil {
		// Paths are relative to the root dict, as entity paths are.
		for _, child := range node.Children {
			descriptors = append(descriptors, deriveFieldDescriptors(child, nil)...)
		}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

func deriveFieldDescriptors(node *schema.Node, prefix []string) []FieldDescriptor {
	if node == nil {
		return nil
	}
	var fields []FieldDescriptor
	path := prefix
	if node.Key != "" {
		path = append(append([]string(nil), prefix...), node.Key)
		fields = append(fields, FieldDescriptor{
			Path:  schema.JoinPath(path...),
			Type:  node.Type,
			Label: node.Label,
			Group: node.IsGroup,
			File:  node.IsFile,
		})
	}
	for _, child := range node.Children {
		fields = append(fields, deriveFieldDescriptors(child, path)...)
	}
	if node.ObjectType != nil {
		item := append(append([]string(nil), path...), "*")
		fields = append(fields, FieldDescriptor{
			Path:  schema.JoinPath(item...),
			Type:  node.ObjectType.Type,
			Label: node.ObjectType.Label,
		})
		for _, child := range node.ObjectType.Children {
			fields = append(fields, deriveFieldDescriptors(child, item)...)
		}
	}
	return fields
}

// Schema generates a schema document of the tree the snapshot was taken
// from, annotated with the layers the snapshot was resolved from.
func (s *Snapshot) Schema() (SchemaDocument, error) {
	var node *schema.Node
	if s != nil {
		node = s.node
	}
	doc, err := s.schemaGenerator().Generate(node)
	if err != nil {
		return SchemaDocument{}, err
	}
	doc.Layers = s.Layers()
	return doc, nil
}
