// Package schema loads declarative settings schemas into a single resolved
// Node tree.
//
// A schema directory holds two kinds of documents:
//   - schemas: a JSON/YAML object, addressable by file basename through
//     {"type": "schema", "name": "<basename>"}
//   - templates: a JSON/YAML list, instantiated through
//     {"type": "schema_template", "name": "<basename>", "template_data": ...}
//
// Loading resolves every reference, fills template placeholders and then
// validates the structural invariants of the resolved tree (unique keys per
// level, unique environment group keys, group nesting and file boundaries).
// All validation problems are collected and returned together.
//
// Data flow:
//
//	fs.FS -> Loader.Load -> *Node -> settings.NewRoot
package schema
