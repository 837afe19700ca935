package settings

import (
	"encoding/json"
	"strings"

	"github.com/pypeclub/OpenPype/layering"
)

// Trace captures provenance information for a given path lookup across the
// override layers that produced the effective value.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a single layer contributed to a traced path.
type Provenance struct {
	Layer      string `json:"layer"`
	Identifier string `json:"identifier"`
	Project    string `json:"project,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Source returns the strongest layer that defines the traced path.
func (t Trace) Source() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// Trace reports, strongest layer first, which layer documents define path.
// Path segments are separated by "/".
func (s *Snapshot) Trace(path string) Trace {
	keys := splitPath(path)
	trace := Trace{Path: strings.Join(keys, "/")}
	for _, layer := range s.chain.Ordered() {
		value, found := layering.LookupPath(layer.Document, keys)
		entry := Provenance{
			Layer:      layer.Level.String(),
			Identifier: layer.Identifier(),
			Project:    layer.Project,
			Path:       trace.Path,
			Found:      found,
		}
		if found {
			entry.Value = layering.StripMetadata(layering.Clone(value))
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return trace
}

// Trace reports which layers define path in the current state of the tree.
func (r *Root) Trace(path string) (Trace, error) {
	snapshot, err := r.Snapshot()
	if err != nil {
		return Trace{}, err
	}
	return snapshot.Trace(path), nil
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	keys := parts[:0]
	for _, part := range parts {
		if part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
