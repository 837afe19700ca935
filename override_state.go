package settings

// OverrideState identifies the value layer an entity tree currently exposes.
// States are ordered: a higher state shows its own layer on top of every
// lower one.
type OverrideState int

const (
	// StateNotDefined is the state of a tree that was never resolved.
	StateNotDefined OverrideState = iota - 1
	// StateDefaults exposes only default values.
	StateDefaults
	// StateStudio exposes studio overrides on top of defaults.
	StateStudio
	// StateProject exposes project overrides on top of studio overrides.
	StateProject
)

func (s OverrideState) String() string {
	switch s {
	case StateDefaults:
		return "defaults"
	case StateStudio:
		return "studio"
	case StateProject:
		return "project"
	default:
		return "not_defined"
	}
}

// Label returns the human friendly layer name.
func (s OverrideState) Label() string {
	switch s {
	case StateDefaults:
		return "Defaults"
	case StateStudio:
		return "Studio overrides"
	case StateProject:
		return "Project overrides"
	default:
		return "Not defined"
	}
}

// Valid reports whether s is one of the resolvable states.
func (s OverrideState) Valid() bool {
	return s >= StateDefaults && s <= StateProject
}

// ParseOverrideState converts a layer name into an OverrideState. Unknown
// values yield StateNotDefined.
func ParseOverrideState(value string) OverrideState {
	switch value {
	case "defaults", "DEFAULTS", "default":
		return StateDefaults
	case "studio", "STUDIO":
		return StateStudio
	case "project", "PROJECT":
		return StateProject
	default:
		return StateNotDefined
	}
}
