package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotDefined is returned when an entity is used before the tree got an
	// override state.
	ErrNotDefined = errors.New("settings: override state is not defined")
	// ErrKeyNotFound is returned when a key does not exist in a dict.
	ErrKeyNotFound = errors.New("settings: key not found")
	// ErrIndexOutOfRange is returned for invalid list positions.
	ErrIndexOutOfRange = errors.New("settings: index out of range")
	// ErrInvalidState is returned for transitions to a non resolvable state.
	ErrInvalidState = errors.New("settings: invalid override state")
)

// EntitySchemaError reports a schema node that can't back an entity.
type EntitySchemaError struct {
	Path   string
	Type   string
	Reason string
}

func (e *EntitySchemaError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: invalid schema of %s %q: %s", e.Type, displayPath(e.Path), e.Reason)
}

// InvalidKeySymbols reports a mutable dict key with disallowed characters.
type InvalidKeySymbols struct {
	Path string
	Key  string
}

func (e *InvalidKeySymbols) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"settings: key %q under %q contains invalid symbols, allowed are [%s]",
		e.Key, displayPath(e.Path), KeyAllowedSymbols,
	)
}

// RequiredKeyModified reports an attempt to rename or drop a required key.
type RequiredKeyModified struct {
	Path string
	Key  string
}

func (e *RequiredKeyModified) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: required key %q of %q can't be modified", e.Key, displayPath(e.Path))
}

// DefaultsNotDefined reports an entity without default value when a state
// above defaults was requested.
type DefaultsNotDefined struct {
	Path string
}

func (e *DefaultsNotDefined) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: default value of %q is not defined", displayPath(e.Path))
}

// StudioDefaultsNotDefined reports a missing studio layer when studio or
// project state was requested.
type StudioDefaultsNotDefined struct {
	Path string
}

func (e *StudioDefaultsNotDefined) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: studio overrides of %q were not loaded", displayPath(e.Path))
}

// InvalidValueType reports a value the entity can't hold.
type InvalidValueType struct {
	Path     string
	Expected string
	Value    any
}

func (e *InvalidValueType) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: %q expects %s, got %T (%v)", displayPath(e.Path), e.Expected, e.Value, e.Value)
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
