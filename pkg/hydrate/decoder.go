// Package hydrate decodes resolved settings documents into Go structs.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pypeclub/OpenPype/layering"
)

// Target names the settings document being decoded.
type Target struct {
	Category string
	Project  string
	State    string
}

// Identifier renders the target like a stored layer, e.g.
// "project/demo/project_settings".
func (t Target) Identifier() string {
	return layering.Layer{
		Category: t.Category,
		Level:    layering.ParseLevel(t.State),
		Project:  t.Project,
	}.Identifier()
}

// Stage names the step of Decode that failed.
type Stage string

const (
	StagePayload   Stage = "payload"
	StageTransform Stage = "transform"
	StageDecode    Stage = "decode"
	StageCheck     Stage = "check"
)

// Error is returned by Decode.
type Error struct {
	Stage  Stage
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transform rewrites the payload before decoding. Returning a nil map keeps
// the current payload.
type Transform func(Target, map[string]any) (map[string]any, error)

// Check inspects or adjusts the decoded value.
type Check[T any] func(Target, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder turns settings documents into values of T. By default the payload
// is round-tripped through encoding/json, so T uses json struct tags.
type Decoder[T any] struct {
	transforms []Transform
	checks     []Check[T]
	jsonOpts   []func(*json.Decoder)
	decode     func(Target, map[string]any) (T, error)
}

// NewDecoder returns a Decoder configured by opts.
func NewDecoder[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Before appends a payload transform.
func Before[T any](fn Transform) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.transforms = append(d.transforms, fn)
		}
	}
}

// After appends a check run on the decoded value.
func After[T any](fn Check[T]) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.checks = append(d.checks, fn)
		}
	}
}

// UseNumber decodes numbers into json.Number where T allows it.
func UseNumber[T any]() Option[T] {
	return ConfigureJSON[T]((*json.Decoder).UseNumber)
}

// Strict rejects payload keys T has no field for. Combine with
// Before(StripMetadata) when decoding raw override documents.
func Strict[T any]() Option[T] {
	return ConfigureJSON[T]((*json.Decoder).DisallowUnknownFields)
}

// ConfigureJSON adjusts the json.Decoder used by the default decode step.
func ConfigureJSON[T any](fn func(*json.Decoder)) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.jsonOpts = append(d.jsonOpts, fn)
		}
	}
}

// Using replaces the default decode step.
func Using[T any](decode func(Target, map[string]any) (T, error)) Option[T] {
	return func(d *Decoder[T]) {
		d.decode = decode
	}
}

// StripMetadata removes override metadata such as "__overriden_keys__".
func StripMetadata(_ Target, payload map[string]any) (map[string]any, error) {
	clean, _ := layering.StripMetadata(payload).(map[string]any)
	return clean, nil
}

// Decode converts payload into T. payload itself is never modified.
func (d *Decoder[T]) Decode(target Target, payload map[string]any) (T, error) {
	var zero T
	fail := func(stage Stage, err error) (T, error) {
		return zero, &Error{Stage: stage, Target: target.Identifier(), Err: err}
	}
	if payload == nil {
		return fail(StagePayload, errors.New("document is nil"))
	}

	current := layering.CloneMap(payload)
	for _, fn := range d.transforms {
		next, err := fn(target, current)
		if err != nil {
			return fail(StageTransform, err)
		}
		if next != nil {
			current = next
		}
	}

	decode := d.decode
	if decode == nil {
		decode = d.decodeJSON
	}
	value, err := decode(target, current)
	if err != nil {
		return fail(StageDecode, err)
	}

	for _, fn := range d.checks {
		if err := fn(target, &value); err != nil {
			return fail(StageCheck, err)
		}
	}
	return value, nil
}

func (d *Decoder[T]) decodeJSON(_ Target, payload map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	for _, fn := range d.jsonOpts {
		fn(dec)
	}
	err = dec.Decode(&out)
	return out, err
}
