package settings

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownFunction is returned when an expression calls a function that was
// never registered.
var ErrUnknownFunction = errors.New("settings: unknown function")

// Function is a helper callable from expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds expression helpers. Names are case-insensitive and
// stored lower-cased.
type FunctionRegistry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{fns: map[string]Function{}}
}

// Register adds fn under name. Registering a name twice is an error.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return errors.New("settings: function name is empty")
	}
	if fn == nil {
		return fmt.Errorf("settings: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.fns[key]; taken {
		return fmt.Errorf("settings: function %q registered twice", name)
	}
	if r.fns == nil {
		r.fns = map[string]Function{}
	}
	r.fns[key] = fn
	return nil
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.fns[strings.ToLower(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownFunction, name)
	}
	return fn(args...)
}

// Names lists the registered names in order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.fns))
}

// Clone copies the registry. Later registrations on either side are not
// shared.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fns := maps.Clone(r.fns)
	if fns == nil {
		fns = map[string]Function{}
	}
	return &FunctionRegistry{fns: fns}
}

// bind returns a Function that resolves name on every call.
func (r *FunctionRegistry) bind(name string) Function {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

// WithFunctionRegistry makes a copy of registry available to the default
// evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) SnapshotOption {
	return func(cfg *snapshotConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction registers one function for the default evaluator.
// Duplicate names keep the first registration.
func WithCustomFunction(name string, fn Function) SnapshotOption {
	return func(cfg *snapshotConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
