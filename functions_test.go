package settings

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func constant(value any) Function {
	return func(...any) (any, error) { return value, nil }
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Shot", constant("sh010")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("asset", constant("chair")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Register("SHOT", constant("x")); err == nil {
		t.Fatalf("names are case-insensitive, expected duplicate error")
	}
	if err := registry.Register(" ", constant("x")); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected error for nil function")
	}

	if got := registry.Names(); !reflect.DeepEqual(got, []string{"asset", "shot"}) {
		t.Fatalf("unexpected names %v", got)
	}
	if out, err := registry.Call("SHOT"); err != nil || out != "sh010" {
		t.Fatalf("unexpected call result %v, %v", out, err)
	}
	if _, err := registry.Call("missing"); !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("expected ErrUnknownFunction, got %v", err)
	}

	var empty *FunctionRegistry
	if empty.Names() != nil || empty.Clone() != nil {
		t.Fatalf("nil registry has no names and clones to nil")
	}
	if _, err := empty.Call("shot"); !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("expected ErrUnknownFunction from nil registry, got %v", err)
	}
}

func TestFunctionRegistryClone(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("shot", constant("sh010")); err != nil {
		t.Fatalf("register: %v", err)
	}
	clone := registry.Clone()
	if err := clone.Register("asset", constant("chair")); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if got := registry.Names(); !reflect.DeepEqual(got, []string{"shot"}) {
		t.Fatalf("clone registrations leaked into the source: %v", got)
	}
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *mapCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]any{}
	}
	c.entries[key] = value
}

func TestProgramCacheIsSharedAcrossEngines(t *testing.T) {
	cache := &mapCache{}
	snapshot := studioSnapshot(t, WithProgramCache(cache))
	for i := 0; i < 2; i++ {
		if res, err := snapshot.Evaluate(`general.fps > 24`); err != nil || res.Value != true {
			t.Fatalf("evaluate: %v, %#v", err, res.Value)
		}
	}

	cel := NewCELEvaluator(WithEvaluatorCache(cache))
	out, err := cel.Evaluate(RuleContext{Snapshot: snapshot.Value}, `general.fps > 24`)
	if err != nil || out != true {
		t.Fatalf("cel evaluate: %v, %#v", err, out)
	}

	if len(cache.entries) != 2 {
		t.Fatalf("expected one program per engine, got %v", cache.entries)
	}
	if _, ok := cache.entries["expr:general.fps > 24"]; !ok {
		t.Fatalf("expr program missing from cache: %v", cache.entries)
	}
}
