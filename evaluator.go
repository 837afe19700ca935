package settings

import (
	"errors"
	"slices"
)

var errEmptyExpression = errors.New("expression must not be empty")

// reservedNames are bound by every evaluator. Snapshot keys with these names
// are hidden.
var reservedNames = []string{"now", "args", "metadata", "state"}

// EvaluatorOption configures the built-in evaluators.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

func newEvaluatorConfig(opts []EvaluatorOption) evaluatorConfig {
	var cfg evaluatorConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvaluatorCache stores compiled programs in cache. Keys are prefixed
// with the engine name so one cache can serve several evaluators.
func WithEvaluatorCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithEvaluatorFunctions exposes a copy of registry to expressions.
func WithEvaluatorFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.functions = registry.Clone()
	}
}

// compiled returns the program cached under key or compiles and stores a new
// one.
func compiled[P any](cache ProgramCache, key string, compile func() (P, error)) (P, error) {
	if cache != nil {
		if hit, ok := cache.Get(key); ok {
			if program, ok := hit.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}

// ruleFunc adapts a closure to CompiledRule.
type ruleFunc func(RuleContext) (any, error)

func (f ruleFunc) Evaluate(ctx RuleContext) (any, error) {
	return f(ctx.withDefaults())
}

// bindings returns the variables an expression sees: the snapshot keys plus
// now, args, metadata and state.
func bindings(ctx RuleContext) map[string]any {
	snapshot := snapshotMap(ctx.Snapshot)
	vars := make(map[string]any, len(snapshot)+len(reservedNames))
	for key, value := range snapshot {
		if !slices.Contains(reservedNames, key) {
			vars[key] = value
		}
	}
	vars["now"] = ctx.timestamp()
	vars["args"] = ctx.Args
	vars["metadata"] = ctx.Metadata
	vars["state"] = ctx.stateBinding()
	return vars
}

func snapshotMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
