package settings

import (
	"reflect"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

type celEvaluator struct {
	cfg evaluatorConfig
}

// NewCELEvaluator returns an Evaluator backed by cel-go. Snapshot keys are
// declared as dynamic variables; registered functions are reachable through
// call(name) and call(name, [args]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile defers type checking to the first evaluation because the declared
// variables depend on the snapshot keys.
func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, annotateEvaluation(errEmptyExpression, e.Engine(), "", "")
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		out, err := e.run(ctx, expression)
		if err != nil {
			return nil, annotateEvaluation(err, e.Engine(), expression, ctx.stateLabel())
		}
		return out, nil
	}), nil
}

func (e *celEvaluator) run(ctx RuleContext, expression string) (any, error) {
	vars := bindings(ctx)
	keys := make([]string, 0, len(vars))
	for key := range vars {
		if !slices.Contains(reservedNames, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	cacheKey := "cel:" + strings.Join(keys, ",") + ":" + expression
	program, err := compiled(e.cfg.cache, cacheKey, func() (cel.Program, error) {
		return e.program(expression, keys)
	})
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(vars)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func (e *celEvaluator) program(expression string, keys []string) (cel.Program, error) {
	opts := []cel.EnvOption{
		cel.Variable("now", cel.TimestampType),
		cel.Variable("args", cel.DynType),
		cel.Variable("metadata", cel.DynType),
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
	}
	for _, key := range keys {
		opts = append(opts, cel.Variable(key, cel.DynType))
	}
	if e.cfg.functions != nil {
		call := cel.FunctionBinding(e.call)
		opts = append(opts, cel.Function("call",
			cel.Overload("call_string", []*cel.Type{cel.StringType}, cel.DynType, call),
			cel.Overload("call_string_list", []*cel.Type{cel.StringType, cel.ListType(cel.DynType)}, cel.DynType, call),
		))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

func (e *celEvaluator) call(values ...ref.Val) ref.Val {
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("call: function name must be a string")
	}
	var args []any
	if len(values) > 1 {
		list, ok := values[1].(traits.Lister)
		if !ok {
			return types.NewErr("call: arguments must be a list")
		}
		native, err := list.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return types.NewErr("call: %v", err)
		}
		args = native.([]any)
	}
	out, err := e.cfg.functions.Call(name, args...)
	if err != nil {
		return types.NewErr("%v", err)
	}
	if out == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(out)
}
