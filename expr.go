package settings

import (
	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator returns the default evaluator, backed by expr-lang. Snapshot
// keys are top-level variables and registered functions are callable by name
// or through call(name, args...).
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *exprEvaluator) Engine() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, annotateEvaluation(errEmptyExpression, e.Engine(), "", "")
	}
	program, err := compiled(e.cfg.cache, "expr:"+expression, func() (*vm.Program, error) {
		return exprlang.Compile(expression, e.compileOptions()...)
	})
	if err != nil {
		return nil, annotateEvaluation(err, e.Engine(), expression, "")
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		out, err := exprlang.Run(program, e.env(ctx))
		if err != nil {
			return nil, annotateEvaluation(err, e.Engine(), expression, ctx.stateLabel())
		}
		return out, nil
	}), nil
}

func (e *exprEvaluator) compileOptions() []exprlang.Option {
	opts := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.DisableBuiltin("now"),
	}
	for _, name := range e.cfg.functions.Names() {
		opts = append(opts, exprlang.Function(name, e.cfg.functions.bind(name)))
	}
	return opts
}

func (e *exprEvaluator) env(ctx RuleContext) map[string]any {
	env := bindings(ctx)
	if e.cfg.functions != nil {
		env["call"] = e.cfg.functions.Call
	}
	return env
}
