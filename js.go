//go:build js_eval

package settings

import (
	"github.com/dop251/goja"
)

const jsEnabled = true

type jsEvaluator struct {
	cfg evaluatorConfig
}

// NewJSEvaluator returns an Evaluator backed by goja. Every evaluation runs in
// a fresh runtime.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *jsEvaluator) Engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, annotateEvaluation(errEmptyExpression, e.Engine(), "", "")
	}
	program, err := compiled(e.cfg.cache, "js:"+expression, func() (*goja.Program, error) {
		return goja.Compile("", "(function(){ return ("+expression+"); })()", false)
	})
	if err != nil {
		return nil, annotateEvaluation(err, e.Engine(), expression, "")
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		vm := goja.New()
		if err := e.bind(vm, ctx); err != nil {
			return nil, err
		}
		out, err := vm.RunProgram(program)
		if err != nil {
			return nil, annotateEvaluation(err, e.Engine(), expression, ctx.stateLabel())
		}
		return out.Export(), nil
	}), nil
}

func (e *jsEvaluator) bind(vm *goja.Runtime, ctx RuleContext) error {
	for name, value := range bindings(ctx) {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	if e.cfg.functions == nil {
		return nil
	}
	if err := vm.Set("call", e.cfg.functions.Call); err != nil {
		return err
	}
	for _, name := range e.cfg.functions.Names() {
		if err := vm.Set(name, e.cfg.functions.bind(name)); err != nil {
			return err
		}
	}
	return nil
}
