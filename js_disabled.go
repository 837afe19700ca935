//go:build !js_eval

package settings

import "errors"

const jsEnabled = false

// ErrJSDisabled is returned by the JS evaluator in builds without the
// js_eval tag.
var ErrJSDisabled = errors.New("settings: js evaluator requires the js_eval build tag")

type jsDisabled struct{}

// NewJSEvaluator returns an evaluator that fails with ErrJSDisabled.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return jsDisabled{}
}

func (jsDisabled) Engine() string { return "js" }

func (jsDisabled) Evaluate(RuleContext, string) (any, error) { return nil, ErrJSDisabled }

func (jsDisabled) Compile(string, ...CompileOption) (CompiledRule, error) {
	return nil, ErrJSDisabled
}
