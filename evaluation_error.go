package settings

import (
	"errors"
	"fmt"
)

// EvaluationError reports a failed expression together with the engine and
// override state it ran under. State is "<state>" or "<state>:<project>".
type EvaluationError struct {
	Engine string
	Expr   string
	State  string
	Err    error
}

func (e *EvaluationError) Error() string {
	expr := "<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("%q", e.Expr)
	}
	return fmt.Sprintf("settings: %s evaluator expr=%s state=%s: %v", e.Engine, expr, e.State, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// annotateEvaluation wraps err in an EvaluationError. When err already
// carries one, only its empty fields are filled in.
func annotateEvaluation(err error, engine, expr, state string) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if !errors.As(err, &existing) {
		return &EvaluationError{Engine: engine, Expr: expr, State: state, Err: err}
	}
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	fill(&existing.Engine, engine)
	fill(&existing.Expr, expr)
	fill(&existing.State, state)
	return err
}
