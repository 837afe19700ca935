package settings

import (
	"errors"
	"time"
)

// Evaluate runs expr against the snapshot values with the configured
// evaluator, expr-lang by default.
func (s *Snapshot) Evaluate(expr string) (Response[any], error) {
	return s.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith runs expr with ctx. A nil ctx.Snapshot is replaced by the
// snapshot values and state; empty category and project fall back to the
// snapshot's.
func (s *Snapshot) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, errors.New("settings: expression must not be empty")
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = s.Value
		ctx.State = s.State
		if ctx.Category == "" {
			ctx.Category = s.Category
		}
		if ctx.Project == "" {
			ctx.Project = s.Project
		}
	}
	ctx = ctx.withDefaults()

	evaluator := s.evaluator()
	engine := engineName(evaluator)
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expr)
	err = annotateEvaluation(err, engine, expr, ctx.stateLabel())
	s.logEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		State:    ctx.stateLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return Response[any]{}, err
	}
	return Response[any]{Value: value}, nil
}

func (s *Snapshot) evaluator() Evaluator {
	if s.cfg.evaluator == nil {
		s.cfg.evaluator = NewExprEvaluator(
			WithEvaluatorCache(s.cfg.programCache),
			WithEvaluatorFunctions(s.cfg.functions),
		)
	}
	return s.cfg.evaluator
}

func engineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}

// ProgramCache stores compiled programs. Implementations must be safe for
// concurrent use when shared between snapshots.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache sets the program cache of the default evaluator.
func WithProgramCache(cache ProgramCache) SnapshotOption {
	return func(cfg *snapshotConfig) {
		cfg.programCache = cache
	}
}

// EvaluatorLogEvent describes one evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	State    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger receives an event per Evaluate call.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) { f(event) }

// WithEvaluatorLogger attaches logger to the snapshot. nil disables logging.
func WithEvaluatorLogger(logger EvaluatorLogger) SnapshotOption {
	return func(cfg *snapshotConfig) {
		cfg.logger = logger
	}
}

func (s *Snapshot) logEvaluation(event EvaluatorLogEvent) {
	if s.cfg.logger != nil {
		s.cfg.logger.LogEvaluation(event)
	}
}
