package settings

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/pypeclub/OpenPype/layering"
	"github.com/pypeclub/OpenPype/pkg/hydrate"
	"github.com/pypeclub/OpenPype/schema"
)

// Snapshot is a detached copy of the effective values of a settings tree
// with evaluator configuration attached. Changes of the tree made after the
// snapshot was taken are not visible through it.
type Snapshot struct {
	ID       uuid.UUID
	Value    map[string]any
	State    OverrideState
	Category string
	Project  string

	cfg   snapshotConfig
	node  *schema.Node
	chain layering.Chain
}

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents OpenAPI-compatible JSON Schema documents.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
	Layers   []SchemaLayer
}

// SchemaLayer describes one override layer included in a schema document.
type SchemaLayer struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Priority int    `json:"priority"`
	Category string `json:"category,omitempty"`
	Project  string `json:"project,omitempty"`
}

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext carries inputs needed when evaluating an expression. The zero
// State is StateDefaults.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	State    OverrideState
	Category string
	Project  string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) stateLabel() string {
	if ctx.Project != "" {
		return ctx.State.String() + ":" + ctx.Project
	}
	return ctx.State.String()
}

func (ctx RuleContext) stateBinding() map[string]any {
	binding := map[string]any{
		"name":     ctx.State.String(),
		"label":    ctx.State.Label(),
		"priority": int(ctx.State),
	}
	if ctx.Category != "" {
		binding["category"] = ctx.Category
	}
	if ctx.Project != "" {
		binding["project"] = ctx.Project
	}
	return binding
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// SnapshotOption configures a Snapshot.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          EvaluatorLogger
	schemaGenerator SchemaGenerator
}

func applySnapshotOptions(opts []SnapshotOption) snapshotConfig {
	cfg := snapshotConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvaluator configures the evaluator used by Evaluate.
func WithEvaluator(e Evaluator) SnapshotOption {
	return func(cfg *snapshotConfig) {
		cfg.evaluator = e
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator(generator SchemaGenerator) SnapshotOption {
	return func(cfg *snapshotConfig) {
		cfg.schemaGenerator = generator
	}
}

// NewSnapshot wraps an already resolved settings document. The document is
// copied and metadata keys are removed.
func NewSnapshot(value map[string]any, opts ...SnapshotOption) *Snapshot {
	clean, _ := layering.StripMetadata(layering.CloneMap(value)).(map[string]any)
	if clean == nil {
		clean = map[string]any{}
	}
	return &Snapshot{
		ID:    uuid.New(),
		Value: clean,
		State: StateDefaults,
		cfg:   applySnapshotOptions(opts),
	}
}

// Snapshot copies the effective values of the tree in its current state
// together with the layer documents they were resolved from.
func (r *Root) Snapshot(opts ...SnapshotOption) (*Snapshot, error) {
	if r.state == StateNotDefined {
		return nil, ErrNotDefined
	}
	s := NewSnapshot(r.Value(), opts...)
	s.State = r.state
	s.Category = r.cfg.category
	s.Project = r.cfg.project
	s.node = r.node
	s.chain = r.layerChain()
	return s, nil
}

// layerChain returns the raw documents visible in the current state.
func (r *Root) layerChain() layering.Chain {
	layers := make([]layering.Layer, 0, 3)
	add := func(level layering.Level, value any) {
		doc, ok := value.(map[string]any)
		if !ok {
			return
		}
		layer := layering.Layer{
			Category: r.cfg.category,
			Level:    level,
			Document: layering.CloneMap(doc),
		}
		if level == layering.LevelProject {
			layer.Project = r.cfg.project
		}
		layers = append(layers, layer)
	}
	add(layering.LevelDefaults, r.top.defaultValue)
	if r.state >= StateStudio {
		add(layering.LevelStudio, r.top.studioValue)
	}
	if r.state >= StateProject {
		add(layering.LevelProject, r.top.projectValue)
	}
	return layering.NewChain(layers...)
}

// Decode hydrates the snapshot into T and runs T's Validate method when it
// has one.
func Decode[T any](s *Snapshot, opts ...hydrate.Option[T]) (T, error) {
	var zero T
	if s == nil {
		return zero, ErrNotDefined
	}
	decoder := hydrate.NewDecoder[T](opts...)
	value, err := decoder.Decode(hydrate.Target{
		Category: s.Category,
		Project:  s.Project,
		State:    s.State.String(),
	}, s.Value)
	if err != nil {
		return zero, err
	}
	if err := validateValue(value); err != nil {
		return zero, err
	}
	return value, nil
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if rv := reflect.ValueOf(&value).Elem(); rv.Kind() != reflect.Pointer {
		if v, ok := rv.Addr().Interface().(interface{ Validate() error }); ok {
			return v.Validate()
		}
	}
	return nil
}

func (s *Snapshot) schemaGenerator() SchemaGenerator {
	if s == nil || s.cfg.schemaGenerator == nil {
		return DefaultSchemaGenerator()
	}
	return s.cfg.schemaGenerator
}

// Layers returns the override layers this snapshot was resolved from,
// strongest first.
func (s *Snapshot) Layers() []SchemaLayer {
	if s == nil {
		return nil
	}
	ordered := s.chain.Ordered()
	out := make([]SchemaLayer, 0, len(ordered))
	for _, layer := range ordered {
		state := stateForLevel(layer.Level)
		out = append(out, SchemaLayer{
			Name:     state.String(),
			Label:    state.Label(),
			Priority: int(state),
			Category: layer.Category,
			Project:  layer.Project,
		})
	}
	return out
}

func stateForLevel(level layering.Level) OverrideState {
	switch level {
	case layering.LevelDefaults:
		return StateDefaults
	case layering.LevelStudio:
		return StateStudio
	case layering.LevelProject:
		return StateProject
	default:
		return StateNotDefined
	}
}
