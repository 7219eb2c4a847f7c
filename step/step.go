package step

import "context"

// Step is a named operation in a pipeline.
// ctx carries cancellation and tracing; run is the pipeline state so far and
// must be treated as read-only. The returned Context is merged into the run
// state; a nil result contributes nothing.
type Step interface {
	Name() string
	Execute(ctx context.Context, params Params, run Context) (Context, error)
}

// Func is the signature of a step body.
type Func func(ctx context.Context, params Params, run Context) (Context, error)

// New wraps fn as a Step called name.
func New(name string, fn Func) Step {
	return &funcStep{name: name, fn: fn}
}

type funcStep struct {
	name string
	fn   Func
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Execute(ctx context.Context, params Params, run Context) (Context, error) {
	return s.fn(ctx, params, run)
}
