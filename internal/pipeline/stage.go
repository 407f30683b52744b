package pipeline

import "context"

// Stage is one step of an orchestration run. Stages execute in dependency
// order and share the run's state.
type Stage interface {
	// Name is the state the run is in while this stage executes.
	Name() State
	// Dependencies are the stages that must complete first.
	Dependencies() []State
	// Execute runs the stage. Returned errors fail the whole run.
	Execute(ctx context.Context, rs *runState) error
}

// stageFunc adapts a function to the Stage interface.
type stageFunc struct {
	name State
	deps []State
	fn   func(ctx context.Context, rs *runState) error
}

func (s stageFunc) Name() State           { return s.name }
func (s stageFunc) Dependencies() []State { return s.deps }

func (s stageFunc) Execute(ctx context.Context, rs *runState) error {
	return s.fn(ctx, rs)
}
