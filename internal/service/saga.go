package service

import (
	"context"
)

// sagaStep pairs a forward action with the action that undoes it.
// A nil compensate means the step leaves nothing behind to undo.
type sagaStep struct {
	name       string
	forward    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// compensationResult records how one undo action went.
type compensationResult struct {
	step string
	err  error
}

// sagaFailure describes a run that stopped at failedStep.
type sagaFailure struct {
	failedStep    string
	err           error
	compensations []compensationResult
}

func (f *sagaFailure) Error() string { return f.failedStep + ": " + f.err.Error() }

func (f *sagaFailure) Unwrap() error { return f.err }

// undone lists the steps whose compensation succeeded, most recent first.
func (f *sagaFailure) undone() []string {
	var names []string
	for _, c := range f.compensations {
		if c.err == nil {
			names = append(names, c.step)
		}
	}
	return names
}

// runSaga executes steps in order. When one fails, the compensations of the steps that
// already completed run in reverse order, each one attempted even if an earlier undo failed.
// Compensations run on a context detached from the caller's cancellation.
func runSaga(ctx context.Context, steps []sagaStep) *sagaFailure {
	completed := make([]sagaStep, 0, len(steps))
	for _, step := range steps {
		if err := step.forward(ctx); err != nil {
			failure := &sagaFailure{failedStep: step.name, err: err}
			undoCtx := context.WithoutCancel(ctx)
			for i := len(completed) - 1; i >= 0; i-- {
				done := completed[i]
				if done.compensate == nil {
					continue
				}
				failure.compensations = append(failure.compensations, compensationResult{
					step: done.name,
					err:  done.compensate(undoCtx),
				})
			}
			return failure
		}
		completed = append(completed, step)
	}
	return nil
}
