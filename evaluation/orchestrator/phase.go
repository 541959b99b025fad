package orchestrator

import (
	"context"

	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
)

// Phase is a step of the evaluation state machine.
type Phase string

const (
	PhaseSelectDocument    Phase = "SELECT_DOCUMENT"
	PhaseResolveReferences Phase = "RESOLVE_REFERENCES"
	PhaseDispatchTasks     Phase = "DISPATCH_TASKS"
	PhaseScoreTasks        Phase = "SCORE_TASKS"
	PhaseAggregate         Phase = "AGGREGATE"
	PhaseDone              Phase = "DONE"
	PhaseFailed            Phase = "FAILED"
)

// Terminal reports whether no phase follows p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Event reports a phase transition, or the completion of one task's
// candidate exchange within DISPATCH_TASKS (Task set).
type Event struct {
	RunID    string
	Phase    Phase
	Task     benchmark.TaskID
	Document *corpus.DocumentKey
	Message  string
	Err      error
}

// Observer receives progress events. Calls may come from several goroutines
// during DISPATCH_TASKS.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

type nopObserver struct{}

func (nopObserver) OnEvent(context.Context, Event) {}
