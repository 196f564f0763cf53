package planner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// RunState is the lifecycle state of one execution.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateStopped   RunState = "stopped"
	RunStateError     RunState = "error"
)

func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateStopped, RunStateError:
		return true
	default:
		return false
	}
}

// Run tracks one execution: per-node results, the elapsed clock and the
// state machine idle → running → terminal → idle. The execution driver is
// external; Run only records and exposes what happened.
type Run struct {
	mu        sync.Mutex
	publisher eventbus.EventPublisher
	flowchart string

	id        string
	state     RunState
	startedAt time.Time
	elapsed   time.Duration
	results   map[string]models.NodeResult

	// restored holds a variable-state snapshot loaded from execution
	// history, used as the resume fallback when no live results exist.
	restored map[string]any
}

func NewRun(publisher eventbus.EventPublisher, flowchart string) *Run {
	return &Run{
		publisher: publisher,
		flowchart: flowchart,
		state:     RunStateIdle,
		results:   make(map[string]models.NodeResult),
	}
}

func (r *Run) publish(ctx context.Context, event eventbus.Event) {
	if r.publisher != nil {
		_ = r.publisher.Publish(ctx, r.flowchart, event)
	}
}

func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.id
}

func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Elapsed returns the running clock while the run is live and the frozen
// value after a terminal transition.
func (r *Run) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RunStateRunning {
		return time.Since(r.startedAt)
	}

	return r.elapsed
}

// Start moves idle → running, clearing the previous run's results and
// starting the clock. Returns false if a run is already live.
func (r *Run) Start(ctx context.Context) bool {
	r.mu.Lock()

	if r.state == RunStateRunning {
		r.mu.Unlock()

		return false
	}

	r.id = uuid.New().String()
	r.state = RunStateRunning
	r.startedAt = time.Now()
	r.elapsed = 0
	r.results = make(map[string]models.NodeResult)

	id := r.id
	r.mu.Unlock()

	r.publish(ctx, events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, r.flowchart),
		RunID:     id,
	})

	return true
}

// RecordResult stores a node's execution outcome.
func (r *Run) RecordResult(ctx context.Context, result models.NodeResult) {
	r.mu.Lock()

	if r.state != RunStateRunning {
		r.mu.Unlock()

		return
	}

	r.results[result.NodeID] = result
	id := r.id
	r.mu.Unlock()

	r.publish(ctx, events.NodeExecuted{
		BaseEvent: events.NewBaseEvent(events.NodeExecutedEvent, r.flowchart),
		RunID:     id,
		Result:    &result,
	})
}

// Finish moves running → the given terminal state, freezing the clock.
func (r *Run) Finish(ctx context.Context, state RunState) bool {
	if !state.Terminal() {
		return false
	}

	r.mu.Lock()

	if r.state != RunStateRunning {
		r.mu.Unlock()

		return false
	}

	r.state = state
	r.elapsed = time.Since(r.startedAt)

	id := r.id
	elapsed := r.elapsed
	r.mu.Unlock()

	r.publish(ctx, events.RunFinished{
		BaseEvent:  events.NewBaseEvent(events.RunFinishedEvent, r.flowchart),
		RunID:      id,
		Status:     string(state),
		DurationMs: elapsed.Milliseconds(),
	})

	return true
}

// Acknowledge moves a terminal state back to idle. Results stay readable
// until the next Start.
func (r *Run) Acknowledge() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.Terminal() {
		return false
	}

	r.state = RunStateIdle

	return true
}

// Result returns the recorded outcome for a node.
func (r *Run) Result(nodeID string) (models.NodeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, ok := r.results[nodeID]

	return result, ok
}

// Results returns a copy of every recorded result keyed by node id.
func (r *Run) Results() map[string]models.NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]models.NodeResult, len(r.results))
	for id, result := range r.results {
		out[id] = result
	}

	return out
}

// SetRestoredVariables seeds the resume fallback from a history snapshot.
func (r *Run) SetRestoredVariables(variables map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.restored = variables
}

func (r *Run) restoredVariables() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.restored
}

// VariableSnapshot is the union of every executed node's return values: the
// full variable state a resume run needs to reconstruct scope.
func (r *Run) VariableSnapshot(doc *models.Document) map[string]any {
	snapshot := make(map[string]any)

	for nodeID, result := range r.Results() {
		if !result.Success || result.ReturnValue == nil {
			continue
		}

		switch value := result.ReturnValue.(type) {
		case map[string]any:
			for k, v := range value {
				snapshot[k] = v
			}
		default:
			source := doc.Node(nodeID)
			if source == nil {
				continue
			}

			snapshot[sourceVariableName(source, result)] = value
		}
	}

	return snapshot
}

// VariablesForResume reconstructs the variables in scope just before the
// resume node: live results from the current run first, then the restored
// history snapshot, then whatever partial live results exist.
func (r *Run) VariablesForResume(doc *models.Document, nodeID string) map[string]any {
	variables := make(map[string]any)
	results := r.Results()

	for _, depID := range Dependencies(doc, nodeID) {
		result, ran := results[depID]
		if !ran || !result.Success || result.ReturnValue == nil {
			continue
		}

		switch value := result.ReturnValue.(type) {
		case map[string]any:
			for k, v := range value {
				variables[k] = v
			}
		default:
			source := doc.Node(depID)
			if source == nil {
				continue
			}

			variables[sourceVariableName(source, result)] = value
		}
	}

	if len(variables) > 0 {
		return variables
	}

	if restored := r.restoredVariables(); len(restored) > 0 {
		out := make(map[string]any, len(restored))
		for k, v := range restored {
			out[k] = v
		}

		return out
	}

	return variables
}
