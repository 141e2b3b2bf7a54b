package workflow

import (
	"fmt"
	"sync"
)

// RunContext is the per-run state shared by a workflow's vertices: vertex
// outputs, env and user maps, and the event bus. Nested subgraphs get a
// child context with isolated outputs; env, user vars, and the bus are
// shared with the parent.
type RunContext struct {
	runID  string
	bus    *EventBus
	env    map[string]any
	user   map[string]any
	source map[string]any
	parent *RunContext
	runner *Runner

	mu      sync.RWMutex
	outputs map[string]map[string]any
}

// RunID returns the run's unique identifier.
func (rc *RunContext) RunID() string { return rc.runID }

// Bus returns the run's event bus.
func (rc *RunContext) Bus() *EventBus { return rc.bus }

// Env returns the value of an env var.
func (rc *RunContext) Env(name string) (any, bool) {
	v, ok := rc.env[name]
	return v, ok
}

// UserVar returns the value of a caller-supplied user var.
func (rc *RunContext) UserVar(name string) (any, bool) {
	v, ok := rc.user[name]
	return v, ok
}

// Output returns a completed vertex's output.
func (rc *RunContext) Output(vertexID string) (map[string]any, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out, ok := rc.outputs[vertexID]
	return out, ok
}

// Progress publishes a progress event for a long-running vertex. Tasks call
// it directly; percent is 0..100 and stage is free-form.
func (rc *RunContext) Progress(vertexID string, percent float64, stage string) {
	rc.bus.Publish(Event{
		Kind:     EventProgress,
		VertexID: vertexID,
		Data:     map[string]any{"percent": percent, "stage": stage},
	})
}

// setOutput records a vertex output exactly once.
func (rc *RunContext) setOutput(vertexID string, output map[string]any) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, exists := rc.outputs[vertexID]; exists {
		return fmt.Errorf("output for vertex %q already recorded", vertexID)
	}
	rc.outputs[vertexID] = output
	return nil
}

// snapshotOutputs copies the recorded outputs for the run result.
func (rc *RunContext) snapshotOutputs() map[string]map[string]any {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	out := make(map[string]map[string]any, len(rc.outputs))
	for id, value := range rc.outputs {
		out[id] = value
	}
	return out
}

// child creates an isolated context for a nested subgraph. The source map
// backs ScopeSource bindings inside the subgraph.
func (rc *RunContext) child(source map[string]any) *RunContext {
	return &RunContext{
		runID:   rc.runID,
		bus:     rc.bus,
		env:     rc.env,
		user:    rc.user,
		source:  source,
		parent:  rc,
		runner:  rc.runner,
		outputs: make(map[string]map[string]any),
	}
}
