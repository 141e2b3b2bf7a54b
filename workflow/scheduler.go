package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/floe-ai/floe/llm"
	"github.com/floe-ai/floe/log"
	"github.com/floe-ai/floe/tool"
)

// Status is the final outcome of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DefaultGraceWindow bounds how long a cancelled run waits for in-flight
// vertices to stop cooperatively.
const DefaultGraceWindow = 5 * time.Second

// Result is the outcome of a run: the outputs of every completed vertex,
// the final state of every vertex, and any failures.
type Result struct {
	RunID   string
	Outputs map[string]map[string]any
	Status  Status
	Errors  []VertexFailure
	States  map[string]State
}

// Runner executes a validated workflow. A Runner is safe for concurrent
// runs; each run gets its own RunContext and event bus.
type Runner struct {
	workflow   *Workflow
	logger     log.Logger
	workers    int64
	bufferSize int
	grace      time.Duration
	sem        *semaphore.Weighted
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the package-level logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithWorkers bounds the number of concurrently executing vertex tasks.
// The default is the number of logical CPUs.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = int64(n)
		}
	}
}

// WithEventBuffer sets the per-subscriber event buffer size.
func WithEventBuffer(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// WithGraceWindow sets how long a cancelled run waits for in-flight
// vertices before abandoning them.
func WithGraceWindow(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.grace = d
		}
	}
}

// NewRunner validates the workflow and creates a runner for it.
func NewRunner(w *Workflow, opts ...Option) (*Runner, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		workflow:   w,
		logger:     log.GetDefaultLogger(),
		workers:    int64(runtime.NumCPU()),
		bufferSize: DefaultEventBuffer,
		grace:      DefaultGraceWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sem = semaphore.NewWeighted(r.workers)
	return r, nil
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	env  map[string]any
	user map[string]any
}

// WithEnv supplies the run's env map, read by ScopeEnv bindings.
func WithEnv(env map[string]any) RunOption {
	return func(c *runConfig) { c.env = env }
}

// WithUserVars supplies caller-defined variables available through the
// RunContext.
func WithUserVars(user map[string]any) RunOption {
	return func(c *runConfig) { c.user = user }
}

// Run executes the workflow to completion. The returned Result is always
// non-nil; the error mirrors the run-level failure, so callers that only
// care about success can check it alone.
func (r *Runner) Run(ctx context.Context, inputs map[string]any, opts ...RunOption) (*Result, error) {
	rc := r.newRunContext(inputs, opts)
	defer rc.bus.Close()
	return r.finishRun(ctx, rc, inputs)
}

// Stream executes the workflow in the background and returns the event
// channel plus a single-value result channel. The event channel closes
// after Done is delivered.
func (r *Runner) Stream(ctx context.Context, inputs map[string]any, opts ...RunOption) (<-chan Event, <-chan *Result) {
	rc := r.newRunContext(inputs, opts)
	events := rc.bus.Subscribe()
	results := make(chan *Result, 1)

	go func() {
		defer close(results)
		result, _ := r.finishRun(ctx, rc, inputs)
		rc.bus.Close()
		results <- result
	}()

	return events, results
}

// RunWithCallback executes the workflow while delivering every event to cb
// from a dedicated goroutine. It returns once the run finishes and the last
// event has been handled.
func (r *Runner) RunWithCallback(ctx context.Context, inputs map[string]any, cb func(Event), opts ...RunOption) (*Result, error) {
	rc := r.newRunContext(inputs, opts)
	events := rc.bus.Subscribe()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			cb(ev)
		}
	}()

	result, err := r.finishRun(ctx, rc, inputs)
	rc.bus.Close()
	<-drained
	return result, err
}

func (r *Runner) newRunContext(inputs map[string]any, opts []RunOption) *RunContext {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := uuid.NewString()
	return &RunContext{
		runID:   runID,
		bus:     NewEventBus(runID, r.bufferSize),
		env:     cfg.env,
		user:    cfg.user,
		source:  inputs,
		runner:  r,
		outputs: make(map[string]map[string]any),
	}
}

func (r *Runner) finishRun(ctx context.Context, rc *RunContext, inputs map[string]any) (*Result, error) {
	failures, states := r.runGraph(ctx, rc, r.workflow, inputs)

	result := &Result{
		RunID:   rc.runID,
		Outputs: rc.snapshotOutputs(),
		Errors:  failures,
		States:  states,
	}

	unrec := unrecoveredFailures(r.workflow, failures)
	switch {
	case ctx.Err() != nil:
		result.Status = StatusCancelled
		return result, ErrCancelled
	case len(unrec) > 0:
		result.Status = StatusFailed
		return result, unrec[0]
	default:
		result.Status = StatusCompleted
		return result, nil
	}
}

// runGraph executes one graph level to termination. Groups call it again
// on their inner workflow with a child context.
func (r *Runner) runGraph(ctx context.Context, rc *RunContext, wf *Workflow, inputs map[string]any) ([]VertexFailure, map[string]State) {
	e := &execution{
		runner:    r,
		rc:        rc,
		wf:        wf,
		inputs:    inputs,
		ctx:       ctx,
		states:    make(map[string]State, len(wf.vertices)),
		pending:   make(map[string]int, len(wf.vertices)),
		satisfied: make(map[string]int, len(wf.vertices)),
		contribs:  make(map[string][]map[string]any, len(wf.vertices)),
	}

	for _, id := range wf.order {
		e.states[id] = StatePending
	}
	for _, edge := range wf.edges {
		e.pending[edge.To]++
	}

	e.mu.Lock()
	for _, id := range wf.order {
		if e.pending[id] == 0 {
			e.dispatch(wf.vertices[id])
		}
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(r.grace):
			r.logger.Warn("run %s: grace window elapsed, abandoning in-flight vertices", rc.runID)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() != nil {
		for _, id := range wf.order {
			if e.states[id] == StatePending || e.states[id] == StateReady {
				e.markCancelled(wf.vertices[id])
			}
		}
	}

	states := make(map[string]State, len(e.states))
	for id, st := range e.states {
		states[id] = st
	}
	return e.failures, states
}

// execution is the mutable state of one graph level during a run. The
// mutex guards states, counters, contributions, and failure records; task
// bodies run outside it.
type execution struct {
	runner *Runner
	rc     *RunContext
	wf     *Workflow
	inputs map[string]any
	ctx    context.Context

	mu        sync.Mutex
	wg        sync.WaitGroup
	states    map[string]State
	pending   map[string]int
	satisfied map[string]int
	contribs  map[string][]map[string]any
	failures  []VertexFailure
}

// dispatch marks a vertex ready and spawns its worker. Caller holds the
// mutex.
func (e *execution) dispatch(v *Vertex) {
	e.states[v.ID] = StateReady
	e.wg.Add(1)
	go e.worker(v)
}

func (e *execution) worker(v *Vertex) {
	defer e.wg.Done()

	if e.ctx.Err() != nil {
		e.mu.Lock()
		e.markCancelled(v)
		e.resolveOutbound(v, StateSkipped, nil, nil)
		e.mu.Unlock()
		return
	}

	// Composite vertices drive nested graphs whose own vertices need
	// worker slots, so they run outside the pool to keep nesting from
	// deadlocking under saturation.
	if v.inner == nil {
		if err := e.runner.sem.Acquire(e.ctx, 1); err != nil {
			e.mu.Lock()
			e.markCancelled(v)
			e.resolveOutbound(v, StateSkipped, nil, nil)
			e.mu.Unlock()
			return
		}
		defer e.runner.sem.Release(1)
	}

	e.mu.Lock()
	e.states[v.ID] = StateRunning
	aux := e.auxInputs(v)
	e.mu.Unlock()

	e.rc.bus.Publish(Event{Kind: EventVertexStarted, VertexID: v.ID})
	e.runner.logger.Debug("run %s: vertex %s started", e.rc.runID, v.ID)

	output, err := e.invoke(v, aux)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.markCancelled(v)
			e.resolveOutbound(v, StateSkipped, nil, nil)
			return
		}
		e.states[v.ID] = StateFailed
		e.failures = append(e.failures, VertexFailure{Vertex: v.ID, Err: err})
		e.rc.bus.Publish(Event{
			Kind:     EventVertexFailed,
			VertexID: v.ID,
			Err:      err,
			Data:     map[string]any{"error": err.Error()},
		})
		e.runner.logger.Error("run %s: vertex %s failed: %v", e.rc.runID, v.ID, err)
		e.resolveOutbound(v, StateFailed, nil, err)
		return
	}

	if setErr := e.rc.setOutput(v.ID, output); setErr != nil {
		e.states[v.ID] = StateFailed
		e.failures = append(e.failures, VertexFailure{Vertex: v.ID, Err: setErr})
		e.resolveOutbound(v, StateFailed, nil, setErr)
		return
	}

	e.states[v.ID] = StateCompleted
	e.rc.bus.Publish(Event{Kind: EventVertexCompleted, VertexID: v.ID, Data: output})
	e.runner.logger.Debug("run %s: vertex %s completed", e.rc.runID, v.ID)
	e.resolveOutbound(v, StateCompleted, output, nil)
}

// auxInputs assembles the base input map for a vertex: the outputs its
// satisfying producers contributed, or the graph inputs for entry
// vertices. Caller holds the mutex.
func (e *execution) auxInputs(v *Vertex) map[string]any {
	contribs := e.contribs[v.ID]
	if len(contribs) == 0 {
		return e.inputs
	}

	aux := make(map[string]any)
	for _, contrib := range contribs {
		for name, value := range contrib {
			aux[name] = value
		}
	}
	return aux
}

// invoke resolves bindings and runs the task with retry and panic
// recovery. Runs without the mutex held.
func (e *execution) invoke(v *Vertex, aux map[string]any) (map[string]any, error) {
	resolved, err := resolveBindings(e.rc, v.ID, v.Bindings, aux, e.inputs)
	if err != nil {
		return nil, err
	}

	attempt := 0
	for {
		output, err := e.call(v, resolved)
		if err == nil {
			return output, nil
		}
		if !e.shouldRetry(v, attempt, err) {
			return nil, err
		}

		delay := v.Retry.delay(attempt)
		e.runner.logger.Warn("run %s: vertex %s attempt %d failed, retrying in %v: %v",
			e.rc.runID, v.ID, attempt+1, delay, err)
		select {
		case <-e.ctx.Done():
			return nil, e.ctx.Err()
		case <-time.After(delay):
		}
		attempt++
	}
}

func (e *execution) shouldRetry(v *Vertex, attempt int, err error) bool {
	if v.Retry == nil || attempt >= v.Retry.MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if len(v.Retry.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, fragment := range v.Retry.RetryableErrors {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func (e *execution) call(v *Vertex, inputs map[string]any) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = &TaskError{Vertex: v.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	output, err = v.task(e.ctx, e.rc, inputs)
	if err != nil && !isTypedError(err) {
		err = &TaskError{Vertex: v.ID, Err: err}
	}
	return output, err
}

// isTypedError reports whether err already carries taxonomy information
// and should not be re-wrapped as a plain task failure.
func isTypedError(err error) bool {
	var (
		missingDep  *MissingDependencyError
		missingTmpl *MissingTemplateVariableError
		toolLoop    *ToolLoopExhaustedError
		cond        *ConditionError
		task        *TaskError
		failure     VertexFailure
		transport   *llm.TransportError
		rateLimit   *llm.RateLimitError
		invalidReq  *llm.InvalidRequestError
		invocation  *tool.InvocationError
	)
	switch {
	case errors.As(err, &missingDep),
		errors.As(err, &missingTmpl),
		errors.As(err, &toolLoop),
		errors.As(err, &cond),
		errors.As(err, &task),
		errors.As(err, &failure),
		errors.As(err, &transport),
		errors.As(err, &rateLimit),
		errors.As(err, &invalidReq),
		errors.As(err, &invocation),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// markCancelled marks an unfinished vertex skipped and surfaces the
// cancellation on the event stream. Caller holds the mutex.
func (e *execution) markCancelled(v *Vertex) {
	if e.states[v.ID] == StateCompleted || e.states[v.ID] == StateFailed || e.states[v.ID] == StateSkipped {
		return
	}
	e.states[v.ID] = StateSkipped
	e.rc.bus.Publish(Event{
		Kind:     EventVertexFailed,
		VertexID: v.ID,
		Err:      ErrCancelled,
		Data:     map[string]any{"error": ErrCancelled.Error()},
	})
}

// resolveOutbound settles every edge leaving a finished vertex, scheduling
// targets whose inbound edges are all settled. Caller holds the mutex.
func (e *execution) resolveOutbound(v *Vertex, terminal State, output map[string]any, vertexErr error) {
	for _, edge := range e.wf.edges {
		if edge.From != v.ID {
			continue
		}

		satisfied := false
		var contribution map[string]any

		switch terminal {
		case StateCompleted:
			if !edge.OnError && (edge.Guard == nil || edge.Guard(output)) {
				satisfied = true
				contribution = output
			}
		case StateFailed:
			if edge.OnError {
				satisfied = true
				contribution = map[string]any{
					"error":         vertexErr.Error(),
					"failed_vertex": v.ID,
				}
			}
		}

		e.pending[edge.To]--
		if satisfied {
			e.satisfied[edge.To]++
			e.contribs[edge.To] = append(e.contribs[edge.To], contribution)
		}

		if e.pending[edge.To] > 0 {
			continue
		}

		target := e.wf.vertices[edge.To]
		if e.satisfied[edge.To] > 0 {
			e.dispatch(target)
		} else if e.states[edge.To] == StatePending {
			if e.ctx.Err() != nil {
				e.markCancelled(target)
			} else {
				e.states[edge.To] = StateSkipped
			}
			e.resolveOutbound(target, StateSkipped, nil, nil)
		}
	}
}
