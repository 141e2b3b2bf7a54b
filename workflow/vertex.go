package workflow

import (
	"context"
	"time"
)

// Kind identifies a vertex's behavior.
type Kind string

const (
	KindSource       Kind = "source"
	KindSink         Kind = "sink"
	KindFunction     Kind = "function"
	KindIf           Kind = "if"
	KindLLM          Kind = "llm"
	KindEmbedding    Kind = "embedding"
	KindVectorStore  Kind = "vector_store"
	KindVectorQuery  Kind = "vector_query"
	KindGroup        Kind = "group"
	KindWhileGroup   Kind = "while_group"
	KindMemoryReader Kind = "memory_reader"
	KindMemoryWriter Kind = "memory_writer"
)

// State is a vertex's lifecycle position within a single run.
type State int

const (
	StatePending State = iota
	StateReady
	StateRunning
	StateCompleted
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Reserved binding scopes. Any other non-empty scope names a producer
// vertex id.
const (
	// ScopeInput reads from the caller-supplied input map.
	ScopeInput = ""

	// ScopeSource reads from the subgraph's input map when running inside a
	// group, or the run inputs at the top level.
	ScopeSource = "@source"

	// ScopeEnv reads from the run's env map.
	ScopeEnv = "@env"
)

// Binding maps one value from a producer scope into a vertex's input map.
type Binding struct {
	// Scope is a producer vertex id, ScopeSource, ScopeEnv, or ScopeInput.
	Scope string

	// Var selects a field from the producer's output map. Empty takes the
	// whole value.
	Var string

	// As is the name the value is bound under. Empty defaults to Var.
	As string
}

// Task is the executable body of a vertex. It receives resolved inputs and
// returns the vertex's output map.
type Task func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error)

// BackoffStrategy defines different backoff strategies
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
	LinearBackoff
)

// RetryPolicy controls automatic retry of a failing vertex task.
type RetryPolicy struct {
	MaxRetries      int
	BackoffStrategy BackoffStrategy
	BaseDelay       time.Duration // Default 500ms
	RetryableErrors []string      // Substring match; empty retries everything
}

func (p *RetryPolicy) delay(attempt int) time.Duration {
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	switch p.BackoffStrategy {
	case ExponentialBackoff:
		return baseDelay * time.Duration(1<<attempt)
	case LinearBackoff:
		return baseDelay * time.Duration(attempt+1)
	default:
		return baseDelay
	}
}

// Vertex is a node in a workflow: an id, a kind, declared input bindings,
// and a task. Configuration is immutable after graph build.
type Vertex struct {
	ID       string
	Kind     Kind
	Bindings []Binding
	Retry    *RetryPolicy

	task Task

	// set for group and while-group kinds
	inner     *Workflow
	exposures []Exposure
}

// WithRetry attaches a retry policy and returns the vertex for chaining.
func (v *Vertex) WithRetry(policy RetryPolicy) *Vertex {
	v.Retry = &policy
	return v
}

// NewSource creates a source vertex. It forwards the listed keys from the
// run inputs; with no keys it forwards the whole input map.
func NewSource(id string, keys ...string) *Vertex {
	return &Vertex{
		ID:   id,
		Kind: KindSource,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			if len(keys) == 0 {
				return inputs, nil
			}
			out := make(map[string]any, len(keys))
			for _, key := range keys {
				if value, ok := inputs[key]; ok {
					out[key] = value
				}
			}
			return out, nil
		},
	}
}

// NewSink creates a sink vertex. Its output is its resolved input map, so a
// sink without bindings surfaces whatever its producers delivered.
func NewSink(id string, bindings ...Binding) *Vertex {
	return &Vertex{
		ID:       id,
		Kind:     KindSink,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			return inputs, nil
		},
	}
}

// NewFunction creates a vertex running an arbitrary task.
func NewFunction(id string, task Task, bindings ...Binding) *Vertex {
	return &Vertex{
		ID:       id,
		Kind:     KindFunction,
		Bindings: bindings,
		task:     task,
	}
}

// NewIf creates a branching vertex. The condition's result is published
// under "branch" in the vertex output, where edge guards can test it.
func NewIf(id string, cond func(ctx context.Context, inputs map[string]any) (any, error), bindings ...Binding) *Vertex {
	return &Vertex{
		ID:       id,
		Kind:     KindIf,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			branch, err := cond(ctx, inputs)
			if err != nil {
				return nil, err
			}
			return map[string]any{"branch": branch}, nil
		},
	}
}
