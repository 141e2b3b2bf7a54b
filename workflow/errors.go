package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled marks vertices and runs stopped by cancellation.
var ErrCancelled = errors.New("run cancelled")

// CycleError reports a dependency cycle found during validation.
type CycleError struct {
	Vertices []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow contains a cycle involving: %s", strings.Join(e.Vertices, ", "))
}

// DanglingEdgeError reports an edge referencing a vertex that does not exist.
type DanglingEdgeError struct {
	From string
	To   string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s -> %s references a missing vertex", e.From, e.To)
}

// DuplicateVertexError reports two vertices sharing an id.
type DuplicateVertexError struct {
	ID string
}

func (e *DuplicateVertexError) Error() string {
	return fmt.Sprintf("vertex %q already exists", e.ID)
}

// InvalidBindingError reports a malformed binding declaration.
type InvalidBindingError struct {
	Vertex string
	Reason string
}

func (e *InvalidBindingError) Error() string {
	return fmt.Sprintf("vertex %q has an invalid binding: %s", e.Vertex, e.Reason)
}

// ExposedOutputError reports a group exposure referencing a vertex outside
// its subgraph.
type ExposedOutputError struct {
	Group  string
	Vertex string
}

func (e *ExposedOutputError) Error() string {
	return fmt.Sprintf("group %q exposes output of unknown inner vertex %q", e.Group, e.Vertex)
}

// MissingDependencyError reports a binding whose producer output is absent
// at resolution time.
type MissingDependencyError struct {
	Vertex string
	Scope  string
	Field  string
}

func (e *MissingDependencyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("vertex %q: missing dependency %q in scope %q", e.Vertex, e.Field, e.Scope)
	}
	return fmt.Sprintf("vertex %q: missing dependency on scope %q", e.Vertex, e.Scope)
}

// MissingTemplateVariableError reports a template referencing an unresolved
// name.
type MissingTemplateVariableError struct {
	Vertex string
	Name   string
}

func (e *MissingTemplateVariableError) Error() string {
	return fmt.Sprintf("vertex %q: template references undefined variable %q", e.Vertex, e.Name)
}

// ToolLoopExhaustedError reports an LLM vertex that kept requesting tool
// calls past its iteration bound.
type ToolLoopExhaustedError struct {
	Vertex     string
	Iterations int
}

func (e *ToolLoopExhaustedError) Error() string {
	return fmt.Sprintf("vertex %q: tool loop exhausted after %d iterations", e.Vertex, e.Iterations)
}

// ConditionError reports a loop condition that failed to evaluate.
type ConditionError struct {
	Vertex string
	Err    error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("vertex %q: condition evaluation failed: %v", e.Vertex, e.Err)
}

func (e *ConditionError) Unwrap() error { return e.Err }

// TaskError wraps a failure raised by a vertex task, including recovered
// panics.
type TaskError struct {
	Vertex string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("vertex %q: task failed: %v", e.Vertex, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// VertexFailure is one entry in a run result's error list.
type VertexFailure struct {
	Vertex string
	Err    error
}

func (f VertexFailure) Error() string {
	return fmt.Sprintf("vertex %q failed: %v", f.Vertex, f.Err)
}

func (f VertexFailure) Unwrap() error { return f.Err }
