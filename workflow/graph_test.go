package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTask(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestAddVertexDuplicate(t *testing.T) {
	w := New("dup")
	require.NoError(t, w.AddVertex(NewSource("a")))

	err := w.AddVertex(NewFunction("a", noopTask))
	require.Error(t, err)

	var dup *DuplicateVertexError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.ID)
}

func TestValidateDanglingEdge(t *testing.T) {
	w := New("dangling")
	require.NoError(t, w.AddVertex(NewSource("a")))
	w.AddEdge("a", "ghost")

	err := w.Validate()
	var dangling *DanglingEdgeError
	require.True(t, errors.As(err, &dangling))
	assert.Equal(t, "ghost", dangling.To)
}

func TestValidateCycle(t *testing.T) {
	w := New("cycle")
	require.NoError(t, w.AddVertex(NewFunction("a", noopTask)))
	require.NoError(t, w.AddVertex(NewFunction("b", noopTask)))
	require.NoError(t, w.AddVertex(NewFunction("c", noopTask)))
	w.AddEdge("a", "b")
	w.AddEdge("b", "c")
	w.AddEdge("c", "a")

	err := w.Validate()
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycle.Vertices)
}

func TestValidateInvalidBindingScope(t *testing.T) {
	w := New("bindings")
	require.NoError(t, w.AddVertex(NewFunction("a", noopTask,
		Binding{Scope: "nowhere", Var: "v", As: "v"})))

	err := w.Validate()
	var invalid *InvalidBindingError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "a", invalid.Vertex)
}

func TestValidateEmptyBinding(t *testing.T) {
	w := New("bindings")
	require.NoError(t, w.AddVertex(NewFunction("a", noopTask, Binding{})))

	err := w.Validate()
	var invalid *InvalidBindingError
	require.True(t, errors.As(err, &invalid))
}

func TestValidateExposedOutputMissing(t *testing.T) {
	inner := New("inner")
	require.NoError(t, inner.AddVertex(NewFunction("step", noopTask)))

	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", inner, GroupConfig{
		Exposures: []Exposure{{Vertex: "ghost", Var: "z", As: "final"}},
	})))

	err := w.Validate()
	var exposed *ExposedOutputError
	require.True(t, errors.As(err, &exposed))
	assert.Equal(t, "grp", exposed.Group)
	assert.Equal(t, "ghost", exposed.Vertex)
}

func TestValidateRecursesIntoGroups(t *testing.T) {
	inner := New("inner")
	require.NoError(t, inner.AddVertex(NewFunction("a", noopTask)))
	require.NoError(t, inner.AddVertex(NewFunction("b", noopTask)))
	inner.AddEdge("a", "b")
	inner.AddEdge("b", "a")

	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", inner, GroupConfig{})))

	err := w.Validate()
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
}

func TestValidateIdempotent(t *testing.T) {
	w := New("ok")
	require.NoError(t, w.AddVertex(NewSource("src")))
	require.NoError(t, w.AddVertex(NewSink("out")))
	w.AddEdge("src", "out")

	require.NoError(t, w.Validate())
	require.NoError(t, w.Validate())
}

func TestGuardEquals(t *testing.T) {
	guard := Equals("branch", "left")
	assert.True(t, guard(map[string]any{"branch": "left"}))
	assert.False(t, guard(map[string]any{"branch": "right"}))
	assert.False(t, guard(map[string]any{}))

	// Numeric comparison crosses int and float representations.
	numeric := Equals("n", 3)
	assert.True(t, numeric(map[string]any{"n": 3.0}))
	assert.True(t, numeric(map[string]any{"n": 3}))
	assert.False(t, numeric(map[string]any{"n": 4}))
}

func TestMermaid(t *testing.T) {
	inner := New("inner")
	require.NoError(t, inner.AddVertex(NewFunction("step", noopTask)))

	w := New("viz")
	require.NoError(t, w.AddVertex(NewSource("src")))
	require.NoError(t, w.AddVertex(NewIf("choice", func(ctx context.Context, inputs map[string]any) (any, error) {
		return "left", nil
	})))
	require.NoError(t, w.AddVertex(NewGroup("grp", inner, GroupConfig{})))
	require.NoError(t, w.AddVertex(NewSink("out")))
	w.AddEdge("src", "choice")
	w.AddConditionalEdge("choice", "grp", Equals("branch", "left"))
	w.AddErrorEdge("grp", "out")

	diagram := w.Mermaid()
	assert.Contains(t, diagram, "flowchart TD")
	assert.Contains(t, diagram, `src["src (source)"]`)
	assert.Contains(t, diagram, `subgraph grp["grp (group)"]`)
	assert.Contains(t, diagram, `grp.step["step (function)"]`)
	assert.Contains(t, diagram, "choice -->|guard| grp")
	assert.Contains(t, diagram, "grp -.->|on error| out")
}
