package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterInner(t *testing.T) *Workflow {
	t.Helper()
	inner := New("counter")
	require.NoError(t, inner.AddVertex(NewFunction("step",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			i, _ := inputs["i"].(int)
			return map[string]any{"i": i + 1}, nil
		},
	)))
	return inner
}

func TestWhileGroupCountsToThree(t *testing.T) {
	w := New("loop")
	require.NoError(t, w.AddVertex(NewWhileGroup("while", counterInner(t),
		func(inputs map[string]any) (bool, error) {
			i, _ := inputs["i"].(int)
			return i < 3, nil
		},
		WhileConfig{Exposures: []Exposure{{Vertex: "step", Var: "i", As: "i"}}},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"i": 0})
	require.NoError(t, err)

	out := result.Outputs["while"]
	assert.Equal(t, 3, out["iteration_count"])
	assert.Equal(t, []map[string]any{{"i": 1}, {"i": 2}, {"i": 3}}, out["iterations"])
	// The last iteration's values surface on the output itself.
	assert.Equal(t, 3, out["i"])
}

func TestWhileGroupFalseInitialCondition(t *testing.T) {
	w := New("loop")
	require.NoError(t, w.AddVertex(NewWhileGroup("while", counterInner(t),
		func(inputs map[string]any) (bool, error) { return false, nil },
		WhileConfig{},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"i": 0})
	require.NoError(t, err)

	out := result.Outputs["while"]
	assert.Equal(t, 0, out["iteration_count"])
	assert.Equal(t, []map[string]any{}, out["iterations"])
}

func TestWhileGroupMaxIterations(t *testing.T) {
	w := New("loop")
	require.NoError(t, w.AddVertex(NewWhileGroup("while", counterInner(t),
		func(inputs map[string]any) (bool, error) { return true, nil },
		WhileConfig{
			Exposures:     []Exposure{{Vertex: "step", Var: "i", As: "i"}},
			MaxIterations: 5,
		},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"i": 0})
	require.NoError(t, err)

	out := result.Outputs["while"]
	assert.Equal(t, 5, out["iteration_count"])
	assert.Equal(t, 5, out["i"])
}

func TestWhileGroupConditionError(t *testing.T) {
	w := New("loop")
	require.NoError(t, w.AddVertex(NewWhileGroup("while", counterInner(t),
		func(inputs map[string]any) (bool, error) {
			return false, errors.New("bad predicate")
		},
		WhileConfig{},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"i": 0})
	require.Error(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.Errors, 1)

	var condErr *ConditionError
	require.True(t, errors.As(result.Errors[0].Err, &condErr))
	assert.Equal(t, "while", condErr.Vertex)
}

func TestWhileGroupSeesIterationIndex(t *testing.T) {
	var seen []int

	w := New("loop")
	require.NoError(t, w.AddVertex(NewWhileGroup("while", counterInner(t),
		func(inputs map[string]any) (bool, error) {
			index := inputs["iteration_index"].(int)
			seen = append(seen, index)
			return index < 2, nil
		},
		WhileConfig{Exposures: []Exposure{{Vertex: "step", Var: "i", As: "i"}}},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"i": 0})
	require.NoError(t, err)

	// The condition runs once per started iteration plus the final refusal.
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 2, result.Outputs["while"]["iteration_count"])
}

func TestWhileGroupInnerFailureStopsLoop(t *testing.T) {
	inner := New("counter")
	require.NoError(t, inner.AddVertex(NewFunction("step",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			i, _ := inputs["i"].(int)
			if i >= 1 {
				return nil, errors.New("step boom")
			}
			return map[string]any{"i": i + 1}, nil
		},
	)))

	w := New("loop")
	require.NoError(t, w.AddVertex(NewWhileGroup("while", inner,
		func(inputs map[string]any) (bool, error) { return true, nil },
		WhileConfig{
			Exposures:     []Exposure{{Vertex: "step", Var: "i", As: "i"}},
			MaxIterations: 10,
		},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"i": 0})
	require.Error(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "while", result.Errors[0].Vertex)

	var innerFailure VertexFailure
	require.True(t, errors.As(result.Errors[0].Err, &innerFailure))
	assert.Equal(t, "step", innerFailure.Vertex)
}
