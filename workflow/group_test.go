package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exposureInner(t *testing.T) *Workflow {
	t.Helper()
	inner := New("inner")
	require.NoError(t, inner.AddVertex(NewFunction("A",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"w": inputs["seed"]}, nil
		},
	)))
	require.NoError(t, inner.AddVertex(NewFunction("B",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"z": inputs["w"].(int) * 10}, nil
		},
	)))
	inner.AddEdge("A", "B")
	return inner
}

func TestGroupExposure(t *testing.T) {
	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", exposureInner(t), GroupConfig{
		Exposures: []Exposure{{Vertex: "B", Var: "z", As: "final"}},
	})))
	require.NoError(t, w.AddVertex(NewFunction("C",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"got": inputs["v"]}, nil
		},
		Binding{Scope: "grp", Var: "final", As: "v"},
	)))
	w.AddEdge("grp", "C")

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"seed": 4})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	// C reads B's inner output through the exposed name.
	assert.Equal(t, 40, result.Outputs["C"]["got"])

	// Default exposure keeps the full inner map alongside the exposed name.
	group := result.Outputs["grp"]
	assert.Equal(t, 40, group["final"])
	assert.Equal(t, map[string]any{"z": 40}, group["B"])
	assert.Equal(t, map[string]any{"w": 4}, group["A"])
}

func TestGroupStrictExposure(t *testing.T) {
	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", exposureInner(t), GroupConfig{
		Exposures:      []Exposure{{Vertex: "B", Var: "z", As: "final"}},
		StrictExposure: true,
	})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"seed": 4})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"final": 40}, result.Outputs["grp"])
}

func TestGroupStandaloneMatchesNested(t *testing.T) {
	// The same subgraph run directly or inside a group exposes the same
	// values for identical inputs.
	inputs := map[string]any{"seed": 6}

	direct, err := NewRunner(exposureInner(t))
	require.NoError(t, err)
	directResult, err := direct.Run(context.Background(), inputs)
	require.NoError(t, err)

	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", exposureInner(t), GroupConfig{
		Exposures: []Exposure{{Vertex: "B", Var: "z", As: "final"}},
	})))
	nested, err := NewRunner(w)
	require.NoError(t, err)
	nestedResult, err := nested.Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, directResult.Outputs["B"]["z"], nestedResult.Outputs["grp"]["final"])
}

func TestGroupInnerFailureAnnotated(t *testing.T) {
	inner := New("inner")
	require.NoError(t, inner.AddVertex(NewFunction("broken",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			return nil, errors.New("inner boom")
		},
	)))

	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", inner, GroupConfig{})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "grp", result.Errors[0].Vertex)

	// The group failure names the inner vertex.
	var innerFailure VertexFailure
	require.True(t, errors.As(result.Errors[0].Err, &innerFailure))
	assert.Equal(t, "broken", innerFailure.Vertex)
}

func TestGroupSubgraphSourceBinding(t *testing.T) {
	inner := New("inner")
	require.NoError(t, inner.AddVertex(NewFunction("reader",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"echoed": inputs["from_outer"]}, nil
		},
		Binding{Scope: ScopeSource, Var: "topic", As: "from_outer"},
	)))

	w := New("outer")
	require.NoError(t, w.AddVertex(NewGroup("grp", inner, GroupConfig{
		Exposures:      []Exposure{{Vertex: "reader", Var: "echoed", As: "echoed"}},
		StrictExposure: true,
	})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"topic": "graphs"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"echoed": "graphs"}, result.Outputs["grp"])
}
