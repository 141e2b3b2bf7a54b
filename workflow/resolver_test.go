package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *RunContext {
	return &RunContext{
		runID:   "test-run",
		bus:     NewEventBus("test-run", 16),
		env:     map[string]any{"region": "eu-west"},
		source:  map[string]any{"seed": 7},
		outputs: make(map[string]map[string]any),
	}
}

func TestResolveBindingsScopes(t *testing.T) {
	rc := newTestContext()
	require.NoError(t, rc.setOutput("producer", map[string]any{"value": 42, "label": "x"}))

	bindings := []Binding{
		{Scope: "producer", Var: "value", As: "v"},
		{Scope: ScopeEnv, Var: "region", As: "region"},
		{Scope: ScopeSource, Var: "seed", As: "seed"},
		{Scope: ScopeInput, Var: "q", As: "question"},
	}

	resolved, err := resolveBindings(rc, "consumer", bindings,
		map[string]any{"extra": true},
		map[string]any{"q": "hello"},
	)
	require.NoError(t, err)

	assert.Equal(t, 42, resolved["v"])
	assert.Equal(t, "eu-west", resolved["region"])
	assert.Equal(t, 7, resolved["seed"])
	assert.Equal(t, "hello", resolved["question"])
	// Aux entries not shadowed by a binding pass through.
	assert.Equal(t, true, resolved["extra"])
}

func TestResolveBindingsWholeOutput(t *testing.T) {
	rc := newTestContext()
	require.NoError(t, rc.setOutput("producer", map[string]any{"a": 1}))

	resolved, err := resolveBindings(rc, "consumer",
		[]Binding{{Scope: "producer", As: "all"}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"a": 1}, resolved["all"])
}

func TestResolveBindingsDefaultsLocalName(t *testing.T) {
	rc := newTestContext()
	require.NoError(t, rc.setOutput("producer", map[string]any{"score": 0.9}))

	resolved, err := resolveBindings(rc, "consumer",
		[]Binding{{Scope: "producer", Var: "score"}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.9, resolved["score"])
}

func TestResolveBindingsMissingProducer(t *testing.T) {
	rc := newTestContext()

	_, err := resolveBindings(rc, "consumer",
		[]Binding{{Scope: "absent", Var: "v", As: "v"}}, nil, nil)
	require.Error(t, err)

	var missing *MissingDependencyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "absent", missing.Scope)
}

func TestResolveBindingsMissingField(t *testing.T) {
	rc := newTestContext()
	require.NoError(t, rc.setOutput("producer", map[string]any{"a": 1}))

	_, err := resolveBindings(rc, "consumer",
		[]Binding{{Scope: "producer", Var: "b", As: "b"}}, nil, nil)

	var missing *MissingDependencyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "b", missing.Field)
}

func TestBindingShadowsAux(t *testing.T) {
	rc := newTestContext()
	require.NoError(t, rc.setOutput("producer", map[string]any{"v": "bound"}))

	resolved, err := resolveBindings(rc, "consumer",
		[]Binding{{Scope: "producer", Var: "v", As: "v"}},
		map[string]any{"v": "aux"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "bound", resolved["v"])
}

func TestRender(t *testing.T) {
	out, err := Render("v", "hello {{name}}, you are {{age}}", map[string]any{
		"name": "ada",
		"age":  36,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello ada, you are 36", out)
}

func TestRenderDottedPath(t *testing.T) {
	out, err := Render("v", "city: {{user.address.city}}", map[string]any{
		"user": map[string]any{
			"address": map[string]any{"city": "Lisbon"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "city: Lisbon", out)
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render("v", "hello {{name}}", map[string]any{})
	require.Error(t, err)

	var missing *MissingTemplateVariableError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "name", missing.Name)
}

func TestRenderNoMarkersIdempotent(t *testing.T) {
	input := "plain text with } and { braces"
	out, err := Render("v", input, nil)
	require.NoError(t, err)
	assert.Equal(t, input, out)

	again, err := Render("v", out, nil)
	require.NoError(t, err)
	assert.Equal(t, input, again)
}

func TestRenderSinglePass(t *testing.T) {
	// Substituted values are not re-expanded.
	out, err := Render("v", "{{a}}", map[string]any{"a": "{{b}}", "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, "{{b}}", out)
}
