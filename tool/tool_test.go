package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAddTool(t *testing.T) *Func {
	t.Helper()
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	tl, err := NewFunc("add", "adds two numbers", schema, func(ctx context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
	require.NoError(t, err)
	return tl
}

func TestFuncInvoke(t *testing.T) {
	add := newAddTool(t)

	result, err := add.Invoke(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFuncInvokeSchemaRejection(t *testing.T) {
	add := newAddTool(t)

	_, err := add.Invoke(context.Background(), map[string]any{"a": 2.0})
	require.Error(t, err)

	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, "add", invErr.Tool)
}

func TestFuncInvokeWrapsError(t *testing.T) {
	boom := errors.New("boom")
	tl, err := NewFunc("broken", "always fails", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = tl.Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestNewFuncValidation(t *testing.T) {
	_, err := NewFunc("", "no name", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	assert.Error(t, err)

	_, err = NewFunc("noop", "no fn", nil, nil)
	assert.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"query": "weather", "limit": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "weather", args["query"])
	assert.Equal(t, 3.0, args["limit"])
}

func TestParseArgumentsEmpty(t *testing.T) {
	args, err := ParseArguments("  ")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestParseArgumentsRepairsAlmostJSON(t *testing.T) {
	// Trailing comma and single quotes, typical model output glitches.
	args, err := ParseArguments(`{'query': 'weather',}`)
	require.NoError(t, err)
	assert.Equal(t, "weather", args["query"])
}

func TestRegistry(t *testing.T) {
	add := newAddTool(t)
	echo, err := NewFunc("echo", "echoes input", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return args, nil
	})
	require.NoError(t, err)

	reg, err := NewRegistry(add, echo)
	require.NoError(t, err)

	got, ok := reg.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, "add", got.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"add", "echo"}, reg.Names())

	defs := reg.Defs()
	require.Len(t, defs, 2)
	assert.Equal(t, "add", defs[0].Name)
	assert.Equal(t, "echo", defs[1].Name)
}

func TestRegistryDuplicate(t *testing.T) {
	add := newAddTool(t)
	reg, err := NewRegistry(add)
	require.NoError(t, err)

	err = reg.Register(add)
	assert.Error(t, err)
}

type fakeLangchainTool struct{}

func (fakeLangchainTool) Name() string        { return "search" }
func (fakeLangchainTool) Description() string { return "searches the web" }
func (fakeLangchainTool) Call(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("empty input")
	}
	return "results for " + input, nil
}

func TestFromLangchain(t *testing.T) {
	tl := FromLangchain(fakeLangchainTool{})

	assert.Equal(t, "search", tl.Name())
	assert.Equal(t, "searches the web", tl.Description())

	result, err := tl.Invoke(context.Background(), map[string]any{"input": "golang"})
	require.NoError(t, err)
	assert.Equal(t, "results for golang", result)

	_, err = tl.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}
