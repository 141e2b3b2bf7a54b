package tool

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/tools"
)

// langchainTool adapts a langchaingo tools.Tool to the Tool interface.
// langchaingo tools take a single string input, so the schema exposes one
// required "input" property and Invoke forwards args["input"].
type langchainTool struct {
	inner tools.Tool
}

var _ Tool = (*langchainTool)(nil)

// FromLangchain wraps a langchaingo tool.
func FromLangchain(t tools.Tool) Tool {
	return &langchainTool{inner: t}
}

func (t *langchainTool) Name() string { return t.inner.Name() }

func (t *langchainTool) Description() string { return t.inner.Description() }

func (t *langchainTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "The input query for the tool",
			},
		},
		"required":             []string{"input"},
		"additionalProperties": false,
	}
}

func (t *langchainTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	input, _ := args["input"].(string)
	if input == "" {
		return nil, &InvocationError{Tool: t.Name(), Err: fmt.Errorf("missing string argument %q", "input")}
	}

	result, err := t.inner.Call(ctx, input)
	if err != nil {
		return nil, &InvocationError{Tool: t.Name(), Err: err}
	}
	return result, nil
}
