package tool

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/floe-ai/floe/llm"
)

// Tool is a callable the model can invoke by name. Implementations must be
// safe for concurrent use: the scheduler shares tools across LLM vertices
// and does not serialize calls.
type Tool interface {
	// Name returns the tool's unique name.
	Name() string

	// Description explains to the model when the tool is appropriate.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() map[string]any

	// Invoke runs the tool with already-decoded arguments.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// InvocationError wraps a failure to run a tool, carrying the tool name.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %q invocation failed: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Func is a Tool backed by a plain Go function with a JSON Schema for its
// arguments. Arguments are validated against the schema before the function
// runs.
type Func struct {
	name        string
	description string
	schema      map[string]any
	compiled    *jsonschema.Schema
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

var _ Tool = (*Func)(nil)

// NewFunc creates a function tool. The schema must be a valid JSON Schema
// document; pass nil to accept any arguments.
func NewFunc(name, description string, schema map[string]any, fn func(ctx context.Context, args map[string]any) (any, error)) (*Func, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name must not be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %q: function must not be nil", name)
	}

	t := &Func{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}

	if schema != nil {
		compiler := jsonschema.NewCompiler()
		resource := fmt.Sprintf("tool://%s/schema.json", name)
		if err := compiler.AddResource(resource, normalizeSchema(schema)); err != nil {
			return nil, fmt.Errorf("tool %q: invalid schema: %w", name, err)
		}
		compiled, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid schema: %w", name, err)
		}
		t.compiled = compiled
	}

	return t, nil
}

// Name returns the tool name.
func (t *Func) Name() string { return t.name }

// Description returns the tool description.
func (t *Func) Description() string { return t.description }

// Schema returns the argument schema.
func (t *Func) Schema() map[string]any { return t.schema }

// Invoke validates args against the schema and runs the function.
func (t *Func) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.compiled != nil {
		if err := t.compiled.Validate(normalizeSchema(args)); err != nil {
			return nil, &InvocationError{Tool: t.name, Err: fmt.Errorf("arguments rejected by schema: %w", err)}
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		return nil, &InvocationError{Tool: t.name, Err: err}
	}
	return result, nil
}

// normalizeSchema rewrites a decoded JSON value into the plain
// map[string]any / []any / float64 shape the validator expects.
func normalizeSchema(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeSchema(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeSchema(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

// Def converts a tool into the provider-facing definition.
func Def(t Tool) llm.ToolDef {
	return llm.ToolDef{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}
