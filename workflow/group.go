package workflow

import (
	"context"
)

// Exposure publishes one inner vertex's value under a name visible to the
// outer graph.
type Exposure struct {
	// Vertex is the inner vertex id.
	Vertex string

	// Var selects a field from the inner vertex's output. Empty takes the
	// whole output map.
	Var string

	// As is the exposed name. Empty defaults to Var, then to Vertex.
	As string
}

func (e Exposure) name() string {
	if e.As != "" {
		return e.As
	}
	if e.Var != "" {
		return e.Var
	}
	return e.Vertex
}

// GroupConfig configures a group vertex.
type GroupConfig struct {
	Exposures []Exposure

	// StrictExposure limits the group's output to the declared exposures.
	// By default the output also carries the full map of inner vertex
	// outputs keyed by vertex id.
	StrictExposure bool
}

// NewGroup creates a vertex that runs an inner workflow as a single unit.
// The group's resolved inputs become the subgraph's inputs, readable inside
// through ScopeSource bindings.
func NewGroup(id string, inner *Workflow, cfg GroupConfig, bindings ...Binding) *Vertex {
	return &Vertex{
		ID:        id,
		Kind:      KindGroup,
		Bindings:  bindings,
		inner:     inner,
		exposures: cfg.Exposures,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			child := rc.child(inputs)
			failures, _ := rc.runner.runGraph(ctx, child, inner, inputs)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if unrec := unrecoveredFailures(inner, failures); len(unrec) > 0 {
				return nil, unrec[0]
			}
			return assembleGroupOutput(child, id, inner, cfg.Exposures, cfg.StrictExposure)
		},
	}
}

// assembleGroupOutput builds a composite vertex's output: the full inner
// output map unless strict, with exposed names merged on top.
func assembleGroupOutput(child *RunContext, groupID string, inner *Workflow, exposures []Exposure, strict bool) (map[string]any, error) {
	out := make(map[string]any)

	if !strict {
		for _, innerID := range inner.order {
			if output, ok := child.Output(innerID); ok {
				out[innerID] = output
			}
		}
	}

	for _, exp := range exposures {
		output, ok := child.Output(exp.Vertex)
		if !ok {
			return nil, &MissingDependencyError{Vertex: groupID, Scope: exp.Vertex, Field: exp.Var}
		}
		if exp.Var == "" {
			out[exp.name()] = output
			continue
		}
		value, ok := output[exp.Var]
		if !ok {
			return nil, &MissingDependencyError{Vertex: groupID, Scope: exp.Vertex, Field: exp.Var}
		}
		out[exp.name()] = value
	}

	return out, nil
}

// unrecoveredFailures filters out failures covered by an OnError edge
// leaving the failed vertex.
func unrecoveredFailures(wf *Workflow, failures []VertexFailure) []VertexFailure {
	var unrec []VertexFailure
	for _, f := range failures {
		recovered := false
		for _, e := range wf.edges {
			if e.OnError && e.From == f.Vertex {
				recovered = true
				break
			}
		}
		if !recovered {
			unrec = append(unrec, f)
		}
	}
	return unrec
}
