package workflow

import (
	"context"
)

// ConditionFunc gates each while-group iteration. It sees the loop's
// current input map, including iteration_index and values merged from the
// previous iteration, and must be pure.
type ConditionFunc func(inputs map[string]any) (bool, error)

// WhileConfig configures a while-group vertex.
type WhileConfig struct {
	Exposures []Exposure

	// MaxIterations stops the loop after that many passes. Zero means no
	// bound beyond the condition.
	MaxIterations int

	// StrictExposure limits the final output to the declared exposures,
	// matching GroupConfig.
	StrictExposure bool
}

// NewWhileGroup creates a vertex that runs an inner workflow repeatedly
// while the condition holds. The condition is evaluated before every
// iteration; a started iteration always runs to completion.
func NewWhileGroup(id string, inner *Workflow, cond ConditionFunc, cfg WhileConfig, bindings ...Binding) *Vertex {
	return &Vertex{
		ID:        id,
		Kind:      KindWhileGroup,
		Bindings:  bindings,
		inner:     inner,
		exposures: cfg.Exposures,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			iterInputs := make(map[string]any, len(inputs)+1)
			for name, value := range inputs {
				iterInputs[name] = value
			}

			iterations := make([]map[string]any, 0)
			var lastRecord map[string]any
			index := 0

			for {
				if cfg.MaxIterations > 0 && index >= cfg.MaxIterations {
					break
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}

				iterInputs["iteration_index"] = index

				proceed, err := cond(iterInputs)
				if err != nil {
					return nil, &ConditionError{Vertex: id, Err: err}
				}
				if !proceed {
					break
				}

				child := rc.child(iterInputs)
				failures, _ := rc.runner.runGraph(ctx, child, inner, iterInputs)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if unrec := unrecoveredFailures(inner, failures); len(unrec) > 0 {
					return nil, unrec[0]
				}

				record, err := iterationRecord(child, id, inner, cfg.Exposures)
				if err != nil {
					return nil, err
				}
				iterations = append(iterations, record)
				lastRecord = record

				// Carry this iteration's values into the next pass.
				for name, value := range record {
					iterInputs[name] = value
				}
				index++
			}

			out := map[string]any{
				"iterations":      iterations,
				"iteration_count": index,
			}
			for name, value := range lastRecord {
				if name == "iterations" || name == "iteration_count" {
					continue
				}
				out[name] = value
			}
			return out, nil
		},
	}
}

// iterationRecord captures one pass's outputs: the declared exposures, or
// the full inner output map when none are declared.
func iterationRecord(child *RunContext, id string, inner *Workflow, exposures []Exposure) (map[string]any, error) {
	if len(exposures) == 0 {
		return assembleGroupOutput(child, id, inner, nil, false)
	}
	return assembleGroupOutput(child, id, inner, exposures, true)
}
