// Package workflow executes directed graphs of heterogeneous compute
// vertices: functions, branches, LLM calls, tool loops, embedding and
// vector operations, nested subgraphs, and condition-gated loops.
//
// A Workflow is built from vertices and guarded edges, validated, and run
// through a Runner. The scheduler dispatches ready vertices in parallel on
// a bounded worker pool; declared bindings pull values from producer
// outputs, the env map, or the caller's inputs, and template strings are
// substituted before tasks run. Events stream to subscribers over bounded
// channels during the run, and cancellation propagates cooperatively with
// a grace window for in-flight vertices.
//
// A minimal pipeline:
//
//	w := workflow.New("double")
//	w.AddVertex(workflow.NewSource("src"))
//	w.AddVertex(workflow.NewFunction("double", doubleTask,
//		workflow.Binding{Scope: "src", Var: "v", As: "v"}))
//	w.AddVertex(workflow.NewSink("out"))
//	w.AddEdge("src", "double")
//	w.AddEdge("double", "out")
//
//	runner, err := workflow.NewRunner(w)
//	result, err := runner.Run(ctx, map[string]any{"v": 3})
package workflow
