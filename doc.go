// Floe - Workflow Execution Core for Local AI Orchestration
//
// Floe runs directed graphs of AI work: LLM calls, tool invocations,
// embedding and vector operations, conditional branches, bounded loops, and
// nested subgraphs. Vertices declare what they read through scoped bindings,
// the scheduler dispatches them as soon as their dependencies settle, and
// every run streams its lifecycle over an event bus.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/floe-ai/floe
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/floe-ai/floe/llm/openai"
//		"github.com/floe-ai/floe/workflow"
//	)
//
//	func main() {
//		provider, _ := openai.NewProvider("", openai.WithModel("gpt-4o-mini"))
//
//		w := workflow.New("assistant")
//		w.AddVertex(workflow.NewLLM("chat", provider, workflow.LLMConfig{
//			System: "You are a concise assistant.",
//			User:   "{{question}}",
//			Stream: true,
//		}))
//
//		runner, _ := workflow.NewRunner(w)
//		result, _ := runner.Run(context.Background(), map[string]any{
//			"question": "What is a directed acyclic graph?",
//		})
//
//		fmt.Println(result.Outputs["chat"]["response"])
//	}
//
// # Core Concepts
//
// Graph structure:
//   - Vertices are units of work (functions, LLM calls, tools, groups)
//   - Edges order execution; guards and error edges steer it
//   - Each vertex produces a named output map other vertices bind against
//
// Bindings give every vertex an explicit, scoped view of the data it needs:
//
//	workflow.Binding{Scope: "retrieve", Var: "matches", As: "context"}
//
// Scope names a producer vertex, workflow.ScopeInput the caller's inputs,
// workflow.ScopeSource the run inputs, and workflow.ScopeEnv the run
// environment.
//
// Streaming:
//
//	events, results := runner.Stream(ctx, inputs)
//	for ev := range events {
//		switch ev.Kind {
//		case workflow.EventMessage:
//			fmt.Print(ev.Data["text"])
//		case workflow.EventVertexFailed:
//			fmt.Println("failed:", ev.VertexID, ev.Err)
//		}
//	}
//	result := <-results
//
// # Package Structure
//
// workflow/
// The graph model, validation, scheduler, event bus, and the built-in vertex
// kinds: sources, sinks, functions, conditionals, LLM vertices with a
// tool-call loop, embedding and vector vertices, memory readers and writers,
// groups, and while-groups. YAML definitions load through workflow.Load.
//
// llm/
// The provider contract: messages, streamed deltas, tool-call fragments, and
// typed transport errors. Adapters live in llm/openai (sashabaranov/go-openai)
// and llm/langchain (any tmc/langchaingo llms.Model).
//
// tool/
// Tools the model can call: a registry, JSON Schema argument validation, and
// repair of malformed model-produced JSON. langchaingo tools adapt through
// tool.FromLangchain.
//
// memory/
// Conversation history and session context values, with in-memory, Redis,
// SQLite, and Postgres backends:
//
//	store, _ := redis.NewRedisStore(redis.RedisOptions{Addr: "localhost:6379"})
//	w.AddVertex(workflow.NewMemoryReader("recall", workflow.MemoryReaderConfig{
//		Store: store,
//		Limit: 20,
//	}))
//
// vector/
// Embedder and vector store contracts with an in-memory cosine store and an
// OpenAI embedder.
//
// log/
// Logging used across the module, backed by kataras/golog.
//
// # Composition
//
// Groups run an inner workflow as one vertex and expose chosen inner values
// to the outer graph:
//
//	w.AddVertex(workflow.NewGroup("research", inner, workflow.GroupConfig{
//		Exposures: []workflow.Exposure{{Vertex: "summarize", Var: "text", As: "summary"}},
//	}))
//
// While-groups repeat an inner workflow under a condition with a hard
// iteration bound:
//
//	w.AddVertex(workflow.NewWhileGroup("refine", inner,
//		func(inputs map[string]any) (bool, error) {
//			score, _ := inputs["score"].(float64)
//			return score < 0.9, nil
//		},
//		workflow.WhileConfig{MaxIterations: 5},
//	))
//
// # Configuration
//
// Environment variables:
//
//   - OPENAI_API_KEY: API key for the OpenAI provider and embedder
//
// Runner options control concurrency, event buffering, and the cancellation
// grace window:
//
//	runner, _ := workflow.NewRunner(w,
//		workflow.WithWorkers(8),
//		workflow.WithEventBuffer(512),
//		workflow.WithGraceWindow(2*time.Second),
//	)
package floe // import "github.com/floe-ai/floe"
