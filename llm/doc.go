// Package llm defines the model-provider contract used by the workflow
// engine's LLM vertices.
//
// A Provider turns a Request (messages, tool definitions, sampling options)
// into a Stream of Deltas. Each Delta may carry assistant content, reasoning
// content, partial tool calls, a finish reason, or usage accounting. The
// engine consumes deltas in provider order and relays them as events; it
// never depends on a concrete transport.
//
// Concrete adapters live in subpackages: llm/openai wraps the
// sashabaranov/go-openai client, llm/langchain wraps any
// tmc/langchaingo llms.Model.
package llm
