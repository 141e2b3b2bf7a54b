// Package tool defines the tool contract for LLM vertices: a named,
// described, JSON-Schema-typed callable.
//
// Func wraps a plain Go function and validates arguments against its schema
// before invocation. Registry keys tools by name for lookup during the
// tool-call loop. ParseArguments decodes model-produced argument JSON,
// repairing almost-JSON output before giving up. FromLangchain adapts any
// tmc/langchaingo tools.Tool.
//
// Tools are shared across vertices and runs; implementations must be safe
// for concurrent use.
package tool
