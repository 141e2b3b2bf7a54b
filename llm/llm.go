package llm

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the kind of a message content part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// Part is a single piece of multimodal message content.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// TextPart creates a text content part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart creates an image-URL content part.
func ImagePart(url string) Part {
	return Part{Type: PartImageURL, ImageURL: url}
}

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON as produced by the model
}

// Message is a single chat message. Content holds plain text; Parts holds
// multimodal content and takes precedence over Content when non-empty.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Parts      []Part     `json:"parts,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on RoleTool messages
	Name       string     `json:"name,omitempty"`
}

// SystemMessage creates a system message with plain-text content.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user message with plain-text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant message with plain-text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolMessage creates a tool-result message for the given tool call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// ToolDef describes a tool made available to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// FinishReason explains why the model stopped producing output.
type FinishReason string

const (
	FinishNone      FinishReason = ""
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// Usage reports token accounting for a completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolCallDelta is a partial tool call carried by a streaming delta. Providers
// deliver tool calls incrementally; Index correlates fragments of the same
// call across deltas, and Arguments fragments are concatenated in order.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Delta is one chunk of a streamed model response.
type Delta struct {
	Content      string          `json:"content,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
	ToolCalls    []ToolCallDelta `json:"tool_calls,omitempty"`
	FinishReason FinishReason    `json:"finish_reason,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
}

// Request carries everything a provider needs for one model call.
type Request struct {
	Messages    []Message
	Tools       []ToolDef
	Temperature float64
	MaxTokens   int
	Stream      bool
	Reasoning   bool // ask the provider to surface reasoning deltas if supported
}

// Stream yields response deltas in provider order. Recv returns io.EOF after
// the final delta. Close releases the underlying transport; it must be safe
// to call Close concurrently with Recv to abort an in-flight call.
type Stream interface {
	Recv() (Delta, error)
	Close() error
}

// Provider is the model transport contract. Implementations must honor
// context cancellation by closing the underlying transport. When the request
// does not ask for streaming, providers return a Stream that yields a single
// delta carrying the complete response.
type Provider interface {
	Invoke(ctx context.Context, req Request) (Stream, error)
}

// TransportError wraps a network or protocol failure talking to a provider.
// Transient by nature; callers may retry at their discretion.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError indicates the provider rejected the call due to rate limits.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limit: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// InvalidRequestError indicates the provider rejected the request as malformed.
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid provider request: %v", e.Err)
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// ErrStreamClosed is returned by Recv after Close has been called.
var ErrStreamClosed = errors.New("llm: stream closed")
