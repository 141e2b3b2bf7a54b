package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/floe-ai/floe/llm"
	"github.com/floe-ai/floe/memory"
	"github.com/floe-ai/floe/tool"
)

// DefaultMaxToolIterations bounds the tool-call loop of an LLM vertex.
const DefaultMaxToolIterations = 8

// LLMConfig configures an LLM vertex. System, User, and ImageURL are
// templates rendered against the vertex's resolved inputs.
type LLMConfig struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Tools       []tool.Tool
	Stream      bool
	Reasoning   bool
	ImageURL    string

	// HistoryKey names the input carrying prior conversation turns.
	// Default "history".
	HistoryKey string

	// MaxToolIterations caps consecutive provider calls triggered by tool
	// requests. Default DefaultMaxToolIterations.
	MaxToolIterations int
}

// NewLLM creates a vertex that assembles a chat request, streams the model
// response, and runs the tool-call loop.
func NewLLM(id string, provider llm.Provider, cfg LLMConfig, bindings ...Binding) *Vertex {
	return &Vertex{
		ID:       id,
		Kind:     KindLLM,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			unit := &llmUnit{id: id, provider: provider, cfg: cfg, rc: rc}
			return unit.run(ctx, inputs)
		},
	}
}

type llmUnit struct {
	id       string
	provider llm.Provider
	cfg      LLMConfig
	rc       *RunContext
}

func (u *llmUnit) run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	messages, err := u.assemble(inputs)
	if err != nil {
		return nil, err
	}

	defs := make([]llm.ToolDef, 0, len(u.cfg.Tools))
	byName := make(map[string]tool.Tool, len(u.cfg.Tools))
	for _, t := range u.cfg.Tools {
		defs = append(defs, tool.Def(t))
		byName[t.Name()] = t
	}

	maxIterations := u.cfg.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxToolIterations
	}

	var (
		reasoning strings.Builder
		trace     []map[string]any
		usage     llm.Usage
		sawUsage  bool
	)

	for iteration := 0; iteration < maxIterations; iteration++ {
		turn, err := u.callProvider(ctx, llm.Request{
			Messages:    messages,
			Tools:       defs,
			Temperature: u.cfg.Temperature,
			MaxTokens:   u.cfg.MaxTokens,
			Stream:      u.cfg.Stream,
			Reasoning:   u.cfg.Reasoning,
		}, &reasoning)
		if err != nil {
			return nil, err
		}
		if turn.usage != nil {
			usage.PromptTokens += turn.usage.PromptTokens
			usage.CompletionTokens += turn.usage.CompletionTokens
			usage.TotalTokens += turn.usage.TotalTokens
			sawUsage = true
		}

		if turn.finish != llm.FinishToolCalls {
			output := map[string]any{
				"response":   turn.text,
				"tool_trace": trace,
			}
			if reasoning.Len() > 0 {
				output["reasoning"] = reasoning.String()
			} else {
				output["reasoning"] = nil
			}
			if sawUsage {
				output["usage"] = map[string]any{
					"prompt_tokens":     usage.PromptTokens,
					"completion_tokens": usage.CompletionTokens,
					"total_tokens":      usage.TotalTokens,
				}
			}
			return output, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   turn.text,
			ToolCalls: turn.calls,
		})

		results, entries, err := u.dispatchTools(ctx, byName, turn.calls)
		if err != nil {
			return nil, err
		}
		trace = append(trace, entries...)
		messages = append(messages, results...)
	}

	return nil, &ToolLoopExhaustedError{Vertex: u.id, Iterations: maxIterations}
}

// assemble builds the message list: system, history, then the templated
// user turn.
func (u *llmUnit) assemble(inputs map[string]any) ([]llm.Message, error) {
	var messages []llm.Message

	if u.cfg.System != "" {
		system, err := Render(u.id, u.cfg.System, inputs)
		if err != nil {
			return nil, err
		}
		messages = append(messages, llm.SystemMessage(system))
	}

	historyKey := u.cfg.HistoryKey
	if historyKey == "" {
		historyKey = "history"
	}
	if raw, ok := inputs[historyKey]; ok {
		messages = append(messages, historyMessages(raw)...)
	}

	user, err := Render(u.id, u.cfg.User, inputs)
	if err != nil {
		return nil, err
	}

	if u.cfg.ImageURL != "" {
		imageURL, err := Render(u.id, u.cfg.ImageURL, inputs)
		if err != nil {
			return nil, err
		}
		messages = append(messages, llm.Message{
			Role:  llm.RoleUser,
			Parts: []llm.Part{llm.TextPart(user), llm.ImagePart(imageURL)},
		})
	} else {
		messages = append(messages, llm.UserMessage(user))
	}

	return messages, nil
}

func historyMessages(raw any) []llm.Message {
	switch history := raw.(type) {
	case []llm.Message:
		return history
	case []memory.Message:
		out := make([]llm.Message, len(history))
		for i, msg := range history {
			out[i] = msg.ToLLM()
		}
		return out
	case []map[string]any:
		out := make([]llm.Message, 0, len(history))
		for _, entry := range history {
			role, _ := entry["role"].(string)
			content, _ := entry["content"].(string)
			if role == "" {
				continue
			}
			out = append(out, llm.Message{Role: llm.Role(role), Content: content})
		}
		return out
	default:
		return nil
	}
}

// providerTurn is the accumulated result of one provider call.
type providerTurn struct {
	text   string
	finish llm.FinishReason
	calls  []llm.ToolCall
	usage  *llm.Usage
}

// callProvider drives one streamed provider call, relaying content and
// reasoning deltas onto the event bus. On cancellation the transport is
// closed and partial content discarded.
func (u *llmUnit) callProvider(ctx context.Context, req llm.Request, reasoning *strings.Builder) (*providerTurn, error) {
	stream, err := u.provider.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var text strings.Builder
	turn := &providerTurn{}
	partial := make(map[int]*partialCall)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if delta.Content != "" {
			text.WriteString(delta.Content)
			u.rc.bus.Publish(Event{
				Kind:     EventMessage,
				VertexID: u.id,
				Data:     map[string]any{"text": delta.Content},
			})
		}
		if delta.Reasoning != "" {
			reasoning.WriteString(delta.Reasoning)
			u.rc.bus.Publish(Event{
				Kind:     EventReasoning,
				VertexID: u.id,
				Data:     map[string]any{"text": delta.Reasoning},
			})
		}
		for _, tc := range delta.ToolCalls {
			call, ok := partial[tc.Index]
			if !ok {
				call = &partialCall{}
				partial[tc.Index] = call
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Name != "" {
				call.name = tc.Name
			}
			call.args.WriteString(tc.Arguments)
		}
		if delta.FinishReason != llm.FinishNone {
			turn.finish = delta.FinishReason
		}
		if delta.Usage != nil {
			turn.usage = delta.Usage
		}
	}

	turn.text = text.String()

	indexes := make([]int, 0, len(partial))
	for index := range partial {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	for _, index := range indexes {
		call := partial[index]
		turn.calls = append(turn.calls, llm.ToolCall{
			ID:        call.id,
			Name:      call.name,
			Arguments: call.args.String(),
		})
	}

	return turn, nil
}

type partialCall struct {
	id   string
	name string
	args strings.Builder
}

// dispatchTools invokes each requested tool, bracketing every call with
// start and end events. Per-call failures are recorded and fed back to the
// model; the vertex fails only when every call in the batch failed.
func (u *llmUnit) dispatchTools(ctx context.Context, byName map[string]tool.Tool, calls []llm.ToolCall) ([]llm.Message, []map[string]any, error) {
	var (
		results  []llm.Message
		entries  []map[string]any
		failed   int
		firstErr error
	)

	for _, call := range calls {
		args, err := tool.ParseArguments(call.Arguments)
		if err == nil {
			if _, ok := byName[call.Name]; !ok {
				err = &tool.InvocationError{Tool: call.Name, Err: errors.New("unknown tool")}
			}
		} else {
			err = &tool.InvocationError{Tool: call.Name, Err: err}
		}

		u.rc.bus.Publish(Event{
			Kind:     EventToolCall,
			VertexID: u.id,
			Data:     map[string]any{"tool_name": call.Name, "args": args, "phase": "start"},
		})

		var result any
		if err == nil {
			result, err = byName[call.Name].Invoke(ctx, args)
		}

		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			u.rc.bus.Publish(Event{
				Kind:     EventToolCall,
				VertexID: u.id,
				Data:     map[string]any{"tool_name": call.Name, "error": err.Error(), "phase": "end"},
			})
			entries = append(entries, map[string]any{"name": call.Name, "args": args, "error": err.Error()})
			results = append(results, llm.ToolMessage(call.ID, call.Name, "error: "+err.Error()))
			continue
		}

		u.rc.bus.Publish(Event{
			Kind:     EventToolCall,
			VertexID: u.id,
			Data:     map[string]any{"tool_name": call.Name, "result": result, "phase": "end"},
		})
		entries = append(entries, map[string]any{"name": call.Name, "args": args, "result": result})
		results = append(results, llm.ToolMessage(call.ID, call.Name, encodeToolResult(result)))
	}

	if len(calls) > 0 && failed == len(calls) {
		return nil, entries, firstErr
	}
	return results, entries, nil
}

func encodeToolResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
