// Package langchain adapts any tmc/langchaingo llms.Model to the
// llm.Provider contract. Content is streamed through the model's
// WithStreamingFunc hook; tool calls arrive with the final response.
package langchain

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/floe-ai/floe/llm"
)

// Provider wraps a langchaingo model.
type Provider struct {
	model llms.Model
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider creates a provider backed by the given langchaingo model.
func NewProvider(model llms.Model) *Provider {
	return &Provider{model: model}
}

// Invoke issues a GenerateContent call. For streaming requests, content
// chunks are relayed as they arrive and tool calls are delivered in the
// final delta together with the finish reason.
func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Stream, error) {
	messages := toLangchainMessages(req.Messages)

	opts := []llms.CallOption{}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(toLangchainTools(req.Tools)))
	}

	s := newChanStream(ctx)

	if req.Stream {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return s.send(llm.Delta{Content: string(chunk)})
		}))
	}

	go func() {
		resp, err := p.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			s.fail(&llm.TransportError{Err: err})
			return
		}
		s.finish(finalDelta(resp, req.Stream))
	}()

	return s, nil
}

// chanStream bridges callback-style streaming into the pull-based Stream.
type chanStream struct {
	ctx     context.Context
	ch      chan llm.Delta
	errCh   chan error
	closeMu sync.Mutex
	closed  chan struct{}
}

func newChanStream(ctx context.Context) *chanStream {
	return &chanStream{
		ctx:    ctx,
		ch:     make(chan llm.Delta, 16),
		errCh:  make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *chanStream) send(delta llm.Delta) error {
	select {
	case s.ch <- delta:
		return nil
	case <-s.closed:
		return llm.ErrStreamClosed
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *chanStream) finish(delta llm.Delta) {
	_ = s.send(delta)
	s.errCh <- io.EOF
}

func (s *chanStream) fail(err error) {
	s.errCh <- err
}

func (s *chanStream) Recv() (llm.Delta, error) {
	select {
	case delta := <-s.ch:
		return delta, nil
	case <-s.closed:
		return llm.Delta{}, llm.ErrStreamClosed
	case err := <-s.errCh:
		// Drain anything buffered before surfacing EOF.
		select {
		case delta := <-s.ch:
			s.errCh <- err
			return delta, nil
		default:
		}
		return llm.Delta{}, err
	case <-s.ctx.Done():
		return llm.Delta{}, s.ctx.Err()
	}
}

func (s *chanStream) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// finalDelta builds the terminal delta from the complete response. When the
// call streamed content through the callback, the terminal delta omits
// content to avoid duplicating already-relayed text.
func finalDelta(resp *llms.ContentResponse, streamed bool) llm.Delta {
	var delta llm.Delta
	if len(resp.Choices) == 0 {
		delta.FinishReason = llm.FinishStop
		return delta
	}

	choice := resp.Choices[0]
	if !streamed {
		delta.Content = choice.Content
	}

	for i, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallDelta{
			Index:     i,
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}

	if len(delta.ToolCalls) > 0 {
		delta.FinishReason = llm.FinishToolCalls
	} else if strings.EqualFold(choice.StopReason, "length") {
		delta.FinishReason = llm.FinishLength
	} else {
		delta.FinishReason = llm.FinishStop
	}
	return delta
}

func toLangchainMessages(messages []llm.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		mc := llms.MessageContent{Role: toLangchainRole(m.Role)}

		switch {
		case m.Role == llm.RoleTool:
			mc.Parts = append(mc.Parts, llms.ToolCallResponse{
				ToolCallID: m.ToolCallID,
				Name:       m.Name,
				Content:    m.Content,
			})
		case len(m.Parts) > 0:
			for _, part := range m.Parts {
				if part.Type == llm.PartImageURL {
					mc.Parts = append(mc.Parts, llms.ImageURLPart(part.ImageURL))
				} else {
					mc.Parts = append(mc.Parts, llms.TextPart(part.Text))
				}
			}
		default:
			if m.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextPart(m.Content))
			}
		}

		for _, tc := range m.ToolCalls {
			mc.Parts = append(mc.Parts, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		out = append(out, mc)
	}
	return out
}

func toLangchainRole(role llm.Role) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	case llm.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

func toLangchainTools(tools []llm.ToolDef) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
