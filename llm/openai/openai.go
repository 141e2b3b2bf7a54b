// Package openai adapts the sashabaranov/go-openai client to the llm.Provider
// contract, including streaming tool-call deltas and reasoning content for
// models that expose it.
package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/floe-ai/floe/llm"
)

// Provider implements llm.Provider over the OpenAI chat-completions API.
type Provider struct {
	client *goopenai.Client
	model  string
}

var _ llm.Provider = (*Provider)(nil)

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the model name. Defaults to gpt-4o.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithClient replaces the underlying client, e.g. for OpenAI-compatible
// endpoints constructed via goopenai.DefaultConfig.
func WithClient(client *goopenai.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// NewProvider creates an OpenAI-backed provider.
// If apiKey is empty, it tries the OPENAI_API_KEY environment variable.
func NewProvider(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	p := &Provider{
		model: goopenai.GPT4o,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		p.client = goopenai.NewClient(apiKey)
	}

	return p, nil
}

// Invoke issues a chat-completion call. Streaming requests return a stream
// backed by the SSE transport; non-streaming requests return a single-delta
// stream carrying the complete response.
func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Stream, error) {
	chatReq := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Tools:       toOpenAITools(req.Tools),
	}

	if !req.Stream {
		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, classifyError(err)
		}
		return newCompleteStream(resp), nil
	}

	chatReq.Stream = true
	chatReq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return &sseStream{inner: stream}, nil
}

// sseStream adapts the go-openai SSE stream to llm.Stream.
type sseStream struct {
	inner *goopenai.ChatCompletionStream
}

func (s *sseStream) Recv() (llm.Delta, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return llm.Delta{}, io.EOF
		}
		return llm.Delta{}, classifyError(err)
	}

	var delta llm.Delta
	if resp.Usage != nil {
		delta.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if len(resp.Choices) == 0 {
		return delta, nil
	}

	choice := resp.Choices[0]
	delta.Content = choice.Delta.Content
	delta.Reasoning = choice.Delta.ReasoningContent
	delta.FinishReason = toFinishReason(choice.FinishReason)

	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallDelta{
			Index:     idx,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return delta, nil
}

func (s *sseStream) Close() error {
	return s.inner.Close()
}

// completeStream yields a full non-streamed response as a single delta.
type completeStream struct {
	delta llm.Delta
	done  bool
}

func newCompleteStream(resp goopenai.ChatCompletionResponse) *completeStream {
	delta := llm.Delta{
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		delta.Content = choice.Message.Content
		delta.Reasoning = choice.Message.ReasoningContent
		delta.FinishReason = toFinishReason(choice.FinishReason)
		for i, tc := range choice.Message.ToolCalls {
			delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallDelta{
				Index:     i,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return &completeStream{delta: delta}
}

func (s *completeStream) Recv() (llm.Delta, error) {
	if s.done {
		return llm.Delta{}, io.EOF
	}
	s.done = true
	return s.delta, nil
}

func (s *completeStream) Close() error {
	s.done = true
	return nil
}

func toOpenAIMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}

		if len(m.Parts) > 0 {
			msg.Content = ""
			for _, part := range m.Parts {
				switch part.Type {
				case llm.PartImageURL:
					msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
						Type:     goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{URL: part.ImageURL},
					})
				default:
					msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
						Type: goopenai.ChatMessagePartTypeText,
						Text: part.Text,
					})
				}
			}
		}

		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []llm.ToolDef) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func toFinishReason(reason goopenai.FinishReason) llm.FinishReason {
	switch reason {
	case goopenai.FinishReasonToolCalls, goopenai.FinishReasonFunctionCall:
		return llm.FinishToolCalls
	case goopenai.FinishReasonStop:
		return llm.FinishStop
	case goopenai.FinishReasonLength:
		return llm.FinishLength
	default:
		return llm.FinishNone
	}
}

func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &llm.RateLimitError{Err: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &llm.InvalidRequestError{Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &llm.TransportError{Err: err}
}
