// Package openai provides a vector.Embedder backed by the OpenAI
// embeddings API.
package openai

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/floe-ai/floe/vector"
)

const defaultModel = openai.SmallEmbedding3

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ vector.Embedder = (*Embedder)(nil)

// Option configures the embedder.
type Option func(*Embedder)

// WithModel overrides the default embedding model.
func WithModel(model openai.EmbeddingModel) Option {
	return func(e *Embedder) { e.model = model }
}

// WithClient supplies a preconfigured client, e.g. for a custom base URL.
func WithClient(client *openai.Client) Option {
	return func(e *Embedder) { e.client = client }
}

// NewEmbedder creates an embedder. An empty apiKey falls back to the
// OPENAI_API_KEY environment variable.
func NewEmbedder(apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	e := &Embedder{model: defaultModel}
	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		if apiKey == "" {
			return nil, fmt.Errorf("missing OpenAI API key")
		}
		e.client = openai.NewClient(apiKey)
	}
	return e, nil
}

// Embed embeds a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in one API call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
