package workflow

import (
	"context"
	"fmt"

	"github.com/floe-ai/floe/vector"
)

// EmbeddingConfig configures an embedding vertex.
type EmbeddingConfig struct {
	Embedder vector.Embedder

	// TextKey names the input carrying the text. Default "text". The
	// value may be a string or a list of strings.
	TextKey string
}

// NewEmbedding creates a vertex that embeds text. A single string yields
// "embedding"; a list yields "embeddings" in input order.
func NewEmbedding(id string, cfg EmbeddingConfig, bindings ...Binding) *Vertex {
	textKey := cfg.TextKey
	if textKey == "" {
		textKey = "text"
	}

	return &Vertex{
		ID:       id,
		Kind:     KindEmbedding,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			switch text := inputs[textKey].(type) {
			case string:
				embedding, err := cfg.Embedder.Embed(ctx, text)
				if err != nil {
					return nil, err
				}
				return map[string]any{"embedding": embedding}, nil
			case []string:
				embeddings, err := cfg.Embedder.EmbedBatch(ctx, text)
				if err != nil {
					return nil, err
				}
				return map[string]any{"embeddings": embeddings}, nil
			case []any:
				texts := make([]string, 0, len(text))
				for _, item := range text {
					s, ok := item.(string)
					if !ok {
						return nil, fmt.Errorf("input %q must contain strings", textKey)
					}
					texts = append(texts, s)
				}
				embeddings, err := cfg.Embedder.EmbedBatch(ctx, texts)
				if err != nil {
					return nil, err
				}
				return map[string]any{"embeddings": embeddings}, nil
			default:
				return nil, fmt.Errorf("input %q must be a string or list of strings", textKey)
			}
		},
	}
}

// VectorStoreConfig configures a vector store vertex.
type VectorStoreConfig struct {
	Store vector.Store

	// DocumentsKey names the input carrying documents to upsert. Default
	// "documents".
	DocumentsKey string
}

// NewVectorStore creates a vertex that upserts documents into a vector
// store. Its output carries the number of documents written under "count".
func NewVectorStore(id string, cfg VectorStoreConfig, bindings ...Binding) *Vertex {
	documentsKey := cfg.DocumentsKey
	if documentsKey == "" {
		documentsKey = "documents"
	}

	return &Vertex{
		ID:       id,
		Kind:     KindVectorStore,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			docs, err := documentsFrom(inputs[documentsKey])
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", documentsKey, err)
			}
			if err := cfg.Store.Upsert(ctx, docs); err != nil {
				return nil, err
			}
			return map[string]any{"count": len(docs)}, nil
		},
	}
}

// VectorQueryConfig configures a vector query vertex.
type VectorQueryConfig struct {
	Store vector.Store

	// Embedder embeds a textual "query" input. Optional when callers bind
	// a precomputed "embedding" instead.
	Embedder vector.Embedder

	// TopK caps how many matches come back. Default 5.
	TopK int
}

// NewVectorQuery creates a vertex that runs a similarity search. It reads
// either a textual "query" input (embedded on the fly) or a precomputed
// "embedding", plus an optional metadata "filter" map. Matches come back
// under "matches", highest score first.
func NewVectorQuery(id string, cfg VectorQueryConfig, bindings ...Binding) *Vertex {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	return &Vertex{
		ID:       id,
		Kind:     KindVectorQuery,
		Bindings: bindings,
		task: func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			embedding, err := queryEmbedding(ctx, cfg, inputs)
			if err != nil {
				return nil, err
			}

			filter, _ := inputs["filter"].(map[string]any)
			matches, err := cfg.Store.Query(ctx, embedding, topK, filter)
			if err != nil {
				return nil, err
			}
			return map[string]any{"matches": matches}, nil
		},
	}
}

func queryEmbedding(ctx context.Context, cfg VectorQueryConfig, inputs map[string]any) ([]float32, error) {
	if embedding, ok := inputs["embedding"].([]float32); ok {
		return embedding, nil
	}
	query, ok := inputs["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("vector query needs an %q or %q input", "embedding", "query")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("vector query has a textual input but no embedder")
	}
	return cfg.Embedder.Embed(ctx, query)
}

func documentsFrom(raw any) ([]vector.Document, error) {
	switch docs := raw.(type) {
	case []vector.Document:
		return docs, nil
	case []any:
		out := make([]vector.Document, 0, len(docs))
		for _, item := range docs {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("documents must be maps or vector.Document values")
			}
			doc := vector.Document{}
			doc.ID, _ = entry["id"].(string)
			doc.Content, _ = entry["content"].(string)
			doc.Metadata, _ = entry["metadata"].(map[string]any)
			if embedding, ok := entry["embedding"].([]float32); ok {
				doc.Embedding = embedding
			}
			out = append(out, doc)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing documents")
	default:
		return nil, fmt.Errorf("unsupported documents type %T", raw)
	}
}
