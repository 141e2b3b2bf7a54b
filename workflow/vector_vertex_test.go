package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floe-ai/floe/vector"
)

// keywordEmbedder maps known words onto fixed axes so similarity is
// predictable in tests.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	switch text {
	case "cats":
		return []float32{1, 0, 0}, nil
	case "dogs":
		return []float32{0.9, 0.1, 0}, nil
	case "stocks":
		return []float32{0, 0, 1}, nil
	default:
		return []float32{0, 1, 0}, nil
	}
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = embedding
	}
	return out, nil
}

func TestEmbeddingVertexSingleText(t *testing.T) {
	w := New("embed")
	require.NoError(t, w.AddVertex(NewEmbedding("emb", EmbeddingConfig{Embedder: keywordEmbedder{}})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"text": "cats"})
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 0, 0}, result.Outputs["emb"]["embedding"])
}

func TestEmbeddingVertexBatch(t *testing.T) {
	w := New("embed")
	require.NoError(t, w.AddVertex(NewEmbedding("emb", EmbeddingConfig{Embedder: keywordEmbedder{}})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{
		"text": []string{"cats", "stocks"},
	})
	require.NoError(t, err)

	embeddings := result.Outputs["emb"]["embeddings"].([][]float32)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{1, 0, 0}, embeddings[0])
	assert.Equal(t, []float32{0, 0, 1}, embeddings[1])
}

func TestEmbeddingVertexRejectsNonText(t *testing.T) {
	w := New("embed")
	require.NoError(t, w.AddVertex(NewEmbedding("emb", EmbeddingConfig{Embedder: keywordEmbedder{}})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{"text": 42})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestVectorStoreAndQueryPipeline(t *testing.T) {
	store := vector.NewInMemoryStore(keywordEmbedder{})

	w := New("retrieval")
	require.NoError(t, w.AddVertex(NewVectorStore("ingest", VectorStoreConfig{Store: store})))
	require.NoError(t, w.AddVertex(NewVectorQuery("search", VectorQueryConfig{
		Store:    store,
		Embedder: keywordEmbedder{},
		TopK:     2,
	},
		Binding{Scope: ScopeSource, Var: "query", As: "query"})))
	w.AddEdge("ingest", "search")

	runner, err := NewRunner(w)
	require.NoError(t, err)

	documents := []vector.Document{
		{ID: "d1", Content: "cats", Metadata: map[string]any{"topic": "pets"}},
		{ID: "d2", Content: "dogs", Metadata: map[string]any{"topic": "pets"}},
		{ID: "d3", Content: "stocks", Metadata: map[string]any{"topic": "finance"}},
	}

	result, err := runner.Run(context.Background(), map[string]any{
		"documents": documents,
		"query":     "cats",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Outputs["ingest"]["count"])

	matches := result.Outputs["search"]["matches"].([]vector.Match)
	require.Len(t, matches, 2)
	assert.Equal(t, "d1", matches[0].Document.ID)
	assert.Equal(t, "d2", matches[1].Document.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestVectorQueryWithFilter(t *testing.T) {
	store := vector.NewInMemoryStore(keywordEmbedder{})
	require.NoError(t, store.Upsert(context.Background(), []vector.Document{
		{ID: "d1", Content: "cats", Metadata: map[string]any{"topic": "pets"}},
		{ID: "d3", Content: "stocks", Metadata: map[string]any{"topic": "finance"}},
	}))

	w := New("retrieval")
	require.NoError(t, w.AddVertex(NewVectorQuery("search", VectorQueryConfig{
		Store:    store,
		Embedder: keywordEmbedder{},
	})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{
		"query":  "cats",
		"filter": map[string]any{"topic": "finance"},
	})
	require.NoError(t, err)

	matches := result.Outputs["search"]["matches"].([]vector.Match)
	require.Len(t, matches, 1)
	assert.Equal(t, "d3", matches[0].Document.ID)
}

func TestVectorQueryPrecomputedEmbedding(t *testing.T) {
	store := vector.NewInMemoryStore(keywordEmbedder{})
	require.NoError(t, store.Upsert(context.Background(), []vector.Document{
		{ID: "d1", Content: "cats"},
	}))

	w := New("retrieval")
	require.NoError(t, w.AddVertex(NewVectorQuery("search", VectorQueryConfig{Store: store})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), map[string]any{
		"embedding": []float32{1, 0, 0},
	})
	require.NoError(t, err)

	matches := result.Outputs["search"]["matches"].([]vector.Match)
	require.Len(t, matches, 1)
	assert.Equal(t, "d1", matches[0].Document.ID)
}

func TestVectorQueryNeedsInput(t *testing.T) {
	w := New("retrieval")
	require.NoError(t, w.AddVertex(NewVectorQuery("search", VectorQueryConfig{
		Store: vector.NewInMemoryStore(keywordEmbedder{}),
	})))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}
