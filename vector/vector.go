package vector

import "context"

// Embedder converts text into embedding vectors.
type Embedder interface {
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is an embeddable unit of content with optional metadata.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Match is a search hit with its similarity score.
type Match struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Store holds embedded documents and answers similarity queries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert inserts documents, replacing any with matching IDs. Documents
	// without an embedding are embedded by the store's embedder.
	Upsert(ctx context.Context, docs []Document) error

	// Query returns the k documents most similar to the query embedding,
	// highest score first. A non-nil filter restricts candidates to
	// documents whose metadata contains every filter entry.
	Query(ctx context.Context, embedding []float32, k int, filter map[string]any) ([]Match, error)

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
}
