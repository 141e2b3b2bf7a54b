package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// InMemoryStore is a simple in-memory vector store using cosine similarity.
type InMemoryStore struct {
	mu       sync.RWMutex
	docs     []Document
	embedder Embedder
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store. The embedder may be nil if all
// upserted documents carry embeddings.
func NewInMemoryStore(embedder Embedder) *InMemoryStore {
	return &InMemoryStore{embedder: embedder}
}

// Upsert inserts documents, replacing any with matching IDs.
func (s *InMemoryStore) Upsert(ctx context.Context, docs []Document) error {
	prepared := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			if s.embedder == nil {
				return fmt.Errorf("no embedder configured and document %q has no embedding", doc.ID)
			}
			embedding, err := s.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return fmt.Errorf("failed to embed document %q: %w", doc.ID, err)
			}
			doc.Embedding = embedding
		}
		prepared = append(prepared, doc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range prepared {
		replaced := false
		for i, existing := range s.docs {
			if existing.ID == doc.ID {
				s.docs[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			s.docs = append(s.docs, doc)
		}
	}
	return nil
}

// Query returns the k nearest documents by cosine similarity.
func (s *InMemoryStore) Query(ctx context.Context, embedding []float32, k int, filter map[string]any) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.docs))
	for _, doc := range s.docs {
		if !matchesFilter(doc, filter) {
			continue
		}
		matches = append(matches, Match{
			Document: doc,
			Score:    cosineSimilarity(embedding, doc.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes documents by ID.
func (s *InMemoryStore) Delete(ctx context.Context, ids []string) error {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.docs[:0]
	for _, doc := range s.docs {
		if !idSet[doc.ID] {
			kept = append(kept, doc)
		}
	}
	s.docs = kept
	return nil
}

// Count returns the number of stored documents.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func matchesFilter(doc Document, filter map[string]any) bool {
	for key, value := range filter {
		docValue, exists := doc.Metadata[key]
		if !exists || docValue != value {
			return false
		}
	}
	return true
}

// cosineSimilarity calculates cosine similarity between two vectors.
// Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
