// Package vector defines the embedding and similarity-search contracts used
// by embedding and vector vertices, plus an in-memory cosine store.
//
// The openai subpackage provides an Embedder backed by the OpenAI
// embeddings API.
package vector
