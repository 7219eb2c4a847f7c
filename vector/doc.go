// Package vector stores note and search-result embeddings for semantic
// lookup. An Index pairs an Embedder with a Store; QdrantStore and
// OllamaEmbedder talk to the respective HTTP APIs, MemoryStore and
// HashEmbedder serve offline runs and tests.
package vector
