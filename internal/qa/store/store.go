// Package store defines the vector store abstraction used by the QA pipeline.
package store

import (
	"context"
	"time"
)

// Chunk is a single indexed document fragment with its embedding.
type Chunk struct {
	// ID uniquely identifies the chunk, typically "<source>:<index>".
	ID string `json:"id"`

	// Source is the document identifier the chunk came from.
	Source string `json:"source"`

	// Page is the 1-based page number, 0 when the document has no pages.
	Page int `json:"page"`

	// Text is the chunk content.
	Text string `json:"text"`

	// StartOffset is the chunk's starting character offset in the document.
	StartOffset int `json:"start_offset"`

	// EndOffset is the chunk's ending character offset (exclusive).
	EndOffset int `json:"end_offset"`

	// Embedding is the chunk's vector representation.
	Embedding []float32 `json:"-"`
}

// RetrievedChunk is a chunk returned from a similarity search. Score is
// the [0, 1]-normalized cosine similarity to the query vector.
type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// IndexedDocument summarizes one indexed source.
type IndexedDocument struct {
	Source        string    `json:"source"`
	ChunkCount    int       `json:"chunk_count"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	// TopK is the maximum number of chunks to return.
	TopK int

	// SourceFilter restricts results to the named sources. Empty means
	// all sources.
	SourceFilter []string
}

// VectorStore stores chunk embeddings and answers similarity queries.
//
// Upsert replaces all chunks of a source atomically: either every chunk
// of the new generation is visible afterwards, or the store is unchanged.
// Implementations serialize concurrent Upsert and DeleteBySource calls
// for the same source.
type VectorStore interface {
	// Upsert atomically replaces the chunks of chunks[0].Source. All
	// chunks must share the same source.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Search returns up to opts.TopK chunks ordered by descending
	// similarity to the query vector.
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]RetrievedChunk, error)

	// DeleteBySource removes every chunk of a source and returns the
	// number of chunks removed.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// ListSources returns a summary of every indexed source.
	ListSources(ctx context.Context) ([]IndexedDocument, error)

	// Count returns the total number of chunks across all sources.
	Count(ctx context.Context) (int, error)

	// Close releases store resources.
	Close(ctx context.Context) error
}
