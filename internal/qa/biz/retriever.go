package biz

import (
	"context"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// DefaultTopK is the number of chunks retrieved when the caller does
// not specify one.
const DefaultTopK = 7

// Retriever embeds a question and finds the most similar chunks.
type Retriever struct {
	embedder llm.EmbeddingProvider
	store    store.VectorStore
	topK     int
}

// NewRetriever creates a retriever with the given default top-k.
func NewRetriever(embedder llm.EmbeddingProvider, vs store.VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: vs, topK: topK}
}

// RetrieveOptions narrows a retrieval request.
type RetrieveOptions struct {
	// TopK overrides the retriever default when positive.
	TopK int

	// Sources restricts retrieval to the named documents.
	Sources []string
}

// Retrieve returns the chunks most similar to the question. An empty
// store yields ErrQAEmptyIndex; a store that merely has no match above
// any threshold still returns its best candidates.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts RetrieveOptions) ([]store.RetrievedChunk, error) {
	total, err := r.store.Count(ctx)
	if err != nil {
		return nil, errors.ErrQAStoreFailure.WithCause(err)
	}
	if total == 0 {
		return nil, errors.ErrQAEmptyIndex
	}

	vector, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, errors.ErrQAEmbeddingUnavailable.WithCause(err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = r.topK
	}

	chunks, err := r.store.Search(ctx, vector, store.SearchOptions{
		TopK:         topK,
		SourceFilter: opts.Sources,
	})
	if err != nil {
		return nil, errors.ErrQAStoreFailure.WithCause(err)
	}
	return chunks, nil
}
