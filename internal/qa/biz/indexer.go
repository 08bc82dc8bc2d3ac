package biz

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/logger"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// Indexer chunks documents, embeds the chunks, and writes them to the
// vector store. A document becomes visible in the store only after every
// chunk embedded successfully: a failed embedding aborts the whole run
// and leaves the store untouched.
type Indexer struct {
	chunker   *Chunker
	embedder  llm.EmbeddingProvider
	store     store.VectorStore
	workers   int
	batchSize int
}

// NewIndexer creates an indexer.
func NewIndexer(chunker *Chunker, embedder llm.EmbeddingProvider, vs store.VectorStore, workers, batchSize int) *Indexer {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		store:     vs,
		workers:   workers,
		batchSize: batchSize,
	}
}

// Index chunks and embeds a document, then atomically replaces its
// chunks in the store. Returns the number of chunks indexed.
func (ix *Indexer) Index(ctx context.Context, doc *Document) (int, error) {
	chunks := ix.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, errors.ErrQAInvalidRequest.WithMessagef("document %s is empty", doc.Source)
	}

	if err := ix.embedChunks(ctx, chunks); err != nil {
		return 0, err
	}

	if err := ix.store.Upsert(ctx, chunks); err != nil {
		return 0, errors.ErrQAStoreFailure.WithCause(err)
	}

	logger.Infow("indexed document", "source", doc.Source, "chunks", len(chunks))
	return len(chunks), nil
}

// embedChunks fills in chunk embeddings, fanning batches out over a
// worker pool. The first failure cancels the remaining batches and no
// chunk reaches the store.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []store.Chunk) error {
	batches := make([][2]int, 0, (len(chunks)+ix.batchSize-1)/ix.batchSize)
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, [2]int{start, end})
	}

	pool, err := ants.NewPool(ix.workers)
	if err != nil {
		return errors.ErrQAIndexFailed.WithCause(err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, b := range batches {
		start, end := b[0], b[1]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}

			vectors, embErr := ix.embedder.Embed(ctx, texts)
			if embErr == nil && len(vectors) != len(texts) {
				embErr = errors.ErrQAEmbeddingUnavailable.WithMessagef(
					"embedding count mismatch: want %d, got %d", len(texts), len(vectors))
			}
			if embErr != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = embErr
				}
				mu.Unlock()
				cancel()
				return
			}

			for i := start; i < end; i++ {
				chunks[i].Embedding = vectors[i-start]
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			cancel()
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		if stderrors.Is(firstErr, errors.ErrQAEmbeddingUnavailable) {
			return firstErr
		}
		logger.Warnw("embedding failed, aborting index run", "error", firstErr)
		return errors.ErrQAEmbeddingUnavailable.WithCause(firstErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
