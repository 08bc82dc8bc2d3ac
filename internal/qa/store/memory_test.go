package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(source string, idx int, embedding []float32) Chunk {
	return Chunk{
		ID:        fmt.Sprintf("%s:%d", source, idx),
		Source:    source,
		Page:      idx + 1,
		Text:      fmt.Sprintf("chunk %d of %s", idx, source),
		Embedding: embedding,
	}
}

func TestMemoryStoreUpsertAndCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 0}),
		chunk("a.txt", 1, []float32{0, 1}),
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-indexing replaces the previous generation rather than appending.
	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 1}),
	}))

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreUpsertRejectsMixedSources(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []Chunk{
		chunk("a.txt", 0, []float32{1}),
		chunk("b.txt", 0, []float32{1}),
	})
	require.Error(t, err)
}

func TestMemoryStoreSearchOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 0}),
		chunk("a.txt", 1, []float32{0, 1}),
		chunk("a.txt", 2, []float32{0.7, 0.7}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a.txt:0", results[0].ID)
	assert.Equal(t, "a.txt:2", results[1].ID)
	assert.Equal(t, "a.txt:1", results[2].ID)
	assert.True(t, results[0].Score >= results[1].Score)
	assert.True(t, results[1].Score >= results[2].Score)
}

func TestMemoryStoreSearchTiesKeepInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Identical embeddings produce identical scores.
	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 0}),
		chunk("a.txt", 1, []float32{1, 0}),
		chunk("a.txt", 2, []float32{1, 0}),
	}))

	for i := 0; i < 5; i++ {
		results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a.txt:0", results[0].ID)
		assert.Equal(t, "a.txt:1", results[1].ID)
		assert.Equal(t, "a.txt:2", results[2].ID)
	}
}

func TestMemoryStoreSearchTiesAcrossSourcesKeepInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// One chunk per source forces the sort to reorder whatever order the
	// source map iteration produced.
	var want []string
	for i := 0; i < 12; i++ {
		source := fmt.Sprintf("doc%02d.txt", i)
		require.NoError(t, s.Upsert(ctx, []Chunk{chunk(source, 0, []float32{1, 0})}))
		want = append(want, source)
	}

	for run := 0; run < 5; run++ {
		results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 12})
		require.NoError(t, err)
		require.Len(t, results, 12)
		for i, r := range results {
			assert.Equal(t, want[i], r.Source, "run %d position %d", run, i)
		}
	}
}

func TestMemoryStoreSearchScoresWithinUnitInterval(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 0}),
		chunk("a.txt", 1, []float32{-1, 0}),
		chunk("a.txt", 2, []float32{0, 1}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "a.txt:1", results[2].ID)
	assert.InDelta(t, 0.0, results[2].Score, 1e-9)
}

func TestMemoryStoreSearchTopKBound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 0}),
		chunk("a.txt", 1, []float32{0, 1}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 7})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryStoreSearchSourceFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{chunk("a.txt", 0, []float32{1, 0})}))
	require.NoError(t, s.Upsert(ctx, []Chunk{chunk("b.txt", 0, []float32{1, 0})}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{
		TopK:         10,
		SourceFilter: []string{"b.txt"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.txt", results[0].Source)
}

func TestMemoryStoreDeleteBySource(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("a.txt", 0, []float32{1, 0}),
		chunk("a.txt", 1, []float32{0, 1}),
	}))

	n, err := s.DeleteBySource(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteBySource(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestMemoryStoreListSources(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Chunk{
		chunk("b.txt", 0, []float32{1}),
		chunk("b.txt", 1, []float32{1}),
	}))
	require.NoError(t, s.Upsert(ctx, []Chunk{chunk("a.txt", 0, []float32{1})}))

	docs, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "a.txt", docs[0].Source)
	assert.Equal(t, 1, docs[0].ChunkCount)
	assert.False(t, docs[0].LastIndexedAt.IsZero())
	assert.Equal(t, "b.txt", docs[1].Source)
	assert.Equal(t, 2, docs[1].ChunkCount)
}

func TestMemoryStoreConcurrentUpsertSameSource(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks := []Chunk{
				chunk("shared.txt", 0, []float32{1, 0}),
				chunk("shared.txt", 1, []float32{0, 1}),
			}
			assert.NoError(t, s.Upsert(ctx, chunks))
		}()
	}
	wg.Wait()

	// Whichever writer wins, the source holds exactly one generation.
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, []float32{1}, SearchOptions{TopK: 1})
	assert.ErrorIs(t, err, context.Canceled)

	err = s.Upsert(ctx, []Chunk{chunk("a.txt", 0, []float32{1})})
	assert.ErrorIs(t, err, context.Canceled)
}
