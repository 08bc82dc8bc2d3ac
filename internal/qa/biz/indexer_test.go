package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/llm/hash"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// failingEmbedder fails every batch after the first failAfter calls.
type failingEmbedder struct {
	calls     atomic.Int64
	failAfter int64
}

func (f *failingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) > f.failAfter {
		return nil, stderrors.New("embedding backend unreachable")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *failingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *failingEmbedder) Name() string { return "failing" }

func TestIndexerIndexesAllChunks(t *testing.T) {
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)

	vs := store.NewMemoryStore()
	ix := NewIndexer(chunker, hash.NewProviderWithDimension(32), vs, 4, 2)

	text := strings.Repeat("some document content here ", 20)
	n, err := ix.Index(context.Background(), &Document{Source: "doc.txt", Text: text})
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	total, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n, total)
}

func TestIndexerEmbeddingFailureLeavesStoreUntouched(t *testing.T) {
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)

	vs := store.NewMemoryStore()
	ix := NewIndexer(chunker, &failingEmbedder{failAfter: 1}, vs, 4, 2)

	text := strings.Repeat("some document content here ", 20)
	_, err = ix.Index(context.Background(), &Document{Source: "doc.txt", Text: text})
	require.ErrorIs(t, err, errors.ErrQAEmbeddingUnavailable)

	total, countErr := vs.Count(context.Background())
	require.NoError(t, countErr)
	assert.Equal(t, 0, total)
}

func TestIndexerEmptyDocumentRejected(t *testing.T) {
	chunker, err := NewChunker(50, 10)
	require.NoError(t, err)

	ix := NewIndexer(chunker, hash.NewProviderWithDimension(32), store.NewMemoryStore(), 2, 2)
	_, err = ix.Index(context.Background(), &Document{Source: "empty.txt", Text: ""})
	require.ErrorIs(t, err, errors.ErrQAInvalidRequest)
}
