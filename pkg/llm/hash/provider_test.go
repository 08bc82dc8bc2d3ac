package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	p := NewProviderWithDimension(64)
	ctx := context.Background()

	a, err := p.EmbedSingle(ctx, "the treaty was signed in 1648")
	require.NoError(t, err)
	b, err := p.EmbedSingle(ctx, "the treaty was signed in 1648")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestEmbedBatchOrderAndDimension(t *testing.T) {
	p := NewProviderWithDimension(32)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	vecs, err := p.Embed(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for i, text := range texts {
		single, err := p.EmbedSingle(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i])
		assert.Len(t, vecs[i], 32)
	}
}

func TestEmbedNormalized(t *testing.T) {
	p := NewProviderWithDimension(128)

	vec, err := p.EmbedSingle(context.Background(), "some reasonably long text with several distinct tokens")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbedDistinguishesTexts(t *testing.T) {
	p := NewProviderWithDimension(128)
	ctx := context.Background()

	a, err := p.EmbedSingle(ctx, "cats are mammals")
	require.NoError(t, err)
	b, err := p.EmbedSingle(ctx, "treaties regulate international law")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbedCancelledContext(t *testing.T) {
	p := NewProviderWithDimension(16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, []string{"x"})
	assert.Error(t, err)
}
