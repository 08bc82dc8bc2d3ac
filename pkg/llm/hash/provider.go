// Package hash provides a deterministic, offline embedding provider.
//
// Vectors are built by feature-hashing word tokens into a fixed number of
// buckets and L2-normalizing the result. The output is stable across
// processes and needs no network access, which makes it suitable for
// development environments and tests.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/kart-io/anchora/pkg/llm"
)

// ProviderName is the registry identifier for this provider.
const ProviderName = "hash"

// DefaultDimension is used when the config does not specify one.
const DefaultDimension = 768

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Provider implements llm.EmbeddingProvider with feature hashing.
type Provider struct {
	dim int
}

// NewProvider creates a hash embedding provider from a config map.
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	dim := DefaultDimension
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		dim = v
	}
	return &Provider{dim: dim}, nil
}

// NewProviderWithDimension creates a hash embedding provider with the given
// vector dimension.
func NewProviderWithDimension(dim int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Provider{dim: dim}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// Embed generates vector embeddings for multiple texts.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = p.embedText(text)
	}
	return embeddings, nil
}

// EmbedSingle generates a vector embedding for one text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embedText(text), nil
}

func (p *Provider) embedText(text string) []float32 {
	vec := make([]float32, p.dim)

	tokens := tokenize(text)
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()

		bucket := int(sum % uint32(p.dim))
		// The top bit decides the sign so collisions partially cancel
		// instead of always accumulating.
		if sum&0x80000000 != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	normalize(vec)
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
