package resilience

import (
	"context"
	"errors"
	"net"

	"github.com/kart-io/anchora/pkg/llm"
)

// ResilientEmbeddingProvider wraps an embedding provider with retries and a
// circuit breaker. Chat calls are not wrapped here: the answer generator
// owns the chat retry policy.
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

var _ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)

// NewResilientEmbeddingProvider creates a resilient embedding provider.
func NewResilientEmbeddingProvider(
	provider llm.EmbeddingProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientEmbeddingProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if cbConfig == nil {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientEmbeddingProvider{
		provider: provider,
		retry:    retryConfig,
		cb:       NewCircuitBreaker(cbConfig),
	}
}

// Embed generates embeddings with retries and circuit breaking.
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32

	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var innerErr error
		result, innerErr = r.provider.Embed(ctx, texts)
		return innerErr
	})

	return result, err
}

// EmbedSingle generates one embedding with retries and circuit breaking.
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32

	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var innerErr error
		result, innerErr = r.provider.EmbedSingle(ctx, text)
		return innerErr
	})

	return result, err
}

// Name returns the wrapped provider's name with a resilience suffix.
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker exposes the breaker for monitoring.
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// IsRetryableError decides whether an LLM call failure is worth retrying.
// Quota failures and cancelled contexts are terminal.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if llm.IsQuota(err) {
		return false
	}

	if llm.IsTransient(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
