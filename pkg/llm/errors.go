package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when the model produces no usable content.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// QuotaError reports that the provider's quota or rate limit was hit.
// Quota failures are terminal: callers must not retry them.
type QuotaError struct {
	// Message is the provider's error message.
	Message string

	// RetryAfter is the provider's suggested wait in seconds, 0 if absent.
	RetryAfter int

	// QuotaLimit is the provider's quota ceiling, 0 if absent.
	QuotaLimit int
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("quota exceeded: %s (retry after %ds)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("quota exceeded: %s", e.Message)
}

// TransientError wraps a failure that is worth one retry: network errors,
// 5xx responses, and provider timeouts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsQuota reports whether err is a quota failure.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
