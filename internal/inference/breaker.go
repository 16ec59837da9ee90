package inference

import (
	"context"
	"errors"

	"github.com/sells-group/case-extractor/internal/resilience"
)

type breakerExtractor struct {
	next     Extractor
	cb       *resilience.CircuitBreaker
	provider string
}

// WithBreaker guards an extractor with a circuit breaker. While the circuit
// is open, calls fail immediately with an *Error wrapping
// resilience.ErrCircuitOpen.
func WithBreaker(next Extractor, cb *resilience.CircuitBreaker, provider string) Extractor {
	return &breakerExtractor{next: next, cb: cb, provider: provider}
}

func (b *breakerExtractor) Extract(ctx context.Context, req Request) (string, error) {
	text, err := resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (string, error) {
		return b.next.Extract(ctx, req)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", &Error{Provider: b.provider, Err: err}
	}
	return text, err
}
