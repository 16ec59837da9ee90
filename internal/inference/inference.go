// Package inference sends a page screenshot to a vision model and returns
// the model's raw extraction text.
package inference

import (
	"context"
	"fmt"

	"github.com/sells-group/case-extractor/internal/resilience"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const defaultMediaType = "image/png"

// Request is one extraction call.
type Request struct {
	Image        []byte
	MediaType    string
	CaseNumber   string
	ExtraContext string
	CustomFields []string
}

func (r Request) mediaType() string {
	if r.MediaType == "" {
		return defaultMediaType
	}
	return r.MediaType
}

// Extractor returns the model's reply text for a screenshot, unmodified.
// Implementations make exactly one request per call and never retry.
type Extractor interface {
	Extract(ctx context.Context, req Request) (string, error)
}

// Settings are the sampling parameters shared by every provider.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Error reports a failed inference call. Err is a
// *resilience.TransientError when the failure is worth retrying.
type Error struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference: %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference: %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider string, status int, err error) *Error {
	if resilience.IsTransientHTTPStatus(status) || (status == 0 && resilience.IsTransient(err)) {
		err = resilience.NewTransientError(err, status)
	}
	return &Error{Provider: provider, StatusCode: status, Err: err}
}
