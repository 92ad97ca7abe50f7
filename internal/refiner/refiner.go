// Package refiner abstracts the optional language model used to polish
// deterministic answer drafts.
package refiner

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
)

// Refiner generates free-form text from a prompt. Implementations are
// optional: the answer pipeline works without one.
type Refiner interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrNoCompletion marks a response that came back well-formed but without
// any choices. Retrying the same prompt will not change the model's reply.
var ErrNoCompletion = errors.New("chat completion returned no choices")

// IsTransient reports whether a generation failure is worth one retry.
// Rate limits and server-side errors are transient; API rejections
// (bad request, auth) and empty completions will fail again identically
// and are not.
func IsTransient(err error) bool {
	if errors.Is(err, ErrNoCompletion) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Network-level failures (timeouts, resets) arrive untyped.
	return true
}
