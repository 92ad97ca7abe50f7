// Package embedding provides text embedding providers (remote API, local ONNX, mock).
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyBatch is returned when EmbedBatch is called with no texts.
var ErrEmptyBatch = errors.New("embedding batch must not be empty")

// Provider produces unit-normalized float32 vector embeddings for text.
// Implementations never retry silently; callers decide how to handle failures.
type Provider interface {
	// EmbedBatch embeds texts and returns one vector per input, in order.
	// All vectors share the provider's fixed dimension and unit L2 norm.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the configured embedding dimension, or 0 when the
	// dimension is model-defined and discovered on first use.
	Dimensions() int
	Close() error
}

// CoerceBlank replaces blank texts with a single space so that batch
// positions stay aligned with their inputs. Upstream embedding APIs reject
// empty strings outright.
func CoerceBlank(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if isBlank(t) {
			out[i] = " "
		} else {
			out[i] = t
		}
	}
	return out
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
