package embedding

import (
	"context"
	"math"

	"github.com/plantops/kotae/pkg/utils"
)

// MockProvider is a deterministic provider for tests and offline development.
// The same text always produces the same unit-normalized vector.
type MockProvider struct {
	dimensions int
}

// NewMockProvider returns a provider producing deterministic embeddings of the
// given dimension.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProvider{dimensions: dimensions}
}

// EmbedBatch returns one hash-derived vector per text.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	coerced := CoerceBlank(texts)
	vectors := make([][]float32, len(coerced))
	for i, text := range coerced {
		h := HashString(text)
		vec := make([]float32, p.dimensions)
		for j := 0; j < p.dimensions; j++ {
			vec[j] = float32(math.Sin(float64(h*(j+1)))*0.1 + 0.01)
		}
		utils.NormalizeL2(vec)
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for MockProvider.
func (p *MockProvider) Close() error {
	return nil
}

var _ Provider = (*MockProvider)(nil)
