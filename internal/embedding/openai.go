package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/plantops/kotae/pkg/utils"
)

// ErrAPIKeyNotSet is returned when the OpenAI provider is created without an API key.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// OpenAIProvider embeds text via the OpenAI embeddings API.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIProvider creates a provider for the given model. When dimensions
// is positive it is passed to the API (supported by text-embedding-3 models);
// zero means the model's native dimension, discovered on first use.
func NewOpenAIProvider(apiKey, model string, dimensions int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	return &OpenAIProvider{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// EmbedBatch embeds texts in one API call. Blank texts are coerced to a
// single space to keep batch alignment. Every returned vector is
// unit-normalized so inner product equals cosine similarity.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	coerced := CoerceBlank(texts)

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
	}
	if len(coerced) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{OfString: openai.String(coerced[0])}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: coerced}
	}
	if p.dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(coerced) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(coerced))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) == 0 {
			return nil, fmt.Errorf("embedding response missing vector at position %d", i)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		utils.NormalizeL2(vec)
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the configured dimension, or 0 when model-defined.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for the API-backed provider.
func (p *OpenAIProvider) Close() error {
	return nil
}

var _ Provider = (*OpenAIProvider)(nil)
