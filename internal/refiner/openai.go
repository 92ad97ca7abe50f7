package refiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIRefiner generates text with the OpenAI chat completions API.
type OpenAIRefiner struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIRefiner creates a refiner for the given chat model.
func NewOpenAIRefiner(apiKey, model string, maxTokens int) (*OpenAIRefiner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &OpenAIRefiner{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Generate sends the prompt as a single user message and returns the
// completion text.
func (r *OpenAIRefiner) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openai.Int(r.maxTokens)
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ Refiner = (*OpenAIRefiner)(nil)
