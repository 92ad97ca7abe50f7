//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/plantops/kotae/pkg/utils"
)

// ONNXProvider runs a local sentence-embedding model through ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
type ONNXProvider struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	cache      *Cache
	tokenizer  Tokenizer
	// Pre-allocated tensors reused across Run() calls; input data is
	// overwritten and output read under mu.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXProvider creates a local embedding provider from a model file.
// InitializeEnvironment is called if not already done.
func NewONNXProvider(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXProvider, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXProvider{
		session:             session,
		dimensions:          dimensions,
		maxTokens:           maxTokens,
		cache:               NewCache(cacheSize),
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// EmbedBatch embeds each text through the model, consulting the cache first.
func (p *ONNXProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	coerced := CoerceBlank(texts)
	vectors := make([][]float32, len(coerced))
	for i, text := range coerced {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := p.embedOne(text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *ONNXProvider) embedOne(text string) ([]float32, error) {
	if cached, ok := p.cache.Get(text); ok {
		return cached, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := p.tokenizer.Tokenize(text, p.maxTokens)
	copy(p.inputIDsTensor.GetData(), inputIDs)
	copy(p.attentionMaskTensor.GetData(), attentionMask)
	copy(p.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, p.dimensions)
	copy(vec, p.outputTensor.GetData()[:p.dimensions])
	utils.NormalizeL2(vec)
	p.cache.Set(text, vec)
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (p *ONNXProvider) Dimensions() int {
	return p.dimensions
}

// Close destroys the session and tensors.
func (p *ONNXProvider) Close() error {
	var err error
	if p.session != nil {
		err = p.session.Destroy()
		p.session = nil
	}
	for _, t := range []interface{ Destroy() error }{
		p.inputIDsTensor, p.attentionMaskTensor, p.tokenTypeIDsTensor, p.outputTensor,
	} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	p.inputIDsTensor = nil
	p.attentionMaskTensor = nil
	p.tokenTypeIDsTensor = nil
	p.outputTensor = nil
	return err
}

var _ Provider = (*ONNXProvider)(nil)
