package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/llm"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelEmbedder calls an embedding provider and validates its output.
type ModelEmbedder struct {
	provider llm.EmbeddingProvider
	dim      int
	timeout  time.Duration
}

// NewEmbedder creates a ModelEmbedder. dim <= 0 disables the dimension
// check; timeout <= 0 disables the per-call deadline.
func NewEmbedder(provider llm.EmbeddingProvider, dim int, timeout time.Duration) *ModelEmbedder {
	return &ModelEmbedder{
		provider: provider,
		dim:      dim,
		timeout:  timeout,
	}
}

// Embed returns the embedding of text.
func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.ErrEmbedding.WithMessage("embedding input is empty")
	}

	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrEmbedding)
	}
	if len(vec) == 0 {
		return nil, errors.ErrEmbedding.WithMessage("model returned no embedding")
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, errors.ErrEmbedding.WithMessagef("embedding has %d dimensions, expected %d", len(vec), e.dim)
	}
	return vec, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
