package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/pkg/errors"
)

func TestModelEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("返回配置维度的向量", func(t *testing.T) {
		e := NewEmbedder(&fakeEmbedProvider{dim: 1024}, 1024, time.Second)
		vec, err := e.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Len(t, vec, 1024)
	})

	t.Run("空输入明确失败", func(t *testing.T) {
		provider := &fakeEmbedProvider{dim: 4}
		e := NewEmbedder(provider, 4, time.Second)
		for _, in := range []string{"", "  \n\t"} {
			_, err := e.Embed(ctx, in)
			assert.True(t, errors.Is(err, errors.ErrEmbedding))
		}
		assert.Zero(t, provider.calls)
	})

	t.Run("维度不符", func(t *testing.T) {
		e := NewEmbedder(&fakeEmbedProvider{dim: 3}, 1024, time.Second)
		_, err := e.Embed(ctx, "hello")
		assert.True(t, errors.Is(err, errors.ErrEmbedding))
	})

	t.Run("无向量", func(t *testing.T) {
		provider := &fakeEmbedProvider{fn: func(context.Context, string) ([]float32, error) { return nil, nil }}
		_, err := NewEmbedder(provider, 0, time.Second).Embed(ctx, "hello")
		assert.True(t, errors.Is(err, errors.ErrEmbedding))
	})

	t.Run("模型错误", func(t *testing.T) {
		provider := &fakeEmbedProvider{fn: func(context.Context, string) ([]float32, error) { return nil, assert.AnError }}
		_, err := NewEmbedder(provider, 0, time.Second).Embed(ctx, "hello")
		assert.True(t, errors.Is(err, errors.ErrEmbedding))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("超时映射为 ErrTimeout", func(t *testing.T) {
		provider := &fakeEmbedProvider{fn: func(ctx context.Context, _ string) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		_, err := NewEmbedder(provider, 0, 20*time.Millisecond).Embed(ctx, "hello")
		assert.True(t, errors.Is(err, errors.ErrTimeout))
		assert.False(t, errors.Is(err, errors.ErrEmbedding))
	})
}
