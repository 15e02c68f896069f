package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	options "github.com/kart-io/ragchat/pkg/options/tracing"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("默认关闭", func(t *testing.T) {
		p, err := NewProvider(ctx, "ragchat", "test", nil)
		require.NoError(t, err)
		assert.False(t, p.Enabled())
		assert.NoError(t, p.Shutdown(ctx))

		ctx, span := StartSpan(ctx, "test", "noop")
		assert.False(t, span.IsRecording())
		End(span, nil)
		assert.Empty(t, TraceIDFromContext(ctx))
	})

	t.Run("noop 导出器记录 span", func(t *testing.T) {
		opts := options.NewOptions()
		opts.Enabled = true
		opts.ExporterType = options.ExporterNoop
		opts.SamplerType = options.SamplerAlwaysOn

		p, err := NewProvider(ctx, "ragchat", "test", opts)
		require.NoError(t, err)
		defer func() { _ = p.Shutdown(ctx) }()
		assert.True(t, p.Enabled())

		spanCtx, span := StartSpan(ctx, "test", "work", attribute.String("k", "v"))
		assert.True(t, span.IsRecording())
		assert.Len(t, TraceIDFromContext(spanCtx), 32)
		End(span, assert.AnError)
	})

	t.Run("非法导出器", func(t *testing.T) {
		opts := options.NewOptions()
		opts.Enabled = true
		opts.ExporterType = "zipkin"

		_, err := NewProvider(ctx, "ragchat", "test", opts)
		assert.ErrorContains(t, err, "invalid tracing options")
	})
}
