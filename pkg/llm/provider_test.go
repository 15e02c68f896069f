package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "mock response", nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		return &mockProvider{name: StringValue(config, "name", "test-provider")}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())

	embedder, err := NewEmbeddingProvider("test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-provider", embedder.Name())

	chat, err := NewChatProvider("test-provider", nil)
	require.NoError(t, err)
	reply, err := chat.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "mock response", reply)

	assert.Contains(t, ListProviders(), "test-provider")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	assert.Error(t, err)

	_, err = NewEmbeddingProvider("unknown-provider", nil)
	assert.ErrorContains(t, err, "embedding")
}

func TestStringValue(t *testing.T) {
	cfg := map[string]any{"a": "x", "b": "", "c": 3}
	assert.Equal(t, "x", StringValue(cfg, "a", "def"))
	assert.Equal(t, "def", StringValue(cfg, "b", "def"))
	assert.Equal(t, "def", StringValue(cfg, "c", "def"))
	assert.Equal(t, "def", StringValue(nil, "a", "def"))
}
