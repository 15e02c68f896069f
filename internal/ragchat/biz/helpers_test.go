package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/internal/ragchat/store"
	"github.com/kart-io/ragchat/pkg/llm"
)

// fakeChat replies through fn and records every request.
type fakeChat struct {
	mu    sync.Mutex
	calls [][]llm.Message
	fn    func(ctx context.Context, messages []llm.Message) (string, error)
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	f.mu.Unlock()
	if f.fn == nil {
		return "ok", nil
	}
	return f.fn(ctx, messages)
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// isOptimizeRequest reports whether messages is a query optimization call.
func isOptimizeRequest(messages []llm.Message) bool {
	last := messages[len(messages)-1]
	return strings.Contains(last.Content, "<message>")
}

// fakeEmbedProvider maps text to a deterministic vector.
type fakeEmbedProvider struct {
	mu    sync.Mutex
	calls int
	dim   int
	fn    func(ctx context.Context, text string) ([]float32, error)
}

func (f *fakeEmbedProvider) Name() string { return "fake" }

func (f *fakeEmbedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, text)
	}
	return hashVector(text, f.dim), nil
}

// hashVector returns a vector that depends only on text.
func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for i, r := range text {
		vec[i%dim] += float32(r%31) + 1
	}
	return vec
}

// mapEmbedder embeds known texts from a table.
type mapEmbedder map[string][]float32

func (m mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := m[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func newMemoryStore(t *testing.T) store.VectorStore {
	t.Helper()
	vs, err := store.NewChromemStore(nil)
	require.NoError(t, err)
	return vs
}
