package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/kart-io/ragchat/pkg/llm"
)

type fakeModel struct {
	got   []llms.MessageContent
	reply string
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return f.vec, nil
}

func TestProviderChat(t *testing.T) {
	model := &fakeModel{reply: "answer"}
	p := New("test", model, &fakeEmbedder{})

	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, Content: "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)

	require.Len(t, model.got, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.got[2].Role)
	assert.Equal(t, llms.TextContent{Text: "q"}, model.got[1].Parts[0])

	model.err = errors.New("down")
	_, err = p.Chat(context.Background(), nil)
	assert.Error(t, err)
}

func TestProviderEmbed(t *testing.T) {
	p := New("test", &fakeModel{}, &fakeEmbedder{vec: []float32{1, 2}})
	vec, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	p = New("test", &fakeModel{}, &fakeEmbedder{})
	_, err = p.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	names := llm.ListProviders()
	assert.Contains(t, names, OllamaProviderName)
	assert.Contains(t, names, OpenAIProviderName)

	p, err := llm.NewProvider(OllamaProviderName, map[string]any{"base_url": "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Equal(t, OllamaProviderName, p.Name())
}
