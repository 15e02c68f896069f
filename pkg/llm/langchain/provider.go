// Package langchain 基于 langchaingo 实现 LLM 供应商。
//
// 注册两个供应商：
//   - langchain-ollama: 通过 langchaingo 的 Ollama 客户端访问本地模型
//   - openai: 任意 OpenAI 兼容接口（OpenAI、vLLM、LocalAI 等）
package langchain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kart-io/ragchat/pkg/llm"
)

const (
	OllamaProviderName = "langchain-ollama"
	OpenAIProviderName = "openai"
)

func init() {
	llm.RegisterProvider(OllamaProviderName, NewOllamaProvider)
	llm.RegisterProvider(OpenAIProviderName, NewOpenAIProvider)
}

// Provider 将 langchaingo 的 Model 与 Embedder 适配为 llm.Provider。
type Provider struct {
	name     string
	chat     llms.Model
	embedder embeddings.Embedder
}

var _ llm.Provider = (*Provider)(nil)

// New 使用已构建好的 langchaingo 组件创建供应商。
func New(name string, chat llms.Model, embedder embeddings.Embedder) *Provider {
	return &Provider{name: name, chat: chat, embedder: embedder}
}

// NewOllamaProvider 从配置 map 创建基于 langchaingo 的 Ollama 供应商。
// Ollama 客户端绑定单一模型，因此 Embedding 与 Chat 各用一个客户端。
func NewOllamaProvider(cfg map[string]any) (llm.Provider, error) {
	baseURL := llm.StringValue(cfg, "base_url", "http://localhost:11434")
	httpClient := &http.Client{Timeout: timeout(cfg)}

	chat, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(llm.StringValue(cfg, "chat_model", "llama3.1")),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 Ollama 对话客户端失败: %w", err)
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(llm.StringValue(cfg, "embed_model", "mxbai-embed-large")),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 Ollama 嵌入客户端失败: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(embedClient)
	if err != nil {
		return nil, fmt.Errorf("创建 Embedder 失败: %w", err)
	}
	return New(OllamaProviderName, chat, embedder), nil
}

// NewOpenAIProvider 从配置 map 创建 OpenAI 兼容供应商。
func NewOpenAIProvider(cfg map[string]any) (llm.Provider, error) {
	opts := []openai.Option{
		openai.WithModel(llm.StringValue(cfg, "chat_model", "gpt-4o-mini")),
		openai.WithEmbeddingModel(llm.StringValue(cfg, "embed_model", "text-embedding-3-small")),
		openai.WithHTTPClient(&http.Client{Timeout: timeout(cfg)}),
	}
	if v := llm.StringValue(cfg, "base_url", ""); v != "" {
		opts = append(opts, openai.WithBaseURL(v))
	}
	if v := llm.StringValue(cfg, "api_key", ""); v != "" {
		opts = append(opts, openai.WithToken(v))
	}
	if v := llm.StringValue(cfg, "organization", ""); v != "" {
		opts = append(opts, openai.WithOrganization(v))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI 客户端失败: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("创建 Embedder 失败: %w", err)
	}
	return New(OpenAIProviderName, client, embedder), nil
}

func timeout(cfg map[string]any) time.Duration {
	if v, ok := cfg["timeout"].(time.Duration); ok && v > 0 {
		return v
	}
	return 120 * time.Second
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.name
}

// Embed 为单个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return vec, nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	resp, err := p.chat.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("未返回对话结果")
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(role llm.Role) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
