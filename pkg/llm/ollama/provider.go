// Package ollama 提供 Ollama LLM 供应商实现。
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/ragchat/pkg/llm"
	"github.com/kart-io/ragchat/pkg/utils/httpclient"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		EmbedModel: "mxbai-embed-large",
		ChatModel:  "llama3.1",
		Timeout:    120 * time.Second,
		MaxRetries: 0,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	cfg.BaseURL = llm.StringValue(configMap, "base_url", cfg.BaseURL)
	cfg.EmbedModel = llm.StringValue(configMap, "embed_model", cfg.EmbedModel)
	cfg.ChatModel = llm.StringValue(configMap, "chat_model", cfg.ChatModel)
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) url(path string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + path
}

// embedRequest Ollama embed API 请求体，input 为单个字符串。
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为单个文本生成向量嵌入，取响应中的第一个向量。
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := p.client.SendJSON(ctx, http.MethodPost, p.url("/api/embed"), embedRequest{
		Model: p.config.EmbedModel,
		Input: text,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return resp.Embeddings[0], nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
}

// Chat 进行多轮对话，始终关闭流式输出。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if messages == nil {
		messages = []llm.Message{}
	}

	var resp chatResponse
	err := p.client.SendJSON(ctx, http.MethodPost, p.url("/api/chat"), chatRequest{
		Model:    p.config.ChatModel,
		Messages: messages,
		Stream:   false,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	return resp.Message.Content, nil
}

// ListModels 列出可用模型。
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.client.SendJSON(ctx, http.MethodGet, p.url("/api/tags"), nil, &result); err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}
