// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, langchain-ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数，默认 0 即不重试。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// name 用于区分 flag 前缀，如 "embedding" 或 "chat"。
	name string
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Timeout:  120 * time.Second,
		name:     name,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions("embedding")
	opts.Model = "mxbai-embed-large"
	opts.Timeout = 30 * time.Second
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions("chat")
	opts.Model = "llama3.1"
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(append([]string{}, prefixes...), o.name)...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (ollama, langchain-ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM per-call timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", o.name))
	}
	if o.BaseURL == "" && o.Provider != "openai" {
		errs = append(errs, fmt.Errorf("%s.base-url is required", o.name))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.name))
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for openai provider", o.name))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.name))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s.max-retries must not be negative", o.name))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}
