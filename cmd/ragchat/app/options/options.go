// Package options contains flags and options for initializing the ragchat server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/ragchat/internal/ragchat"
	"github.com/kart-io/ragchat/pkg/app/cliflag"
	cacheopts "github.com/kart-io/ragchat/pkg/options/cache"
	httpopts "github.com/kart-io/ragchat/pkg/options/http"
	llmopts "github.com/kart-io/ragchat/pkg/options/llm"
	logopts "github.com/kart-io/ragchat/pkg/options/logger"
	ragopts "github.com/kart-io/ragchat/pkg/options/rag"
	storeopts "github.com/kart-io/ragchat/pkg/options/store"
	tracingopts "github.com/kart-io/ragchat/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server and middleware configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains chunking, retrieval and session configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// StoreOptions selects and configures the vector store backend.
	StoreOptions *storeopts.Options `json:"store" mapstructure:"store"`

	// CacheOptions contains embedding cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// TracingOptions contains OpenTelemetry tracing configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		StoreOptions:     storeopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)

	if o.HTTPOptions.WriteTimeout > 0 && o.RAGOptions.Timeouts != nil &&
		o.HTTPOptions.WriteTimeout <= o.RAGOptions.Timeouts.Chat {
		errs = append(errs, fmt.Errorf("http.write-timeout must exceed rag.timeouts.chat"))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragchat.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragchat.Config, error) {
	return &ragchat.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		StoreOptions:     o.StoreOptions,
		CacheOptions:     o.CacheOptions,
		TracingOptions:   o.TracingOptions,
	}, nil
}
