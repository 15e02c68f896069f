// Package rag provides retrieval and chat pipeline configuration options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains RAG-specific configuration.
type Options struct {
	// ChunkSize is the size of text chunks in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the name of the vector store collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// SystemPrompt is the fixed system instruction sent with every turn.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// IngestWorkers 大于 1 时分块在 ants 协程池上并发入库。
	IngestWorkers int `json:"ingest-workers" mapstructure:"ingest-workers"`

	// Session 会话配置。
	Session *SessionOptions `json:"session" mapstructure:"session"`

	// Timeouts 各外部调用的超时时间。
	Timeouts *TimeoutOptions `json:"timeouts" mapstructure:"timeouts"`
}

// SessionOptions 会话生命周期配置。
type SessionOptions struct {
	// IdleTTL 会话空闲超过该时长后被回收，0 表示不回收。
	IdleTTL time.Duration `json:"idle-ttl" mapstructure:"idle-ttl"`

	// MaxSessions 会话数上限，0 表示不限制。
	MaxSessions int `json:"max-sessions" mapstructure:"max-sessions"`

	// JanitorInterval 空闲回收的扫描间隔。
	JanitorInterval time.Duration `json:"janitor-interval" mapstructure:"janitor-interval"`
}

// TimeoutOptions 外部调用超时配置。
type TimeoutOptions struct {
	Optimize time.Duration `json:"optimize" mapstructure:"optimize"`
	Embed    time.Duration `json:"embed" mapstructure:"embed"`
	Search   time.Duration `json:"search" mapstructure:"search"`
	Chat     time.Duration `json:"chat" mapstructure:"chat"`
}

// DefaultSystemPrompt is the default system instruction for chat turns.
const DefaultSystemPrompt = `You're a helpful and intelligent RAG llm assistant that can answer questions. You have access to detailed documentation.

When responding:
- Reference documentation if needed.
- Respond conversationally.
- Be helpful.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:     100,
		TopK:          5,
		Collection:    "pdf-storage",
		EmbeddingDim:  1024, // mxbai-embed-large dimension
		SystemPrompt:  DefaultSystemPrompt,
		IngestWorkers: 1,
		Session: &SessionOptions{
			IdleTTL:         30 * time.Minute,
			MaxSessions:     1000,
			JanitorInterval: time.Minute,
		},
		Timeouts: &TimeoutOptions{
			Optimize: 60 * time.Second,
			Embed:    30 * time.Second,
			Search:   10 * time.Second,
			Chat:     120 * time.Second,
		},
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Size of text chunks in characters.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of results from similarity search.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector store collection name.")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System instruction sent with every chat turn.")
	fs.IntVar(&o.IngestWorkers, p+"ingest-workers", o.IngestWorkers, "Concurrent chunk ingestion workers (1 = sequential).")

	if o.Session == nil {
		o.Session = NewOptions().Session
	}
	fs.DurationVar(&o.Session.IdleTTL, p+"session.idle-ttl", o.Session.IdleTTL, "Evict sessions idle for longer than this (0 disables).")
	fs.IntVar(&o.Session.MaxSessions, p+"session.max-sessions", o.Session.MaxSessions, "Maximum live sessions (0 = unlimited).")
	fs.DurationVar(&o.Session.JanitorInterval, p+"session.janitor-interval", o.Session.JanitorInterval, "Idle session scan interval.")

	if o.Timeouts == nil {
		o.Timeouts = NewOptions().Timeouts
	}
	fs.DurationVar(&o.Timeouts.Optimize, p+"timeouts.optimize", o.Timeouts.Optimize, "Query optimizer call timeout.")
	fs.DurationVar(&o.Timeouts.Embed, p+"timeouts.embed", o.Timeouts.Embed, "Embedding call timeout.")
	fs.DurationVar(&o.Timeouts.Search, p+"timeouts.search", o.Timeouts.Search, "Vector store call timeout.")
	fs.DurationVar(&o.Timeouts.Chat, p+"timeouts.chat", o.Timeouts.Chat, "Chat completion call timeout.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("rag.embedding-dim must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required"))
	}
	if o.IngestWorkers <= 0 {
		errs = append(errs, fmt.Errorf("rag.ingest-workers must be positive"))
	}
	if o.Session != nil && o.Session.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("rag.session.max-sessions must not be negative"))
	}
	if t := o.Timeouts; t != nil {
		if t.Optimize <= 0 || t.Embed <= 0 || t.Search <= 0 || t.Chat <= 0 {
			errs = append(errs, fmt.Errorf("rag.timeouts.* must be positive"))
		}
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	defaults := NewOptions()
	if o.Session == nil {
		o.Session = defaults.Session
	}
	if o.Session.JanitorInterval <= 0 {
		o.Session.JanitorInterval = defaults.Session.JanitorInterval
	}
	if o.Timeouts == nil {
		o.Timeouts = defaults.Timeouts
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}
