package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/internal/ragchat/store"
	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/infra/tracing"
	"github.com/kart-io/ragchat/pkg/llm"
	"github.com/kart-io/ragchat/pkg/utils/json"
)

// ContextSeparator joins retrieved chunk texts.
const ContextSeparator = "\n\n"

const tracerName = "ragchat/biz"

// Optimizer rewrites a user message into a retrieval query.
type Optimizer interface {
	Optimize(ctx context.Context, message string, history []llm.Message) (string, error)
}

// OrchestratorConfig 对话编排配置。
type OrchestratorConfig struct {
	// Collection 检索的集合名称。
	Collection string
	// TopK 检索条数。
	TopK int
	// SystemPrompt 固定的系统指令。
	SystemPrompt string
	// SearchTimeout 向量检索超时。
	SearchTimeout time.Duration
	// ChatTimeout 生成调用超时。
	ChatTimeout time.Duration
}

// Orchestrator runs chat turns: retrieval, prompt assembly, generation and
// history bookkeeping.
type Orchestrator struct {
	optimizer Optimizer
	embedder  Embedder
	store     store.VectorStore
	chat      llm.ChatProvider
	config    *OrchestratorConfig
	metrics   *metrics.Metrics
}

// NewOrchestrator creates an Orchestrator. m may be nil.
func NewOrchestrator(
	optimizer Optimizer,
	embedder Embedder,
	vs store.VectorStore,
	chat llm.ChatProvider,
	config *OrchestratorConfig,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		optimizer: optimizer,
		embedder:  embedder,
		store:     vs,
		chat:      chat,
		config:    config,
		metrics:   m,
	}
}

// Respond answers message within sess. On success the history grows by
// the user message and the reply. On any failure the history is unchanged.
func (o *Orchestrator) Respond(ctx context.Context, sess *Session, message string) (reply string, err error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.ErrInvalidRequest.WithMessage("message is required")
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "chat.respond", attribute.String("session.id", sess.ID))

	sess.turn.Lock()
	defer sess.turn.Unlock()
	defer func() {
		sess.setState(StateIdle)
		o.metrics.RecordTurn(err, errors.IsTimeout(err))
		tracing.End(span, err)
	}()

	history := sess.History()

	sess.setState(StateRetrieving)
	docs, err := o.retrieve(ctx, message, history)
	if err != nil {
		logger.Warnw("retrieval failed", "session_id", sess.ID, "error", err.Error())
		return "", err
	}

	messages := BuildChatMessages(history, o.config.SystemPrompt, docs, message)

	// 生成前先记录用户消息，失败时回滚
	sess.append(llm.Message{Role: llm.RoleUser, Content: message})

	sess.setState(StateGenerating)
	reply, err = o.generate(ctx, messages)
	if err != nil {
		sess.truncate(len(history))
		logger.Warnw("generation failed, user message retracted", "session_id", sess.ID, "error", err.Error())
		return "", err
	}

	sess.append(llm.Message{Role: llm.RoleAssistant, Content: reply})
	sess.touch(time.Now())
	return reply, nil
}

// retrieve optimizes the message, embeds the query and joins the hits.
func (o *Orchestrator) retrieve(ctx context.Context, message string, history []llm.Message) (docs string, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "chat.retrieve", attribute.String("collection", o.config.Collection))
	defer func() { tracing.End(span, err) }()

	start := time.Now()

	query, err := o.optimizer.Optimize(ctx, message, history)
	if err != nil {
		o.metrics.RecordRetrieval(time.Since(start), 0, err)
		return "", errors.Wrap(err, errors.ErrRetrieval)
	}

	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		o.metrics.RecordRetrieval(time.Since(start), 0, err)
		return "", errors.Wrap(err, errors.ErrRetrieval)
	}

	searchCtx, cancel := withTimeout(ctx, o.config.SearchTimeout)
	defer cancel()

	hits, err := o.store.Search(searchCtx, o.config.Collection, vec, o.config.TopK)
	if err != nil {
		o.metrics.RecordRetrieval(time.Since(start), 0, err)
		return "", errors.Wrap(err, errors.ErrRetrieval)
	}
	o.metrics.RecordRetrieval(time.Since(start), len(hits), nil)
	span.SetAttributes(attribute.Int("hits", len(hits)))

	logger.Debugw("context retrieved", "query", query, "hits", len(hits))
	return JoinHits(hits), nil
}

func (o *Orchestrator) generate(ctx context.Context, messages []llm.Message) (reply string, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "chat.generate", attribute.Int("messages", len(messages)))
	defer func() { tracing.End(span, err) }()

	ctx, cancel := withTimeout(ctx, o.config.ChatTimeout)
	defer cancel()

	start := time.Now()
	reply, err = o.chat.Chat(ctx, messages)
	o.metrics.RecordGeneration(time.Since(start), err)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrGeneration)
	}
	return reply, nil
}

// JoinHits joins hit texts in ranked order. Hits without text are dropped.
func JoinHits(hits []store.SearchHit) string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Text == "" {
			continue
		}
		texts = append(texts, h.Text)
	}
	return strings.Join(texts, ContextSeparator)
}

// BuildChatMessages assembles the completion prompt: history, the system
// instruction, the retrieved documentation and the user message.
func BuildChatMessages(history []llm.Message, systemPrompt, docs, message string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, history...)
	return append(messages,
		llm.Message{Role: llm.RoleSystem, Content: systemPrompt},
		llm.Message{Role: llm.RoleSystem, Content: "Relevant documentation:\n" + quoteJSON(docs)},
		llm.Message{Role: llm.RoleUser, Content: message},
	)
}

func quoteJSON(s string) string {
	quoted, err := json.Quote(s)
	if err != nil {
		return `""`
	}
	return quoted
}
