package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/internal/ragchat/store"
	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/llm"
)

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// SessionView describes a session for API clients.
type SessionView struct {
	SessionID  string        `json:"session_id"`
	CreatedAt  time.Time     `json:"created_at"`
	LastActive time.Time     `json:"last_active"`
	State      string        `json:"state"`
	Messages   []llm.Message `json:"messages"`
}

// Stats is the service overview returned by the stats endpoint.
type Stats struct {
	Backend     string           `json:"backend"`
	Collection  string           `json:"collection"`
	Points      int64            `json:"points"`
	Collections []string         `json:"collections"`
	Sessions    int              `json:"sessions"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// Service 组合会话、编排和入库，供 HTTP 层调用。
type Service struct {
	sessions     *SessionManager
	orchestrator *Orchestrator
	indexer      *Indexer
	store        store.VectorStore
	collection   string
	metrics      *metrics.Metrics
}

// NewService 创建服务实例。
func NewService(
	sessions *SessionManager,
	orchestrator *Orchestrator,
	indexer *Indexer,
	vs store.VectorStore,
	collection string,
	m *metrics.Metrics,
) *Service {
	return &Service{
		sessions:     sessions,
		orchestrator: orchestrator,
		indexer:      indexer,
		store:        vs,
		collection:   collection,
		metrics:      m,
	}
}

// CreateSession starts a new conversation.
func (s *Service) CreateSession() *SessionView {
	return viewOf(s.sessions.Create())
}

// DeleteSession ends a conversation.
func (s *Service) DeleteSession(id string) error {
	if !s.sessions.Evict(id) {
		return errors.ErrSessionNotFound.WithMessagef("session %s not found", id)
	}
	return nil
}

// GetSession returns the session with its history.
func (s *Service) GetSession(id string) (*SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// Chat runs one turn. An empty sessionID starts a new session.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	var (
		sess *Session
		err  error
	)
	if sessionID == "" {
		sess = s.sessions.Create()
	} else if sess, err = s.sessions.Get(sessionID); err != nil {
		return nil, err
	}

	logger.Infow("chat turn", "session_id", sess.ID, "message_length", len(message))

	reply, err := s.orchestrator.Respond(ctx, sess, message)
	if err != nil {
		return nil, err
	}
	return &ChatResult{SessionID: sess.ID, Reply: reply}, nil
}

// Ingest stores a document.
func (s *Service) Ingest(ctx context.Context, source, text string) (*IngestReport, error) {
	return s.indexer.Ingest(ctx, source, text)
}

// Stats returns the service overview.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.store.Count(ctx, s.collection)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Backend:     s.store.Name(),
		Collection:  s.collection,
		Points:      points,
		Collections: names,
		Sessions:    s.sessions.Len(),
		Metrics:     s.metrics.Snapshot(),
	}, nil
}

// Metrics returns the metrics collector.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

func viewOf(sess *Session) *SessionView {
	return &SessionView{
		SessionID:  sess.ID,
		CreatedAt:  sess.CreatedAt,
		LastActive: sess.LastActive(),
		State:      sess.State().String(),
		Messages:   sess.History(),
	}
}
