package biz

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/infra/pool"
	"github.com/kart-io/ragchat/pkg/llm"
)

// TurnState is the position of a session in the turn state machine.
type TurnState int32

const (
	StateIdle TurnState = iota
	StateRetrieving
	StateGenerating
)

func (s TurnState) String() string {
	switch s {
	case StateRetrieving:
		return "retrieving"
	case StateGenerating:
		return "generating"
	default:
		return "idle"
	}
}

// Session is one conversation and its chat history.
type Session struct {
	ID        string
	CreatedAt time.Time

	lastActive atomic.Int64
	state      atomic.Int32

	// turn serializes the turns of this session.
	turn sync.Mutex

	mu      sync.RWMutex
	history []llm.Message
}

func newSession(now time.Time) *Session {
	s := &Session{
		ID:        ulid.Make().String(),
		CreatedAt: now,
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// History returns a copy of the chat history.
func (s *Session) History() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// LastActive returns the time of the last access.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// State returns the current turn state.
func (s *Session) State() TurnState {
	return TurnState(s.state.Load())
}

func (s *Session) setState(st TurnState) {
	s.state.Store(int32(st))
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *Session) append(msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
}

// truncate drops every message after the first n.
func (s *Session) truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < len(s.history) {
		s.history = s.history[:n]
	}
}

// SessionConfig 会话管理配置。
type SessionConfig struct {
	// IdleTTL 空闲超时，0 表示不回收。
	IdleTTL time.Duration
	// MaxSessions 会话上限，0 表示不限制。
	MaxSessions int
	// JanitorInterval 回收扫描间隔。
	JanitorInterval time.Duration
}

// SessionManager owns the sessions of the process.
type SessionManager struct {
	cfg  SessionConfig
	pool *pool.Pool
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionManager creates a SessionManager. When cfg.IdleTTL and
// cfg.JanitorInterval are positive a janitor evicts idle sessions, running
// each sweep on bg (inline when bg is nil).
func NewSessionManager(cfg SessionConfig, bg *pool.Pool) *SessionManager {
	m := &SessionManager{
		cfg:      cfg,
		pool:     bg,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.IdleTTL > 0 && cfg.JanitorInterval > 0 {
		go m.janitor()
	} else {
		close(m.done)
	}
	return m
}

// Create starts a new session. When the cap is reached the least recently
// active session is evicted first.
func (m *SessionManager) Create() *Session {
	s := newSession(m.now())

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 {
		for len(m.sessions) >= m.cfg.MaxSessions {
			if !m.evictOldestLocked() {
				break
			}
		}
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.Debugw("session created", "session_id", s.ID)
	return s
}

// Get returns the session with id and marks it active.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.ErrSessionNotFound.WithMessagef("session %s not found", id)
	}
	s.touch(m.now())
	return s, nil
}

// Evict removes the session with id and reports whether it existed.
func (m *SessionManager) Evict(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	logger.Debugw("session evicted", "session_id", id)
	return true
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle removes sessions idle for longer than the TTL and returns how
// many were removed. Sessions in the middle of a turn are kept.
func (m *SessionManager) EvictIdle() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	deadline := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if !s.LastActive().Before(deadline) {
			continue
		}
		if !s.turn.TryLock() {
			continue
		}
		delete(m.sessions, id)
		s.turn.Unlock()
		evicted++
	}

	if evicted > 0 {
		logger.Infow("idle sessions evicted", "count", evicted, "remaining", len(m.sessions))
	}
	return evicted
}

// Close stops the janitor. Sessions stay readable.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

// evictOldestLocked removes the least recently active session that is not
// mid-turn. It reports false when every session is busy; the cap is then
// exceeded until a turn finishes.
func (m *SessionManager) evictOldestLocked() bool {
	busy := make(map[string]struct{})
	for {
		var oldest *Session
		for id, s := range m.sessions {
			if _, ok := busy[id]; ok {
				continue
			}
			if oldest == nil || s.LastActive().Before(oldest.LastActive()) {
				oldest = s
			}
		}
		if oldest == nil {
			return false
		}
		if !oldest.turn.TryLock() {
			busy[oldest.ID] = struct{}{}
			continue
		}
		delete(m.sessions, oldest.ID)
		oldest.turn.Unlock()
		logger.Infow("session cap reached, evicted oldest session",
			"session_id", oldest.ID,
			"max_sessions", m.cfg.MaxSessions,
		)
		return true
	}
}

func (m *SessionManager) janitor() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *SessionManager) sweep() {
	if m.pool == nil {
		m.EvictIdle()
		return
	}
	if err := m.pool.Submit(func() { m.EvictIdle() }); err != nil {
		logger.Warnw("failed to schedule session sweep", "error", err.Error())
	}
}
