package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/llm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	chat := &fakeChat{fn: func(_ context.Context, messages []llm.Message) (string, error) {
		if isOptimizeRequest(messages) {
			return "golang channels", nil
		}
		return "reply", nil
	}}
	embedder := NewEmbedder(&fakeEmbedProvider{dim: 8}, 8, time.Second)
	vs := newMemoryStore(t)
	m := metrics.New()

	sessions := NewSessionManager(SessionConfig{}, nil)
	t.Cleanup(sessions.Close)

	orch := NewOrchestrator(NewQueryOptimizer(chat, time.Second), embedder, vs, chat, &OrchestratorConfig{
		Collection:   testCollection,
		TopK:         5,
		SystemPrompt: "system",
	}, m)
	ix := NewIndexer(vs, embedder, &IndexerConfig{ChunkSize: 100, Collection: testCollection, EmbeddingDim: 8}, nil, m)

	return NewService(sessions, orch, ix, vs, testCollection, m)
}

func TestServiceChat(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("未指定会话时自动创建", func(t *testing.T) {
		res, err := svc.Chat(ctx, "", "hello")
		require.NoError(t, err)
		assert.Equal(t, "reply", res.Reply)
		assert.NotEmpty(t, res.SessionID)

		view, err := svc.GetSession(res.SessionID)
		require.NoError(t, err)
		assert.Len(t, view.Messages, 2)
		assert.Equal(t, "idle", view.State)
	})

	t.Run("指定已有会话", func(t *testing.T) {
		view := svc.CreateSession()
		res, err := svc.Chat(ctx, view.SessionID, "hello")
		require.NoError(t, err)
		assert.Equal(t, view.SessionID, res.SessionID)
	})

	t.Run("会话不存在", func(t *testing.T) {
		_, err := svc.Chat(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", "hello")
		assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
	})

	t.Run("删除会话", func(t *testing.T) {
		view := svc.CreateSession()
		require.NoError(t, svc.DeleteSession(view.SessionID))
		assert.True(t, errors.Is(svc.DeleteSession(view.SessionID), errors.ErrSessionNotFound))
	})
}

func TestServiceIngestAndStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.Ingest(ctx, "notes.txt", strings.Repeat("go ", 70))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chromem", stats.Backend)
	assert.Equal(t, testCollection, stats.Collection)
	assert.Equal(t, int64(3), stats.Points)
	assert.Equal(t, []string{testCollection}, stats.Collections)
	assert.Equal(t, uint64(1), stats.Metrics.DocumentsIngested)
}
