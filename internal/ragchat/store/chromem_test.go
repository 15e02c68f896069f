package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/pkg/errors"
	chromemopts "github.com/kart-io/ragchat/pkg/options/chromem"
	storeopts "github.com/kart-io/ragchat/pkg/options/store"
)

func newTestChromem(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(chromemopts.NewOptions())
	require.NoError(t, err)
	return s
}

func TestChromemEnsureCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestChromem(t)

	require.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 3, MetricCosine))
	require.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 3, MetricCosine))

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pdf-storage"}, names)

	err = s.EnsureCollection(ctx, "other", 3, Metric("l2"))
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestChromemConcurrentEnsureKeepsPoints(t *testing.T) {
	ctx := context.Background()
	s := newTestChromem(t)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 3, MetricCosine))
			assert.NoError(t, s.Upsert(ctx, "pdf-storage", []Point{
				{ID: NewPointID(), Vector: []float32{1, 0, 0}, Text: "chunk"},
			}))
		}()
	}
	wg.Wait()

	hits, err := s.Search(ctx, "pdf-storage", []float32{1, 0, 0}, workers*2)
	require.NoError(t, err)
	assert.Len(t, hits, workers)
}

func TestChromemUpsertSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestChromem(t)
	require.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 3, MetricCosine))

	points := []Point{
		{ID: NewPointID(), Vector: []float32{1, 0, 0}, Text: "alpha"},
		{ID: NewPointID(), Vector: []float32{0, 1, 0}, Text: "beta"},
		{ID: NewPointID(), Vector: []float32{0.7, 0.7, 0}, Text: "gamma"},
	}
	require.NoError(t, s.Upsert(ctx, "pdf-storage", points))

	t.Run("相同向量排第一", func(t *testing.T) {
		hits, err := s.Search(ctx, "pdf-storage", []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "alpha", hits[0].Text)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
		assert.Equal(t, "gamma", hits[1].Text)
		assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
	})

	t.Run("k 小于文档数", func(t *testing.T) {
		hits, err := s.Search(ctx, "pdf-storage", []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "beta", hits[0].Text)
	})

	t.Run("相同 ID 覆盖", func(t *testing.T) {
		id := points[1].ID
		require.NoError(t, s.Upsert(ctx, "pdf-storage", []Point{{ID: id, Vector: []float32{0, 1, 0}, Text: "beta-v2"}}))

		n, err := s.Count(ctx, "pdf-storage")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		hits, err := s.Search(ctx, "pdf-storage", []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, "beta-v2", hits[0].Text)
	})
}

func TestChromemEmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestChromem(t)

	hits, err := s.Search(ctx, "missing", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := s.Count(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.EnsureCollection(ctx, "empty", 3, MetricCosine))
	hits, err = s.Search(ctx, "empty", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	err = s.Upsert(ctx, "missing", []Point{{ID: "1", Vector: []float32{1, 0, 0}, Text: "x"}})
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable))
}

func TestChromemPersistent(t *testing.T) {
	ctx := context.Background()
	opts := &chromemopts.Options{Path: t.TempDir()}

	s, err := NewChromemStore(opts)
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 2, MetricCosine))
	require.NoError(t, s.Upsert(ctx, "pdf-storage", []Point{{ID: "a", Vector: []float32{1, 0}, Text: "persisted"}}))

	reopened, err := NewChromemStore(opts)
	require.NoError(t, err)
	n, err := reopened.Count(ctx, "pdf-storage")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewBackends(t *testing.T) {
	opts := storeopts.NewOptions()

	vs, err := New(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "chromem", vs.Name())

	opts.Backend = storeopts.BackendQdrant
	vs, err = New(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "qdrant", vs.Name())

	opts.Backend = "faiss"
	_, err = New(context.Background(), opts)
	assert.Error(t, err)
}

func TestAsClient(t *testing.T) {
	c := AsClient(newTestChromem(t))
	assert.Equal(t, "chromem", c.Name())
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
