package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragchat/pkg/errors"
	qdrantopts "github.com/kart-io/ragchat/pkg/options/qdrant"
	"github.com/kart-io/ragchat/pkg/utils/json"
)

// fakeQdrant records requests and serves canned responses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]bool
	requests    []string
	apiKeys     []string
	lastBody    map[string]any
	searchCode  int
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	f.lastBody = nil
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &f.lastBody)
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections":
		cols := []map[string]string{}
		for name := range f.collections {
			cols = append(cols, map[string]string{"name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"collections": cols}})
	case r.Method == http.MethodPut && r.URL.Path == "/collections/pdf-storage":
		f.collections["pdf-storage"] = true
		_, _ = w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/pdf-storage/points":
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/pdf-storage/points/search":
		if f.searchCode != 0 {
			w.WriteHeader(f.searchCode)
			_, _ = w.Write([]byte(`{"status":{"error":"boom"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":[{"id":"1","score":0.99,"payload":{"text":"first"}},{"id":"2","score":0.5,"payload":{"text":"second"}}]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/pdf-storage/points/count":
		_, _ = w.Write([]byte(`{"result":{"count":7}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
	}
}

func newTestQdrant(t *testing.T) (*QdrantStore, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{collections: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	opts := qdrantopts.NewOptions()
	opts.URL = srv.URL + "/"
	opts.APIKey = "secret"
	return NewQdrantStore(opts), fake
}

func TestQdrantEnsureCollection(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestQdrant(t)

	require.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 1024, MetricCosine))
	require.NoError(t, s.EnsureCollection(ctx, "pdf-storage", 1024, MetricCosine))

	assert.Equal(t, []string{
		"GET /collections",
		"PUT /collections/pdf-storage",
		"GET /collections",
	}, fake.requests)
	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}
}

func TestQdrantUpsert(t *testing.T) {
	s, fake := newTestQdrant(t)

	err := s.Upsert(context.Background(), "pdf-storage", []Point{{ID: "p1", Vector: []float32{0.5}, Text: "chunk"}})
	require.NoError(t, err)
	assert.Equal(t, "PUT /collections/pdf-storage/points?wait=true", fake.requests[0])

	points, ok := fake.lastBody["points"].([]any)
	require.True(t, ok)
	require.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, "p1", point["id"])
	assert.Equal(t, map[string]any{"text": "chunk"}, point["payload"])
}

func TestQdrantSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("返回排序结果", func(t *testing.T) {
		s, fake := newTestQdrant(t)
		hits, err := s.Search(ctx, "pdf-storage", []float32{0.1}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "first", hits[0].Text)
		assert.InDelta(t, 0.99, hits[0].Score, 1e-6)
		assert.Equal(t, float64(5), fake.lastBody["limit"])
		assert.Equal(t, true, fake.lastBody["with_payload"])
	})

	t.Run("集合不存在返回空", func(t *testing.T) {
		s, _ := newTestQdrant(t)
		hits, err := s.Search(ctx, "missing", []float32{0.1}, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("服务错误不重试", func(t *testing.T) {
		s, fake := newTestQdrant(t)
		fake.searchCode = http.StatusInternalServerError
		_, err := s.Search(ctx, "pdf-storage", []float32{0.1}, 5)
		assert.True(t, errors.Is(err, errors.ErrStoreUnavailable))
		assert.Len(t, fake.requests, 1)
	})

	t.Run("客户端错误映射为非法请求", func(t *testing.T) {
		tests := []struct {
			code int
			want *errors.Errno
		}{
			{http.StatusBadRequest, errors.ErrInvalidRequest},
			{http.StatusUnprocessableEntity, errors.ErrInvalidRequest},
			{http.StatusTooManyRequests, errors.ErrStoreUnavailable},
			{http.StatusServiceUnavailable, errors.ErrStoreUnavailable},
		}
		for _, tt := range tests {
			s, fake := newTestQdrant(t)
			fake.searchCode = tt.code
			_, err := s.Search(ctx, "pdf-storage", []float32{0.1}, 5)
			assert.True(t, errors.Is(err, tt.want), "status %d: %v", tt.code, err)
		}
	})
}

func TestQdrantCount(t *testing.T) {
	s, _ := newTestQdrant(t)

	n, err := s.Count(context.Background(), "pdf-storage")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = s.Count(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQdrantUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	opts := qdrantopts.NewOptions()
	opts.URL = srv.URL
	s := NewQdrantStore(opts)

	_, err := s.ListCollections(context.Background())
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable))
}
