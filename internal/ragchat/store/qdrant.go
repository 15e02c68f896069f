package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kart-io/ragchat/pkg/errors"
	qdrantopts "github.com/kart-io/ragchat/pkg/options/qdrant"
	"github.com/kart-io/ragchat/pkg/utils/httpclient"
)

// QdrantStore 通过 REST API 访问 Qdrant。
type QdrantStore struct {
	baseURL string
	client  *httpclient.Client
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore creates a Qdrant REST store. Requests are never retried.
func NewQdrantStore(opts *qdrantopts.Options) *QdrantStore {
	if opts == nil {
		opts = qdrantopts.NewOptions()
	}
	return &QdrantStore{
		baseURL: strings.TrimRight(opts.URL, "/"),
		client:  httpclient.NewClient(opts.Timeout, 0).WithHeader("api-key", opts.APIKey),
	}
}

type qdrantCollectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

type qdrantSearchResponse struct {
	Result []struct {
		Score   float32        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

type qdrantCountResponse struct {
	Result struct {
		Count int64 `json:"count"`
	} `json:"result"`
}

// Name implements VectorStore.
func (s *QdrantStore) Name() string { return "qdrant" }

func (s *QdrantStore) collectionURL(name string, parts ...string) string {
	return s.baseURL + "/collections/" + url.PathEscape(name) + strings.Join(parts, "")
}

// EnsureCollection implements VectorStore.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int, metric Metric) error {
	if err := checkMetric(metric); err != nil {
		return err
	}

	names, err := s.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	if err := s.client.SendJSON(ctx, http.MethodPut, s.collectionURL(name), body, nil); err != nil {
		return qdrantError(fmt.Errorf("create collection %s: %w", name, err))
	}
	return nil
}

// Upsert implements VectorStore.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	items := make([]map[string]any, len(points))
	for i, p := range points {
		items[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": map[string]any{PayloadText: p.Text},
		}
	}

	body := map[string]any{"points": items}
	if err := s.client.SendJSON(ctx, http.MethodPut, s.collectionURL(collection, "/points?wait=true"), body, nil); err != nil {
		return qdrantError(fmt.Errorf("upsert into %s: %w", collection, err))
	}
	return nil
}

// Search implements VectorStore. 集合不存在 (404) 时返回空结果。
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchHit, error) {
	if k <= 0 {
		return []SearchHit{}, nil
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}

	var resp qdrantSearchResponse
	if err := s.client.SendJSON(ctx, http.MethodPost, s.collectionURL(collection, "/points/search"), body, &resp); err != nil {
		if isNotFound(err) {
			return []SearchHit{}, nil
		}
		return nil, qdrantError(fmt.Errorf("search %s: %w", collection, err))
	}

	hits := make([]SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		text, _ := r.Payload[PayloadText].(string)
		hits = append(hits, SearchHit{Score: r.Score, Text: text})
	}
	return hits, nil
}

// ListCollections implements VectorStore.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	var resp qdrantCollectionsResponse
	if err := s.client.SendJSON(ctx, http.MethodGet, s.baseURL+"/collections", nil, &resp); err != nil {
		return nil, qdrantError(fmt.Errorf("list collections: %w", err))
	}

	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// Count implements VectorStore.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int64, error) {
	var resp qdrantCountResponse
	body := map[string]any{"exact": true}
	if err := s.client.SendJSON(ctx, http.MethodPost, s.collectionURL(collection, "/points/count"), body, &resp); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, qdrantError(fmt.Errorf("count %s: %w", collection, err))
	}
	return resp.Result.Count, nil
}

// Close implements VectorStore.
func (s *QdrantStore) Close(_ context.Context) error {
	return nil
}

// qdrantError classifies a failed request. Client errors such as a vector
// size mismatch become ErrInvalidRequest since repeating them cannot succeed;
// 404 is handled by the callers, 408 and 429 stay retryable.
func qdrantError(err error) error {
	var statusErr *httpclient.StatusError
	if stderrors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
			return errors.ErrInvalidRequest.WithCause(err)
		}
	}
	return unavailable(err)
}

func isNotFound(err error) bool {
	var statusErr *httpclient.StatusError
	return stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
