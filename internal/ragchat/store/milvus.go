package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/ragchat/pkg/component/milvus"
	milvusopts "github.com/kart-io/ragchat/pkg/options/milvus"
)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore connects to Milvus.
func NewMilvusStore(ctx context.Context, opts *milvusopts.Options) (*MilvusStore, error) {
	client, err := milvus.New(ctx, opts)
	if err != nil {
		return nil, unavailable(err)
	}
	return &MilvusStore{client: client}, nil
}

// Name implements VectorStore.
func (s *MilvusStore) Name() string { return "milvus" }

// EnsureCollection implements VectorStore.
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, vectorSize int, metric Metric) error {
	if err := checkMetric(metric); err != nil {
		return err
	}
	if err := s.client.EnsureCollection(ctx, name, vectorSize, entity.COSINE); err != nil {
		return unavailable(err)
	}
	return nil
}

// Upsert implements VectorStore.
func (s *MilvusStore) Upsert(ctx context.Context, collection string, points []Point) error {
	rows := make([]milvus.Row, len(points))
	for i, p := range points {
		rows[i] = milvus.Row{ID: p.ID, Embedding: p.Vector, Text: p.Text}
	}
	if err := s.client.Upsert(ctx, collection, rows); err != nil {
		return unavailable(err)
	}
	return nil
}

// Search implements VectorStore.
func (s *MilvusStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchHit, error) {
	if k <= 0 {
		return []SearchHit{}, nil
	}

	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, unavailable(err)
	}
	if !exists {
		return []SearchHit{}, nil
	}

	results, err := s.client.Search(ctx, collection, vector, k)
	if err != nil {
		return nil, unavailable(err)
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{Score: r.Score, Text: r.Text}
	}
	return hits, nil
}

// ListCollections implements VectorStore.
func (s *MilvusStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return names, nil
}

// Count implements VectorStore.
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return 0, unavailable(err)
	}
	if !exists {
		return 0, nil
	}

	n, err := s.client.Count(ctx, collection)
	if err != nil {
		return 0, unavailable(fmt.Errorf("count %s: %w", collection, err))
	}
	return n, nil
}

// Close implements VectorStore.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
