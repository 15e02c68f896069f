package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"

	chromemopts "github.com/kart-io/ragchat/pkg/options/chromem"
)

// ChromemStore 基于 chromem-go 的进程内向量存储，仅支持余弦相似度。
type ChromemStore struct {
	db *chromem.DB

	// ensureMu 保证查找与创建集合是一个原子操作，chromem 的 CreateCollection 会覆盖同名集合。
	ensureMu sync.Mutex
}

var _ VectorStore = (*ChromemStore)(nil)

// NewChromemStore creates an in-memory store, or a persistent one when
// opts.Path is set.
func NewChromemStore(opts *chromemopts.Options) (*ChromemStore, error) {
	if opts == nil || opts.Path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}

	db, err := chromem.NewPersistentDB(opts.Path, opts.Compress)
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to open chromem db %s: %w", opts.Path, err))
	}
	return &ChromemStore{db: db}, nil
}

// Name implements VectorStore.
func (s *ChromemStore) Name() string { return "chromem" }

// EnsureCollection implements VectorStore.
// chromem 的集合不记录向量维度，维度由写入的第一批向量决定。
func (s *ChromemStore) EnsureCollection(_ context.Context, name string, _ int, metric Metric) error {
	if err := checkMetric(metric); err != nil {
		return err
	}

	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if s.db.GetCollection(name, nil) != nil {
		return nil
	}
	if _, err := s.db.CreateCollection(name, nil, nil); err != nil {
		return unavailable(err)
	}
	return nil
}

// Upsert implements VectorStore. 相同 ID 的文档会被覆盖。
func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	c := s.db.GetCollection(collection, nil)
	if c == nil {
		return unavailable(fmt.Errorf("collection %s does not exist", collection))
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Text,
			Embedding: p.Vector,
		}
	}
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return unavailable(err)
	}
	return nil
}

// Search implements VectorStore.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchHit, error) {
	c := s.db.GetCollection(collection, nil)
	if c == nil || k <= 0 {
		return []SearchHit{}, nil
	}

	// chromem 要求 nResults 不超过文档数
	n := k
	if count := c.Count(); count < n {
		n = count
	}
	if n == 0 {
		return []SearchHit{}, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, unavailable(err)
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{Score: r.Similarity, Text: r.Content}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// ListCollections implements VectorStore.
func (s *ChromemStore) ListCollections(_ context.Context) ([]string, error) {
	cols := s.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count implements VectorStore.
func (s *ChromemStore) Count(_ context.Context, collection string) (int64, error) {
	c := s.db.GetCollection(collection, nil)
	if c == nil {
		return 0, nil
	}
	return int64(c.Count()), nil
}

// Close implements VectorStore.
func (s *ChromemStore) Close(_ context.Context) error {
	return nil
}
