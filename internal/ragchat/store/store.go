package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kart-io/ragchat/pkg/component/storage"
	"github.com/kart-io/ragchat/pkg/errors"
	storeopts "github.com/kart-io/ragchat/pkg/options/store"
)

// PayloadText 是存放分块原文的 payload 键。
const PayloadText = "text"

// Metric 向量距离度量。
type Metric string

const (
	// MetricCosine 余弦相似度，分数越大越相似。
	MetricCosine Metric = "cosine"
)

// Point 表示待写入的向量点。
type Point struct {
	// ID 点 ID，在集合内唯一。
	ID string
	// Vector 嵌入向量。
	Vector []float32
	// Text 分块原文。
	Text string
}

// SearchHit 表示一条检索结果。
type SearchHit struct {
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// Name 返回后端名称。
	Name() string

	// EnsureCollection 集合不存在时创建，已存在时不做任何事。
	EnsureCollection(ctx context.Context, name string, vectorSize int, metric Metric) error

	// Upsert 按 ID 插入或替换向量点。
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search 返回按相似度降序排列的前 k 条结果。
	// 集合为空或不存在时返回空切片。
	Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchHit, error)

	// ListCollections 返回所有集合名称。
	ListCollections(ctx context.Context) ([]string, error)

	// Count 返回集合中的点数，集合不存在时为 0。
	Count(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// NewPointID returns a random point id.
func NewPointID() string {
	return uuid.NewString()
}

// New creates the vector store selected by opts.Backend.
func New(ctx context.Context, opts *storeopts.Options) (VectorStore, error) {
	if opts == nil {
		opts = storeopts.NewOptions()
	}

	switch opts.Backend {
	case storeopts.BackendChromem:
		return NewChromemStore(opts.Chromem)
	case storeopts.BackendQdrant:
		return NewQdrantStore(opts.Qdrant), nil
	case storeopts.BackendMilvus:
		return NewMilvusStore(ctx, opts.Milvus)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

func unavailable(err error) error {
	return errors.Wrap(err, errors.ErrStoreUnavailable)
}

func checkMetric(metric Metric) error {
	if metric != "" && metric != MetricCosine {
		return errors.ErrInvalidRequest.WithMessagef("unsupported metric %q", metric)
	}
	return nil
}

// healthClient adapts a VectorStore to storage.Client.
type healthClient struct {
	vs VectorStore
}

// AsClient exposes vs to the storage manager for health checks.
func AsClient(vs VectorStore) storage.Client {
	return &healthClient{vs: vs}
}

func (h *healthClient) Name() string { return h.vs.Name() }

func (h *healthClient) Ping(ctx context.Context) error {
	_, err := h.vs.ListCollections(ctx)
	return err
}

func (h *healthClient) Close() error {
	return h.vs.Close(context.Background())
}
