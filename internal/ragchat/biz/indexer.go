package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/ragchat/internal/ragchat/metrics"
	"github.com/kart-io/ragchat/internal/ragchat/store"
	"github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/infra/pool"
	"github.com/kart-io/ragchat/pkg/infra/tracing"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// ChunkSize 文本块大小（字符数）。
	ChunkSize int
	// Collection 集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
}

// ChunkFailure records why one chunk was not stored.
type ChunkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`

	err error
}

// Err returns the underlying error.
func (f ChunkFailure) Err() error { return f.err }

// IngestReport summarizes an ingestion.
type IngestReport struct {
	Source    string         `json:"source"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failures  []ChunkFailure `json:"failures"`
}

// Message renders the report for API clients.
func (r *IngestReport) Message() string {
	return fmt.Sprintf("Stored %d chunks in vector DB.", r.Succeeded)
}

// Indexer 负责文档入库：分块、嵌入、写入向量库。
type Indexer struct {
	store    store.VectorStore
	embedder Embedder
	config   *IndexerConfig
	pool     *pool.Pool
	metrics  *metrics.Metrics
}

// NewIndexer 创建索引器实例。ingestPool 为 nil 时逐块顺序入库。
func NewIndexer(vs store.VectorStore, embedder Embedder, config *IndexerConfig, ingestPool *pool.Pool, m *metrics.Metrics) *Indexer {
	return &Indexer{
		store:    vs,
		embedder: embedder,
		config:   config,
		pool:     ingestPool,
		metrics:  m,
	}
}

// Ingest chunks text and stores every chunk. A chunk failure never stops
// the remaining chunks; failures are reported in chunk order.
func (i *Indexer) Ingest(ctx context.Context, source, text string) (*IngestReport, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.ErrExtraction.WithMessagef("document %q contains no text", source)
	}

	chunks, err := SplitText(text, i.config.ChunkSize)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "document.ingest",
		attribute.String("source", source),
		attribute.Int("chunks", len(chunks)),
	)
	defer span.End()

	if err := i.store.EnsureCollection(ctx, i.config.Collection, i.config.EmbeddingDim, store.MetricCosine); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Infow("ingesting document", "source", source, "chunks", len(chunks), "collection", i.config.Collection)

	var results []error
	if i.pool == nil || i.pool.Cap() <= 1 {
		results = i.ingestSequential(ctx, chunks)
	} else {
		results = i.ingestPooled(ctx, chunks)
	}

	report := &IngestReport{
		Source:   source,
		Total:    len(chunks),
		Failures: []ChunkFailure{},
	}
	for idx, err := range results {
		if err == nil {
			report.Succeeded++
			continue
		}
		report.Failures = append(report.Failures, ChunkFailure{Index: idx, Error: err.Error(), err: err})
		logger.Warnw("failed to store chunk", "source", source, "index", idx, "error", err.Error())
	}

	i.metrics.RecordIngest(report.Total, report.Succeeded)
	span.SetAttributes(attribute.Int("succeeded", report.Succeeded))
	logger.Infow("document ingested",
		"source", source,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures),
	)
	return report, nil
}

func (i *Indexer) ingestSequential(ctx context.Context, chunks []Chunk) []error {
	results := make([]error, len(chunks))
	for idx, c := range chunks {
		results[idx] = i.ingestChunk(ctx, c)
	}
	return results
}

func (i *Indexer) ingestPooled(ctx context.Context, chunks []Chunk) []error {
	results := make([]error, len(chunks))

	var wg sync.WaitGroup
	for idx, c := range chunks {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[idx] = i.ingestChunk(ctx, c)
		}
		if err := i.pool.Submit(task); err != nil {
			wg.Done()
			results[idx] = err
		}
	}
	wg.Wait()
	return results
}

func (i *Indexer) ingestChunk(ctx context.Context, c Chunk) error {
	if err := errors.FromContext(ctx); err != nil {
		return err
	}

	vec, err := i.embedder.Embed(ctx, c.Text)
	if err != nil {
		return err
	}

	point := store.Point{
		ID:     store.NewPointID(),
		Vector: vec,
		Text:   c.Text,
	}
	return i.store.Upsert(ctx, i.config.Collection, []store.Point{point})
}
