// Package milvus wraps the Milvus v2 SDK for the chunk collections of the
// RAG pipeline: VarChar primary keys, a FloatVector field and a VarChar
// payload field, indexed with IVF_FLAT.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/ragchat/pkg/options/milvus"
)

// Field names of a chunk collection.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldText      = "text"

	idMaxLength   = 64
	textMaxLength = 65535
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid milvus options: %v", errs)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// NewChunkSchema builds the schema of a chunk collection.
func NewChunkSchema(name string, dim int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("RAG document chunks").
		WithAutoID(false).
		WithField(
			entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).
				WithMaxLength(idMaxLength),
		).
		WithField(
			entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim)),
		).
		WithField(
			entity.NewField().
				WithName(FieldText).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(textMaxLength),
		)
}

// ListCollections returns the collection names of the configured database.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates, indexes and loads the collection when it does
// not exist yet. An existing collection is left untouched.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int, metric entity.MetricType) error {
	exists, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, NewChunkSchema(name, dim))); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(metric, c.opts.NList)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.load(ctx, name)
}

func (c *Client) load(ctx context.Context, name string) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Row is a single chunk to upsert.
type Row struct {
	ID        string
	Embedding []float32
	Text      string
}

// Upsert inserts or replaces rows by primary key and flushes so the rows
// are searchable immediately.
func (c *Client) Upsert(ctx context.Context, collection string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	texts := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		vectors[i] = r.Embedding
		texts[i] = r.Text
	}

	opt := milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors),
		column.NewColumnVarChar(FieldText, texts),
	)
	if _, err := c.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID    string
	Score float32
	Text  string
}

// Search performs a vector similarity search and returns the payload text
// of the hits in ranked order.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	if err := c.load(ctx, collection); err != nil {
		return nil, err
	}

	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(FieldText))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	hits := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := SearchResult{Score: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			if col, ok := field.(*column.ColumnVarChar); ok && col.Name() == FieldText {
				hit.Text = col.Data()[i]
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of entities in a collection.
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
