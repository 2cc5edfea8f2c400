// Package qdrant provides a Qdrant-backed vector collection using the
// official gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	qd "github.com/qdrant/go-client/qdrant"

	"github.com/meridianlabs/mnemo/pkg/embeddings"
	"github.com/meridianlabs/mnemo/pkg/vector"
)

const (
	// DefaultHost is the default Qdrant gRPC host.
	DefaultHost = "localhost"

	// DefaultPort is the default Qdrant gRPC port.
	DefaultPort = 6334
)

// Collection implements vector.Collection against a Qdrant collection.
type Collection struct {
	client   *qd.Client
	embedder embeddings.Embedder
	name     string
	logger   *slog.Logger
}

// Config holds configuration for the Qdrant collection.
type Config struct {
	// Host is the Qdrant gRPC host. Defaults to DefaultHost if empty.
	Host string

	// Port is the Qdrant gRPC port. Defaults to DefaultPort if zero.
	Port int

	// Name is the Qdrant collection name.
	Name string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint

	// Embedder generates embeddings for stored and queried text.
	Embedder embeddings.Embedder

	// Logger is the injected slog logger.
	Logger *slog.Logger
}

// NewCollection connects to Qdrant and ensures the collection exists with a
// cosine-distance vector index.
func NewCollection(ctx context.Context, c Config) (*Collection, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	client, err := qd.NewClient(&qd.Config{
		Host: c.Host,
		Port: c.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Name)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, c.Name, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: c.Name,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", c.Name, err)
		}
	}

	c.Logger.Info("connected to qdrant",
		"host", c.Host,
		"port", c.Port,
		"collection", c.Name,
	)

	return &Collection{
		client:   client,
		embedder: c.Embedder,
		name:     c.Name,
		logger:   c.Logger,
	}, nil
}

// AddTexts embeds and upserts documents. Qdrant upserts replace points with
// the same ID.
func (c *Collection) AddTexts(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qd.PointStruct, 0, len(docs))
	for _, doc := range docs {
		emb, err := c.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("%w: embedding document %q: %v", vector.ErrEmbedding, doc.ID, err)
		}

		payload := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		payload["text"] = doc.Text

		valueMap, err := qd.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("converting payload for %q: %w", doc.ID, err)
		}

		points = append(points, &qd.PointStruct{
			Id:      qd.NewID(doc.ID),
			Vectors: qd.NewVectors(emb...),
			Payload: valueMap,
		})
	}

	_, err := c.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: c.name,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}
	return nil
}

// SimilaritySearch embeds the query and runs a vector search, optionally
// narrowed by a salience range filter pushed down to Qdrant.
func (c *Collection) SimilaritySearch(ctx context.Context, query string, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, vector.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 10
	}

	emb, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", vector.ErrEmbedding, err)
	}

	req := &qd.QueryPoints{
		CollectionName: c.name,
		Query:          qd.NewQuery(emb...),
		Limit:          qd.PtrOf(uint64(topK)),
		WithPayload:    qd.NewWithPayload(true),
	}
	if f := rangeFilter(filter); f != nil {
		req.Filter = f
	}

	scored, err := c.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(scored))
	for _, point := range scored {
		doc := documentFromPayload(point.Id, point.Payload)
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    point.Score,
		})
	}
	return results, nil
}

// Scan pages through points matching the filter without similarity ranking.
func (c *Collection) Scan(ctx context.Context, filter vector.Filter, limit int) ([]vector.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	req := &qd.ScrollPoints{
		CollectionName: c.name,
		Limit:          qd.PtrOf(uint32(limit)),
		WithPayload:    qd.NewWithPayload(true),
	}
	if f := rangeFilter(&filter); f != nil {
		req.Filter = f
	}

	points, err := c.client.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scrolling points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, documentFromPayload(point.Id, point.Payload))
	}
	return docs, nil
}

// Get retrieves documents by their IDs.
func (c *Collection) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qd.NewID(id)
	}

	points, err := c.client.Get(ctx, &qd.GetPoints{
		CollectionName: c.name,
		Ids:            pointIDs,
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, documentFromPayload(point.Id, point.Payload))
	}
	return docs, nil
}

// Delete removes points by their IDs.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qd.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qd.NewID(id)
	}

	_, err := c.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: c.name,
		Points:         qd.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Close closes the gRPC connection. The embedder is owned by the caller.
func (c *Collection) Close() error {
	return c.client.Close()
}

// rangeFilter converts the portable filter into a Qdrant range condition.
func rangeFilter(filter *vector.Filter) *qd.Filter {
	if filter == nil || filter.MinSalience == nil {
		return nil
	}
	return &qd.Filter{
		Must: []*qd.Condition{
			qd.NewRange("salience", &qd.Range{Gte: qd.PtrOf(*filter.MinSalience)}),
		},
	}
}

// documentFromPayload rebuilds a Document from a point's ID and payload. The
// stored text travels in the payload under the "text" key.
func documentFromPayload(id *qd.PointId, payload map[string]*qd.Value) vector.Document {
	doc := vector.Document{
		ID:       id.GetUuid(),
		Metadata: make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		if k == "text" {
			doc.Text = v.GetStringValue()
			continue
		}
		doc.Metadata[k] = valueToAny(v)
	}
	return doc
}

// valueToAny converts a Qdrant payload value into a plain Go value.
func valueToAny(v *qd.Value) any {
	switch kind := v.GetKind().(type) {
	case *qd.Value_StringValue:
		return kind.StringValue
	case *qd.Value_DoubleValue:
		return kind.DoubleValue
	case *qd.Value_IntegerValue:
		return kind.IntegerValue
	case *qd.Value_BoolValue:
		return kind.BoolValue
	case *qd.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = valueToAny(item)
		}
		return out
	case *qd.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}

// Ensure Collection implements vector.Collection
var _ vector.Collection = (*Collection)(nil)
