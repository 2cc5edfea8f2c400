// Package vector provides interfaces and implementations for the vector
// collections backing the episodic and semantic memory tiers.
//
// A Collection stores text documents with open metadata payloads. Embedding
// happens inside the driver via an injected embeddings.Embedder, so callers
// deal only in text; the memory core never sees raw vectors.
package vector

import "context"

// Document represents a stored item with its text and metadata payload.
type Document struct {
	// ID is a unique identifier for the document within its collection.
	ID string

	// Text is the document content that was embedded.
	Text string

	// Metadata is the open payload stored alongside the text. The memory
	// core converts this to and from its tagged fact metadata.
	Metadata map[string]any
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity (higher = more similar).
	Score float32
}

// Filter narrows searches and scans by metadata predicates. Drivers push it
// down to the storage engine; it deliberately covers only what every backend
// can express natively (a numeric range on salience).
type Filter struct {
	// MinSalience keeps only documents whose salience metadata field is
	// greater than or equal to this value.
	MinSalience *float64
}

// Collection handles storage and retrieval of embedded text documents.
type Collection interface {
	// AddTexts embeds and stores documents. A document with an existing ID
	// is replaced.
	AddTexts(ctx context.Context, docs []Document) error

	// SimilaritySearch finds the topK documents most similar to the query
	// text, optionally narrowed by filter. A nil filter matches everything.
	SimilaritySearch(ctx context.Context, query string, topK int, filter *Filter) ([]QueryResult, error)

	// Scan returns up to limit documents matching the filter without any
	// similarity ranking. Used as the coarse prefilter for promotion.
	Scan(ctx context.Context, filter Filter, limit int) ([]Document, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the collection.
	Close() error
}
