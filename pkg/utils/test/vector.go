package testutils

import (
	"context"
	"sort"
	"strings"

	"github.com/meridianlabs/mnemo/pkg/vector"
)

// MockCollection is an in-memory vector.Collection for tests. Similarity is
// driven by an injectable scoring function instead of real embeddings.
type MockCollection struct {
	docs  map[string]vector.Document
	order []string

	// Similarity scores a query against a stored document's text. Defaults
	// to exact-match scoring: 1 if equal, 0 otherwise.
	Similarity func(query, text string) float32

	// FailSearch causes SimilaritySearch to return this error.
	FailSearch error

	// FailAdd causes AddTexts to return this error.
	FailAdd error

	// FailScan causes Scan to return this error.
	FailScan error

	// Deleted accumulates IDs passed to Delete.
	Deleted []string
}

// NewMockCollection creates an empty mock collection.
func NewMockCollection() *MockCollection {
	return &MockCollection{
		docs: make(map[string]vector.Document),
		Similarity: func(query, text string) float32 {
			if query == text {
				return 1
			}
			return 0
		},
	}
}

// Len reports the number of stored documents.
func (m *MockCollection) Len() int {
	return len(m.docs)
}

// All returns stored documents in insertion order.
func (m *MockCollection) All() []vector.Document {
	docs := make([]vector.Document, 0, len(m.order))
	for _, id := range m.order {
		if doc, ok := m.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (m *MockCollection) AddTexts(_ context.Context, docs []vector.Document) error {
	if m.FailAdd != nil {
		return m.FailAdd
	}
	for _, doc := range docs {
		if _, exists := m.docs[doc.ID]; !exists {
			m.order = append(m.order, doc.ID)
		}
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *MockCollection) SimilaritySearch(_ context.Context, query string, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if m.FailSearch != nil {
		return nil, m.FailSearch
	}
	if strings.TrimSpace(query) == "" {
		return nil, vector.ErrEmptyQuery
	}

	var results []vector.QueryResult
	for _, id := range m.order {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		if filter != nil && filter.MinSalience != nil && salienceOf(doc) < *filter.MinSalience {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    m.Similarity(query, doc.Text),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockCollection) Scan(_ context.Context, filter vector.Filter, limit int) ([]vector.Document, error) {
	if m.FailScan != nil {
		return nil, m.FailScan
	}

	var docs []vector.Document
	for _, id := range m.order {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		if filter.MinSalience != nil && salienceOf(doc) < *filter.MinSalience {
			continue
		}
		docs = append(docs, doc)
		if limit > 0 && len(docs) == limit {
			break
		}
	}
	return docs, nil
}

func (m *MockCollection) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	var docs []vector.Document
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (m *MockCollection) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.docs, id)
		m.Deleted = append(m.Deleted, id)
	}
	return nil
}

func (m *MockCollection) Close() error {
	return nil
}

func salienceOf(doc vector.Document) float64 {
	if doc.Metadata == nil {
		return 0
	}
	if v, ok := doc.Metadata["salience"].(float64); ok {
		return v
	}
	return 0
}

// Ensure MockCollection implements vector.Collection
var _ vector.Collection = (*MockCollection)(nil)
