package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not found in the collection.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrEmptyQuery is returned when a similarity search is attempted with
	// empty query text. This is a programmer error, not a transient failure.
	ErrEmptyQuery = errors.New("query text must not be empty")
)
