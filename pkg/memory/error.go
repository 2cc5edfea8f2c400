package memory

import "errors"

var (
	// ErrFactNotFound is returned when a fact ID does not exist in a tier.
	ErrFactNotFound = errors.New("fact not found")

	// ErrEmptyFact is returned when a fact with no text is stored.
	ErrEmptyFact = errors.New("fact text is empty")
)
