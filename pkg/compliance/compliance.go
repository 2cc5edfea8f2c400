// Package compliance implements the scheduled trade-compliance surface: it
// crawls configured data sources, builds per-client risk digests from
// semantic memory, and optionally archives digests to Postgres.
//
// Everything here is thin integration over collaborators; the memory core
// does the heavy lifting.
package compliance

import (
	"time"
)

// Source is a trade-compliance data source to crawl.
type Source struct {
	// Name identifies the source in digests and logs.
	Name string `json:"name"`

	// URL is the page to fetch and extract.
	URL string `json:"url"`
}

// Bulletin is the readable content extracted from one source.
type Bulletin struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Finding is one semantic-memory fact relevant to a client.
type Finding struct {
	FactID   string  `json:"fact_id"`
	Text     string  `json:"text"`
	Salience float64 `json:"salience"`
	Score    float32 `json:"score"`
	Verified bool    `json:"verified"`
}

// Digest is a per-client risk digest.
type Digest struct {
	Client      string     `json:"client"`
	GeneratedAt time.Time  `json:"generated_at"`
	Bulletins   []Bulletin `json:"bulletins"`
	Findings    []Finding  `json:"findings"`
}
