// Package extract turns conversation transcripts into summaries and
// structured fact candidates using an LLM.
package extract

import "context"

// Candidate is a fact candidate produced by extraction, before IDs and
// storage metadata are attached.
type Candidate struct {
	// Text is a single self-contained statement.
	Text string `json:"text"`

	// EntityTags are the entities the statement mentions.
	EntityTags []string `json:"entity_tags"`

	// Salience in [0,1] is the model's estimate of long-term importance.
	Salience float64 `json:"salience"`
}

// Extractor produces summaries and fact candidates from transcripts.
type Extractor interface {
	// Summarize condenses a transcript into a short summary.
	Summarize(ctx context.Context, transcript string) (string, error)

	// ExtractFacts pulls discrete fact candidates out of a summary.
	ExtractFacts(ctx context.Context, summary string) ([]Candidate, error)
}
