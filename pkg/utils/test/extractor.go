package testutils

import (
	"context"

	"github.com/meridianlabs/mnemo/pkg/extract"
)

// MockExtractor is a test extractor that records calls and returns
// configurable results.
type MockExtractor struct {
	// Summary is returned by Summarize.
	Summary string

	// Candidates is returned by ExtractFacts.
	Candidates []extract.Candidate

	// FailSummarize causes Summarize to return this error.
	FailSummarize error

	// FailExtract causes ExtractFacts to return this error.
	FailExtract error

	// Transcripts accumulates inputs passed to Summarize.
	Transcripts []string

	// Summaries accumulates inputs passed to ExtractFacts.
	Summaries []string
}

// NewMockExtractor creates a new mock extractor.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

func (m *MockExtractor) Summarize(_ context.Context, transcript string) (string, error) {
	m.Transcripts = append(m.Transcripts, transcript)
	if m.FailSummarize != nil {
		return "", m.FailSummarize
	}
	return m.Summary, nil
}

func (m *MockExtractor) ExtractFacts(_ context.Context, summary string) ([]extract.Candidate, error) {
	m.Summaries = append(m.Summaries, summary)
	if m.FailExtract != nil {
		return nil, m.FailExtract
	}
	return m.Candidates, nil
}

// Ensure MockExtractor implements extract.Extractor
var _ extract.Extractor = (*MockExtractor)(nil)
