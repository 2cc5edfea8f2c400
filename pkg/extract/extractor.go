package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTranscript is returned when there is nothing to summarize.
var ErrEmptyTranscript = errors.New("empty transcript")

// maxTranscriptChars caps the transcript sent to the model.
const maxTranscriptChars = 30000

// LLMExtractor implements Extractor over a single LLM call function.
type LLMExtractor struct {
	llmCall LLMCallFunc
}

// NewLLMExtractor creates an extractor backed by the given LLM caller.
func NewLLMExtractor(llmCall LLMCallFunc) *LLMExtractor {
	return &LLMExtractor{llmCall: llmCall}
}

// Summarize condenses a transcript into a short summary.
func (e *LLMExtractor) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	response, err := e.llmCall(ctx, buildSummaryPrompt(transcript))
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}

	summary, err := parseSummaryResponse(response)
	if err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return summary, nil
}

// ExtractFacts pulls discrete fact candidates out of a summary. An empty
// result means the model found nothing durable, not an error.
func (e *LLMExtractor) ExtractFacts(ctx context.Context, summary string) ([]Candidate, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, nil
	}

	response, err := e.llmCall(ctx, buildFactsPrompt(summary))
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}

	candidates, err := parseFactsResponse(response)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return candidates, nil
}

func buildSummaryPrompt(transcript string) string {
	return "Summarize this conversation between a user and an assistant.\n" +
		"Focus on durable information: decisions made, preferences stated, entities discussed, constraints established.\n" +
		"Ignore pleasantries and back-and-forth that led nowhere.\n" +
		"Return ONLY valid JSON:\n\n" +
		"{\n  \"summary\": \"concise summary of the durable content\"\n}\n\n" +
		"Transcript:\n" + transcript
}

func buildFactsPrompt(summary string) string {
	return "Extract discrete, self-contained facts from this conversation summary.\n" +
		"Each fact must stand alone without the surrounding context.\n" +
		"Skip anything transient or conversational. If nothing is worth keeping, return an empty list.\n" +
		"Return ONLY valid JSON:\n\n" +
		"{\n  \"facts\": [\n    {\n      \"text\": \"single self-contained statement\",\n" +
		"      \"entity_tags\": [\"entities mentioned\"],\n" +
		"      \"salience\": 0.0\n    }\n  ]\n}\n\n" +
		"salience is a number in [0,1] estimating long-term importance.\n\n" +
		"Summary:\n" + summary
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

type factsResponse struct {
	Facts []Candidate `json:"facts"`
}

func parseSummaryResponse(response string) (string, error) {
	var parsed summaryResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return "", fmt.Errorf("unmarshal summary JSON: %w", err)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return "", errors.New("model returned no summary")
	}
	return parsed.Summary, nil
}

func parseFactsResponse(response string) ([]Candidate, error) {
	var parsed factsResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal facts JSON: %w", err)
	}

	candidates := make([]Candidate, 0, len(parsed.Facts))
	for _, candidate := range parsed.Facts {
		if strings.TrimSpace(candidate.Text) == "" {
			continue
		}
		candidate.Salience = clampSalience(candidate.Salience)
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// extractJSON strips markdown fences and surrounding prose that some models
// emit around the JSON body.
func extractJSON(response string) string {
	if idx := strings.Index(response, "{"); idx >= 0 {
		if endIdx := strings.LastIndex(response, "}"); endIdx > idx {
			return response[idx : endIdx+1]
		}
	}
	return response
}

func clampSalience(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Ensure LLMExtractor implements Extractor
var _ Extractor = (*LLMExtractor)(nil)
