// Package distill implements the distillation pipeline: it pulls a window of
// recent turns from a session, summarizes them, extracts fact candidates,
// deduplicates against episodic memory, and stores the survivors.
//
// Stages are fail-soft: a failing summarize or extract call yields zero facts
// rather than an error, and only a storage failure surfaces as an error
// status. The pipeline never panics and never returns a Go error; callers
// inspect the Result's Status.
package distill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
	"github.com/meridianlabs/mnemo/pkg/extract"
	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/session"
)

// Status discriminates distillation outcomes.
type Status string

const (
	// StatusSuccess means at least one fact was stored.
	StatusSuccess Status = "success"

	// StatusNoFacts means the pipeline ran but produced nothing durable.
	// An empty session, a failed extraction, or an all-duplicate batch all
	// land here.
	StatusNoFacts Status = "no_facts"

	// StatusError means facts were extracted but could not be stored.
	StatusError Status = "error"
)

// Result reports the funnel of a single distillation run.
type Result struct {
	SessionID      string `json:"session_id"`
	Status         Status `json:"status"`
	TurnsUsed      int    `json:"turns_used"`
	FactsExtracted int    `json:"facts_extracted"`
	FactsDeduped   int    `json:"facts_deduped"`
	FactsStored    int    `json:"facts_stored"`
	Summary        string `json:"summary,omitempty"`
	Err            string `json:"error,omitempty"`
}

// Config holds the pipeline's collaborators and tuning.
type Config struct {
	// Sessions is the working-memory store turns are read from.
	Sessions *session.Store

	// Episodic is the tier distilled facts are written to.
	Episodic *memory.Tier

	// Extractor summarizes transcripts and extracts fact candidates.
	Extractor extract.Extractor

	// Deduper filters candidates against existing episodic facts.
	// Optional; nil disables deduplication.
	Deduper *memory.Deduplicator

	// Publisher receives a fact event per stored fact. Optional.
	Publisher eventstream.Publisher

	// Window is how many recent turns to distill. Zero or negative means
	// all retained turns.
	Window int

	// Logger is the injected slog logger.
	Logger *slog.Logger

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs distillation for one session at a time. Multiple runs may
// execute concurrently; the session store and tiers provide their own
// consistency.
type Pipeline struct {
	cfg Config
}

// NewPipeline validates collaborators and builds a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Episodic == nil {
		return nil, fmt.Errorf("episodic tier is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes the full pipeline for sessionID and reports the funnel.
func (p *Pipeline) Run(ctx context.Context, sessionID string) Result {
	result := Result{SessionID: sessionID, Status: StatusNoFacts}
	log := p.cfg.Logger.With("session_id", sessionID)

	// Fetch. An absent or empty session is a valid terminal state.
	turns := p.cfg.Sessions.RecentTurns(sessionID, p.cfg.Window)
	if len(turns) == 0 {
		log.Debug("distillation skipped, no turns")
		return result
	}
	result.TurnsUsed = len(turns)

	// Summarize.
	summary, err := p.cfg.Extractor.Summarize(ctx, buildTranscript(turns))
	if err != nil {
		log.Warn("summarize failed", "error", err)
		result.Err = err.Error()
		return result
	}
	result.Summary = summary

	// Extract. A failure yields zero facts, not an aborted run.
	candidates, err := p.cfg.Extractor.ExtractFacts(ctx, summary)
	if err != nil {
		log.Warn("fact extraction failed", "error", err)
		result.Err = err.Error()
		return result
	}
	result.FactsExtracted = len(candidates)
	if len(candidates) == 0 {
		log.Debug("distillation found no facts", "turns", len(turns))
		return result
	}

	facts := p.buildFacts(sessionID, turns, candidates)

	// Deduplicate. The deduper is fail-open internally.
	if p.cfg.Deduper != nil {
		kept := p.cfg.Deduper.Filter(ctx, facts)
		result.FactsDeduped = len(facts) - len(kept)
		facts = kept
	}
	if len(facts) == 0 {
		log.Debug("all extracted facts were duplicates", "extracted", result.FactsExtracted)
		return result
	}

	// Store.
	if err := p.cfg.Episodic.Add(ctx, facts...); err != nil {
		log.Error("storing distilled facts failed", "error", err)
		result.Status = StatusError
		result.Err = err.Error()
		return result
	}
	result.FactsStored = len(facts)
	result.Status = StatusSuccess

	p.publish(ctx, log, facts)

	log.Info("distillation complete",
		"turns_used", result.TurnsUsed,
		"facts_extracted", result.FactsExtracted,
		"facts_deduped", result.FactsDeduped,
		"facts_stored", result.FactsStored,
	)
	return result
}

// buildFacts attaches IDs, provenance, and tier metadata to raw candidates.
func (p *Pipeline) buildFacts(sessionID string, turns []session.Turn, candidates []extract.Candidate) []memory.Fact {
	now := p.cfg.Now()

	sourceTurns := make([]int, len(turns))
	for i, turn := range turns {
		sourceTurns[i] = turn.Number
	}

	facts := make([]memory.Fact, 0, len(candidates))
	for _, candidate := range candidates {
		facts = append(facts, memory.Fact{
			ID:   memory.NewFactID(),
			Text: candidate.Text,
			Metadata: memory.Metadata{
				SessionID:  sessionID,
				EntityTags: candidate.EntityTags,
				Salience:   candidate.Salience,
				Timestamp:  now,
				FactType:   memory.FactTypeDistilled,
				Provenance: memory.Provenance{
					SourceType:    memory.SourceConversation,
					SourceSession: sessionID,
					SourceTurns:   sourceTurns,
				},
			},
		})
	}
	return facts
}

// publish emits one event per stored fact. Publishing is best effort; a
// failed publish never affects the pipeline result.
func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, facts []memory.Fact) {
	if p.cfg.Publisher == nil {
		return
	}
	for _, fact := range facts {
		if err := p.cfg.Publisher.PublishFact(ctx, eventstream.NewFactDistilledEvent(fact)); err != nil {
			log.Warn("publishing fact event failed", "fact_id", fact.ID, "error", err)
		}
	}
}

func buildTranscript(turns []session.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "[user] %s\n[assistant] %s\n", turn.UserMessage, turn.AssistantMessage)
	}
	return b.String()
}
