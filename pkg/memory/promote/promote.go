// Package promote implements the promotion pipeline: it scans the episodic
// tier for high-salience facts, applies the full promotion predicate, and
// copies qualifying facts into the semantic tier.
//
// Promotion is copy, never move. The episodic original stays in place and
// expires via its own TTL; the cleanup stage exists only to report how many
// originals were kept. The semantic copy is a new entity with its own ID.
package promote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
	"github.com/meridianlabs/mnemo/pkg/memory"
)

// Status discriminates promotion outcomes.
type Status string

const (
	// StatusSuccess means at least one fact was promoted.
	StatusSuccess Status = "success"

	// StatusNoFacts means no candidate survived the scan and filter.
	StatusNoFacts Status = "no_facts"

	// StatusError means the scan or the semantic write failed.
	StatusError Status = "error"
)

// Result reports the funnel of a single promotion sweep.
type Result struct {
	Status Status `json:"status"`

	// FoundCandidates is how many facts the salience prefilter returned.
	FoundCandidates int `json:"found_candidates"`

	// Filtered is how many candidates passed the full predicate.
	Filtered int `json:"filtered"`

	// Promoted is how many facts were written to the semantic tier.
	Promoted int `json:"promoted"`

	// KeptForTTL is how many episodic originals were retained for their
	// natural expiry. Always equals Promoted; cleanup never deletes.
	KeptForTTL int `json:"kept_for_ttl"`

	Err string `json:"error,omitempty"`
}

// Config holds the pipeline's collaborators and promotion thresholds.
type Config struct {
	// Episodic is the tier candidates are scanned from.
	Episodic *memory.Tier

	// Semantic is the tier promoted copies are written to.
	Semantic *memory.Tier

	// Publisher receives a fact event per promoted fact. Optional.
	Publisher eventstream.Publisher

	// SalienceThreshold is the minimum salience for promotion.
	SalienceThreshold float64

	// CitationThreshold is the minimum citation count for promotion.
	CitationThreshold int

	// AgeDays is the minimum episodic age in days for promotion.
	AgeDays int

	// ScanLimit caps how many candidates one sweep considers. Defaults to
	// 100.
	ScanLimit int

	// Logger is the injected slog logger.
	Logger *slog.Logger

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs promotion sweeps over the episodic tier.
type Pipeline struct {
	cfg Config
}

// NewPipeline validates collaborators and builds a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Episodic == nil {
		return nil, fmt.Errorf("episodic tier is required")
	}
	if cfg.Semantic == nil {
		return nil, fmt.Errorf("semantic tier is required")
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes one promotion sweep and reports the funnel.
func (p *Pipeline) Run(ctx context.Context) Result {
	result := Result{Status: StatusNoFacts}
	log := p.cfg.Logger

	// Scan: coarse salience prefilter pushed down to storage.
	candidates, err := p.cfg.Episodic.ScanBySalience(ctx, p.cfg.SalienceThreshold, p.cfg.ScanLimit)
	if err != nil {
		log.Error("promotion scan failed", "error", err)
		result.Status = StatusError
		result.Err = err.Error()
		return result
	}
	result.FoundCandidates = len(candidates)
	if len(candidates) == 0 {
		log.Debug("promotion sweep found no candidates")
		return result
	}

	// Filter: the authoritative gate. The scan only guarantees salience;
	// citations and age are checked here.
	qualified := make([]memory.Fact, 0, len(candidates))
	for _, fact := range candidates {
		if p.qualifies(fact) {
			qualified = append(qualified, fact)
		}
	}
	result.Filtered = len(qualified)
	if len(qualified) == 0 {
		log.Debug("no candidates passed the promotion predicate",
			"found", result.FoundCandidates,
		)
		return result
	}

	// Transform: build semantic copies with fresh IDs and session identity
	// moved into provenance.
	promoted := make([]memory.Fact, 0, len(qualified))
	for _, fact := range qualified {
		promoted = append(promoted, p.transform(fact))
	}

	// Write: batch insert into the semantic tier.
	if err := p.cfg.Semantic.Add(ctx, promoted...); err != nil {
		log.Error("writing promoted facts failed", "error", err)
		result.Status = StatusError
		result.Err = err.Error()
		return result
	}
	result.Promoted = len(promoted)
	result.Status = StatusSuccess

	// Cleanup: deliberately a no-op. Episodic originals expire via TTL.
	result.KeptForTTL = len(promoted)

	p.publish(ctx, promoted)

	log.Info("promotion sweep complete",
		"found_candidates", result.FoundCandidates,
		"filtered", result.Filtered,
		"promoted", result.Promoted,
		"kept_for_ttl", result.KeptForTTL,
	)
	return result
}

// qualifies applies the full promotion predicate.
func (p *Pipeline) qualifies(fact memory.Fact) bool {
	if fact.Metadata.Salience < p.cfg.SalienceThreshold {
		return false
	}
	if fact.Metadata.CitationCount < p.cfg.CitationThreshold {
		return false
	}

	minAge := time.Duration(p.cfg.AgeDays) * 24 * time.Hour
	age := p.cfg.Now().Sub(fact.Metadata.Timestamp)
	return age >= minAge
}

// transform builds the semantic copy of an episodic fact. The copy gets a
// fresh ID; the original's session ID survives only as provenance.
func (p *Pipeline) transform(fact memory.Fact) memory.Fact {
	now := p.cfg.Now()
	return memory.Fact{
		ID:   memory.NewFactID(),
		Text: fact.Text,
		Metadata: memory.Metadata{
			EntityTags:    fact.Metadata.EntityTags,
			Salience:      fact.Metadata.Salience,
			CitationCount: fact.Metadata.CitationCount,
			Timestamp:     now,
			Verified:      true,
			FactType:      memory.FactTypePromoted,
			PromotedAt:    now,
			Provenance: memory.Provenance{
				SourceType:        memory.SourcePromotion,
				SourceSession:     fact.Metadata.SessionID,
				SourceTurns:       fact.Metadata.Provenance.SourceTurns,
				OriginalTimestamp: fact.Metadata.Timestamp,
				PromotedFromEM:    true,
			},
		},
	}
}

// publish emits one event per promoted fact. Best effort.
func (p *Pipeline) publish(ctx context.Context, facts []memory.Fact) {
	if p.cfg.Publisher == nil {
		return
	}
	for _, fact := range facts {
		if err := p.cfg.Publisher.PublishFact(ctx, eventstream.NewFactPromotedEvent(fact)); err != nil {
			p.cfg.Logger.Warn("publishing fact event failed", "fact_id", fact.ID, "error", err)
		}
	}
}
