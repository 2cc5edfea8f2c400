package memory

import (
	"context"
	"log/slog"
)

// DefaultDedupeThreshold is the similarity at or above which a new candidate
// is considered a duplicate of an existing fact.
const DefaultDedupeThreshold = 0.9

// Deduplicator drops candidate facts that are too similar to facts already
// stored in a tier.
type Deduplicator struct {
	tier      *Tier
	threshold float64
	logger    *slog.Logger
}

// NewDeduplicator builds a deduplicator against the given tier. A zero or
// negative threshold falls back to DefaultDedupeThreshold.
func NewDeduplicator(tier *Tier, threshold float64, logger *slog.Logger) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultDedupeThreshold
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Deduplicator{
		tier:      tier,
		threshold: threshold,
		logger:    logger,
	}
}

// Filter returns the candidates that are not duplicates of stored facts.
// A candidate whose nearest stored neighbor scores at or above the threshold
// is dropped; the stored fact wins and the new candidate is discarded.
//
// Dedup is best effort: if the similarity lookup fails, the candidate is kept
// rather than lost. A duplicate in the tier is recoverable; a silently
// dropped fact is not.
func (d *Deduplicator) Filter(ctx context.Context, candidates []Fact) []Fact {
	kept := make([]Fact, 0, len(candidates))
	for _, candidate := range candidates {
		matches, err := d.tier.Search(ctx, candidate.Text, 1, nil)
		if err != nil {
			d.logger.Warn("dedup lookup failed, keeping candidate",
				"fact_id", candidate.ID,
				"error", err,
			)
			kept = append(kept, candidate)
			continue
		}

		if len(matches) > 0 && float64(matches[0].Score) >= d.threshold {
			d.logger.Debug("dropping duplicate candidate",
				"fact_id", candidate.ID,
				"duplicate_of", matches[0].Fact.ID,
				"score", matches[0].Score,
			)
			continue
		}

		kept = append(kept, candidate)
	}
	return kept
}
