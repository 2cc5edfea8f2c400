package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridianlabs/mnemo/pkg/memory"
)

// digestTopK is how many semantic facts one digest considers per client.
const digestTopK = 10

// DigestBuilder assembles per-client risk digests from semantic memory and
// crawled bulletins.
type DigestBuilder struct {
	semantic *memory.Tier
	logger   *slog.Logger
}

// NewDigestBuilder builds digests against the given semantic tier.
func NewDigestBuilder(semantic *memory.Tier, logger *slog.Logger) *DigestBuilder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DigestBuilder{
		semantic: semantic,
		logger:   logger,
	}
}

// Build searches semantic memory for facts about the client and combines
// them with the crawled bulletins. A failed search yields a digest with
// bulletins only.
func (b *DigestBuilder) Build(ctx context.Context, client string, bulletins []Bulletin) Digest {
	digest := Digest{
		Client:      client,
		GeneratedAt: time.Now().UTC(),
		Bulletins:   bulletins,
	}

	matches, err := b.semantic.Search(ctx, client, digestTopK, nil)
	if err != nil {
		b.logger.Warn("semantic search for digest failed",
			"client", client,
			"error", err,
		)
		return digest
	}

	for _, match := range matches {
		digest.Findings = append(digest.Findings, Finding{
			FactID:   match.Fact.ID,
			Text:     match.Fact.Text,
			Salience: match.Fact.Metadata.Salience,
			Score:    match.Score,
			Verified: match.Fact.Metadata.Verified,
		})
	}

	b.logger.Debug("digest built",
		"client", client,
		"bulletins", len(bulletins),
		"findings", len(digest.Findings),
	)
	return digest
}
