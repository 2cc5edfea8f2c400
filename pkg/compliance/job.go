package compliance

import (
	"context"
	"log/slog"
)

// Job is the scheduled compliance run: crawl sources once, build a digest
// per client, archive what was built.
type Job struct {
	// Crawler fetches the configured sources.
	Crawler *Crawler

	// Builder assembles per-client digests.
	Builder *DigestBuilder

	// Clients are the client names to digest.
	Clients []string

	// Archive persists digests. Optional; nil skips archiving.
	Archive *Archive

	// Logger is the injected slog logger.
	Logger *slog.Logger
}

// Run executes one compliance sweep. Per-client failures are logged and
// skipped so one bad client never blocks the rest.
func (j *Job) Run(ctx context.Context) error {
	log := j.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	bulletins := j.Crawler.Crawl()

	for _, client := range j.Clients {
		digest := j.Builder.Build(ctx, client, bulletins)

		if j.Archive == nil {
			continue
		}
		if err := j.Archive.Save(ctx, digest); err != nil {
			log.Warn("archiving digest failed", "client", client, "error", err)
		}
	}

	log.Info("compliance sweep complete",
		"clients", len(j.Clients),
		"bulletins", len(bulletins),
	)
	return nil
}
