package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createDigestsTable = `
	CREATE TABLE IF NOT EXISTS compliance_digests (
		id BIGSERIAL PRIMARY KEY,
		client TEXT NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		digest JSONB NOT NULL
	)
`

// Archive persists digests to Postgres for audit.
type Archive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewArchive connects to Postgres and ensures the digest table exists.
func NewArchive(ctx context.Context, dsn string, logger *slog.Logger) (*Archive, error) {
	if dsn == "" {
		return nil, fmt.Errorf("archive DSN is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to archive: %w", err)
	}

	if _, err := pool.Exec(ctx, createDigestsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating digests table: %w", err)
	}

	logger.Info("compliance archive connected")
	return &Archive{pool: pool, logger: logger}, nil
}

// Save writes one digest row.
func (a *Archive) Save(ctx context.Context, digest Digest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("marshaling digest for %q: %w", digest.Client, err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO compliance_digests (client, generated_at, digest) VALUES ($1, $2, $3)`,
		digest.Client, digest.GeneratedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("archiving digest for %q: %w", digest.Client, err)
	}

	a.logger.Debug("digest archived", "client", digest.Client)
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	a.pool.Close()
}
