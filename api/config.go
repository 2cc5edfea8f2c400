// Package api provides the HTTP surface over the memory core: chat turn
// ingestion, manual pipeline triggers, memory search, and session stats.
// Handlers are pass-through; all logic lives in the core packages.
package api

import (
	"log/slog"

	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/memory/distill"
	"github.com/meridianlabs/mnemo/pkg/memory/promote"
	"github.com/meridianlabs/mnemo/pkg/session"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// Sessions is the working-memory store.
	Sessions *session.Store

	// Distiller runs distillation on demand and on the turn trigger.
	Distiller *distill.Pipeline

	// Promoter runs promotion sweeps on demand.
	Promoter *promote.Pipeline

	// Episodic and Semantic are the searchable memory tiers.
	Episodic *memory.Tier
	Semantic *memory.Tier

	// DistillEveryNTurns triggers a background distillation each time a
	// session's turn count crosses a multiple of N. Zero disables the
	// trigger.
	DistillEveryNTurns int

	// Logger is the injected slog logger.
	Logger *slog.Logger
}

// ErrorResponse is the JSON error body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
