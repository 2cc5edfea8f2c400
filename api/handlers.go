package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/vector"
)

// AppendTurnRequest is the body for POST /chat/:session/turns.
type AppendTurnRequest struct {
	UserMessage      string         `json:"user_message"`
	AssistantMessage string         `json:"assistant_message"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// AppendTurnResponse reports the session state after the append and whether
// the turn-count trigger fired a background distillation.
type AppendTurnResponse struct {
	SessionID          string `json:"session_id"`
	TurnCount          int    `json:"turn_count"`
	DistillationQueued bool   `json:"distillation_queued"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAppendTurn appends a turn to the session, auto-creating it, and
// fires the distillation trigger when the turn count crosses a multiple of
// the configured interval.
func (s *Server) handleAppendTurn(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	var req AppendTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.UserMessage == "" && req.AssistantMessage == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_message or assistant_message is required"})
	}

	sess := s.config.Sessions.AppendTurn(sessionID, req.UserMessage, req.AssistantMessage, req.Metadata)

	queued := s.maybeDistill(sessionID, sess.TurnCount)

	return c.JSON(AppendTurnResponse{
		SessionID:          sess.ID,
		TurnCount:          sess.TurnCount,
		DistillationQueued: queued,
	})
}

// maybeDistill fires a background distillation when the trigger interval is
// crossed. The HTTP request never waits on the pipeline.
func (s *Server) maybeDistill(sessionID string, turnCount int) bool {
	n := s.config.DistillEveryNTurns
	if n <= 0 || s.config.Distiller == nil || turnCount%n != 0 {
		return false
	}

	go func() {
		result := s.config.Distiller.Run(context.Background(), sessionID)
		s.logger.Info("triggered distillation finished",
			"session_id", sessionID,
			"status", result.Status,
			"facts_stored", result.FactsStored,
		)
	}()
	return true
}

// handleRecentTurns returns the last n turns for a session. Query parameter
// n defaults to all retained turns.
func (s *Server) handleRecentTurns(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	n := 0
	if nStr := c.Query("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "n must be a positive integer"})
		}
		n = parsed
	}

	turns := s.config.Sessions.RecentTurns(sessionID, n)
	return c.JSON(map[string]any{
		"session_id": sessionID,
		"count":      len(turns),
		"turns":      turns,
	})
}

// handleDeleteSession removes a session.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("session")
	existed := s.config.Sessions.Delete(sessionID)
	if !existed {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	return c.JSON(map[string]any{"deleted": sessionID})
}

// handleDistill runs the distillation pipeline synchronously for a session.
func (s *Server) handleDistill(c *fiber.Ctx) error {
	if s.config.Distiller == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "distillation is not configured"})
	}

	result := s.config.Distiller.Run(c.Context(), c.Params("session"))
	return c.JSON(result)
}

// handlePromote runs a promotion sweep synchronously.
func (s *Server) handlePromote(c *fiber.Ctx) error {
	if s.config.Promoter == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "promotion is not configured"})
	}

	result := s.config.Promoter.Run(c.Context())
	return c.JSON(result)
}

// SearchResponse is the body for GET /memory/search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Tier    string         `json:"tier"`
	Count   int            `json:"count"`
	Results []memory.Match `json:"results"`
}

// handleSearch searches a memory tier.
// Query parameters:
//   - query (required): the search query text
//   - tier (optional, default "semantic"): "semantic" or "episodic"
//   - top_k (optional, default 5): number of results to return
//   - min_salience (optional): salience floor pushed down to the store
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	tierName := c.Query("tier", "semantic")
	var tier *memory.Tier
	switch tierName {
	case "semantic":
		tier = s.config.Semantic
	case "episodic":
		tier = s.config.Episodic
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "tier must be semantic or episodic"})
	}
	if tier == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "search is not configured for tier " + tierName})
	}

	topK := 5
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
		}
		topK = parsed
	}

	var filter *vector.Filter
	if minStr := c.Query("min_salience"); minStr != "" {
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "min_salience must be a number"})
		}
		filter = &vector.Filter{MinSalience: &min}
	}

	matches, err := tier.Search(c.Context(), query, topK, filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	if matches == nil {
		matches = []memory.Match{}
	}

	return c.JSON(SearchResponse{
		Query:   query,
		Tier:    tierName,
		Count:   len(matches),
		Results: matches,
	})
}

// handleSessionStats returns session store occupancy.
func (s *Server) handleSessionStats(c *fiber.Ctx) error {
	return c.JSON(s.config.Sessions.Stats())
}
