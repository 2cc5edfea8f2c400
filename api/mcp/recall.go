package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meridianlabs/mnemo/pkg/session"
)

var (
	sessionRecallToolName    = "session_recall"
	sessionRecallDescription = "Recall the recent turns of a working-memory session. Returns the last N user/assistant exchanges for the given session ID, or an empty list if the session is absent or expired."
)

// SessionRecallInput represents the input arguments for the session_recall tool.
type SessionRecallInput struct {
	SessionID string `json:"session_id" jsonschema:"the session identifier to recall turns for"`
	N         int    `json:"n,omitempty" jsonschema:"number of recent turns to return (default: all retained turns)"`
}

// SessionRecallOutput represents the structured output of a session recall.
type SessionRecallOutput struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
	Count     int            `json:"count"`
}

// handleSessionRecall processes a session recall request via MCP.
func (s *Server) handleSessionRecall(_ context.Context, _ *mcp.CallToolRequest, input SessionRecallInput) (*mcp.CallToolResult, SessionRecallOutput, error) {
	if input.SessionID == "" {
		return toolError("session_id is required"), SessionRecallOutput{}, nil
	}

	turns := s.config.Sessions.RecentTurns(input.SessionID, input.N)
	if turns == nil {
		turns = []session.Turn{}
	}

	output := SessionRecallOutput{
		SessionID: input.SessionID,
		Turns:     turns,
		Count:     len(turns),
	}
	return toolResult(output)
}
