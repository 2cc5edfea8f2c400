// Package mcp provides an MCP (Model Context Protocol) server for the mnemo
// memory system.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/session"
	"github.com/meridianlabs/mnemo/pkg/utils"
)

type Config struct {
	// Semantic is the long-term tier the memory_search tool queries.
	Semantic *memory.Tier

	// Episodic optionally widens memory_search to the episodic tier.
	Episodic *memory.Tier

	// Sessions enables the session_recall tool.
	Sessions *session.Store

	// Noop for empty MCP server
	Noop bool
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mnemo",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Semantic == nil {
		return nil, errors.New("semantic tier is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        memorySearchToolName,
		Description: memorySearchDescription,
	}, s.handleMemorySearch)

	// Add session recall tool if a session store is configured
	if c.Sessions != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        sessionRecallToolName,
			Description: sessionRecallDescription,
		}, s.handleSessionRecall)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
