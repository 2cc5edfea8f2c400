package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// Server is the API server for the mnemo memory system
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. Collaborators are injected to allow
// sharing with the scheduler and CLI commands.
func NewServer(config Config) (*Server, error) {
	if config.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: config.Logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/chat/:session/turns", s.handleAppendTurn)
	app.Get("/chat/:session/turns", s.handleRecentTurns)
	app.Delete("/chat/:session", s.handleDeleteSession)

	app.Post("/memory/distill/:session", s.handleDistill)
	app.Post("/memory/promote", s.handlePromote)
	app.Get("/memory/search", s.handleSearch)

	app.Get("/sessions/stats", s.handleSessionStats)

	return s, nil
}

// MountMCP attaches an MCP streamable-HTTP handler under /mcp.
func (s *Server) MountMCP(handler http.Handler) {
	s.app.All("/mcp", adaptor.HTTPHandler(handler))
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Test dispatches a request against the app without a network listener.
// Used by handler tests.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}
