// Package mcp exposes the session registry as an MCP server. Clients open
// windows, create panes in them and pull pane events from the window's
// queue.
package mcp

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/acolita/terminal-division/internal/config"
	"github.com/acolita/terminal-division/internal/session"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer *server.MCPServer
	registry  paneRegistry
	config    *config.Config

	mu         sync.Mutex
	windows    map[int]*session.QueueWindow
	nextWindow int
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRegistry sets the session registry the tools operate on.
func WithRegistry(r paneRegistry) ServerOption {
	return func(s *Server) {
		s.registry = r
	}
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg *config.Config, version string, opts ...ServerOption) *Server {
	mcpServer := server.NewMCPServer(
		"terminal-division",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		config:    cfg,
		windows:   make(map[int]*session.QueueWindow),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = session.NewRegistry(cfg)
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio transport.
func (s *Server) Run() error {
	slog.Info("starting MCP server on stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// Shutdown kills every pane and closes every window.
func (s *Server) Shutdown() {
	s.registry.KillAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.windows {
		w.Destroy()
		delete(s.windows, id)
	}
}

// UpdateConfig applies a new configuration at runtime. Running panes keep
// the settings they were created with.
func (s *Server) UpdateConfig(cfg *config.Config) {
	slog.Debug("applying config update")
	s.registry.UpdateConfig(cfg)

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	slog.Info("configuration hot-reloaded successfully")
}

// openWindow registers a new queue window and returns it.
func (s *Server) openWindow(queueSize int) *session.QueueWindow {
	s.mu.Lock()
	s.nextWindow++
	w := session.NewQueueWindow(s.nextWindow, queueSize)
	s.windows[w.ID()] = w
	s.mu.Unlock()

	s.registry.RegisterWindow(w)
	return w
}

func (s *Server) window(id int) (*session.QueueWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	if !ok {
		return nil, fmt.Errorf(errWindowNotFound, id)
	}
	return w, nil
}

// closeWindow kills the window's panes and stops event delivery to it.
func (s *Server) closeWindow(id int) error {
	s.mu.Lock()
	w, ok := s.windows[id]
	delete(s.windows, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf(errWindowNotFound, id)
	}
	w.Destroy()
	s.registry.KillAllForWindow(id)
	s.registry.UnregisterWindow(id)
	return nil
}
