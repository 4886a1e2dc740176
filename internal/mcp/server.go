// ABOUTME: MCP server setup for Garmin Connect health data.
// ABOUTME: Wraps the MCP server around the session manager.
package mcp

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/garmin-mcp/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Sessions hands out the authenticated Garmin session.
type Sessions interface {
	Session(ctx context.Context) (*session.Session, error)
	Status() session.Status
}

// Server wraps the MCP server with Garmin access.
type Server struct {
	mcpServer *mcp.Server
	sessions  Sessions
	logger    *log.Logger
	now       func() time.Time
	version   string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to stdout.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new MCP server backed by sessions.
func NewServer(sessions Sessions, opts ...Option) (*Server, error) {
	s := &Server{
		sessions: sessions,
		logger:   log.New(io.Discard),
		now:      time.Now,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "garmin",
			Version: s.version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t, for embedding and tests.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}
