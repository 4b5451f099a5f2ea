package mcp

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Checker runs one duplicate check.
type Checker interface {
	Check(ctx context.Context, req detector.Request) (*detector.Report, error)
}

// Server is an MCP server backed by a Checker.
type Server struct {
	mcp     *mcp.Server
	checker Checker
	metrics *Metrics
	logger  *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "ticketdup")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *logging.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ticketdup",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates an MCP server with the ticket tools registered.
func NewServer(cfg *Config, checker Checker) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if checker == nil {
		return nil, fmt.Errorf("checker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("mcp")

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		checker: checker,
		metrics: NewMetrics(logger),
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves on t.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	s.logger.Info(ctx, "starting MCP server")
	if err := s.mcp.Run(ctx, t); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
