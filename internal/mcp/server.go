package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/auth"
	"github.com/fyrsmithlabs/docmanager/internal/commands"
	"github.com/fyrsmithlabs/docmanager/internal/documents"
)

// Server is an MCP server backed by the document commands.
type Server struct {
	mcp          *mcp.Server
	commands     *commands.Handler
	docs         *documents.Service
	toolRegistry *ToolRegistry
	metrics      *Metrics
	caller       commands.Caller
	logger       *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "docmanager")
	Name string

	// Version is the server version (default: commands.Version)
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// Caller runs every command. The stdio transport serves a local
	// operator, so the default caller holds memory permissions.
	Caller commands.Caller
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "docmanager",
		Version: commands.Version,
		Logger:  zap.NewNop(),
		Caller:  OperatorCaller(),
	}
}

// OperatorCaller is the caller used for local stdio sessions.
func OperatorCaller() commands.Caller {
	return commands.Caller{
		UserID: "mcp",
		Identity: &auth.Identity{
			Subject:     "mcp",
			Permissions: map[string][]string{"MEMORY": {"EDIT", "DELETE"}},
		},
	}
}

// NewServer creates a new MCP server with the given services.
func NewServer(cfg *Config, cmds *commands.Handler, docs *documents.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cmds == nil {
		return nil, fmt.Errorf("command handler is required")
	}
	if docs == nil {
		return nil, fmt.Errorf("document service is required")
	}
	name, version, logger := cfg.Name, cfg.Version, cfg.Logger
	if name == "" {
		name = "docmanager"
	}
	if version == "" {
		version = commands.Version
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	caller := cfg.Caller
	if caller.Identity == nil && caller.UserID == "" {
		caller = OperatorCaller()
	}

	s := &Server{
		mcp:          mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		commands:     cmds,
		docs:         docs,
		toolRegistry: NewToolRegistry(),
		metrics:      NewMetrics(logger),
		caller:       caller,
		logger:       logger.Named("mcp"),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Registry returns the metadata of the registered tools.
func (s *Server) Registry() *ToolRegistry { return s.toolRegistry }

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport", zap.Int("tools", s.toolRegistry.Count()))
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over transport. Used with in-memory
// transports.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
