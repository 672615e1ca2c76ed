// Package mcp exposes the query layer over the Model Context Protocol so
// agent tooling can ask structural questions about the indexed repository.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/0ximu/mu/internal/index"
)

// ToolNames is the tool contract this server registers, in registration
// order.
var ToolNames = []string{"mu_query", "mu_deps", "mu_impact", "mu_cycles", "mu_stats"}

// Server wraps an MCP stdio server around an index service.
type Server struct {
	service *index.Service
	logger  *zap.Logger
	mcp     *server.MCPServer
}

// NewServer creates an MCP server exposing the mu tools.
func NewServer(service *index.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		"mu",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &Server{service: service, logger: logger, mcp: mcpServer}

	addQueryTool(mcpServer, service)
	addDepsTool(mcpServer, service)
	addImpactTool(mcpServer, service)
	addCyclesTool(mcpServer, service)
	addStatsTool(mcpServer, service)

	return s
}

// ServeStdio runs the server on stdin/stdout until the stream closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	if err := server.ServeStdio(s.mcp); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp serve: %w", err)
	}
	return nil
}
