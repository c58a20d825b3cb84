// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/AntanasZilinskas/fd2p/application/service"
	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Searcher provides title search operations for MCP tools.
type Searcher interface {
	Similar(ctx context.Context, query string, topN int) ([]search.Row, error)
	Lexical(ctx context.Context, query string, maxResults int) ([]search.Row, error)
}

// Server wraps the MCP server with the title search tools.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	version   string
	logger    *slog.Logger
}

// NewServer creates a new MCP server. A nil logger uses slog.Default.
func NewServer(searcher Searcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		version:  version,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"fd2p",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	similarTool := mcp.NewTool("search_similar_titles",
		mcp.WithDescription("Find song titles semantically similar to the query, most similar first"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free text to compare titles against"),
		),
		mcp.WithNumber("top_n",
			mcp.Description("Number of titles to return (default: 5)"),
		),
	)
	mcpServer.AddTool(similarTool, s.handleSimilar)

	titlesTool := mcp.NewTool("search_titles",
		mcp.WithDescription("Find song titles containing the query text"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to look for in titles"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of titles to return (default: 10)"),
		),
	)
	mcpServer.AddTool(titlesTool, s.handleTitles)

	versionTool := mcp.NewTool("get_version",
		mcp.WithDescription("Return the server version"),
	)
	mcpServer.AddTool(versionTool, s.handleVersion)
}

func (s *Server) handleSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	rows, err := s.searcher.Similar(ctx, query, request.GetInt("top_n", 0))
	if err != nil {
		return s.toolError("search_similar_titles", err, "Error fetching similar songs"), nil
	}
	return rowsResult(rows), nil
}

func (s *Server) handleTitles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	rows, err := s.searcher.Lexical(ctx, query, request.GetInt("max_results", 0))
	if err != nil {
		return s.toolError("search_titles", err, "Error executing search"), nil
	}
	return rowsResult(rows), nil
}

func (s *Server) handleVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.version), nil
}

// toolError logs err and returns a tool error without internal detail.
func (s *Server) toolError(tool string, err error, message string) *mcp.CallToolResult {
	if errors.Is(err, service.ErrEmptyQuery) {
		return mcp.NewToolResultError("query is required")
	}
	s.logger.Error("tool failed", slog.String("tool", tool), slog.Any("error", err))
	if errors.Is(err, service.ErrSearch) {
		return mcp.NewToolResultError(message)
	}
	return mcp.NewToolResultError("Error processing request")
}

func rowsResult(rows []search.Row) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(rows)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal results")
	}
	return mcp.NewToolResultText(string(jsonBytes))
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
