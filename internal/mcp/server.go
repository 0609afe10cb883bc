package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"raceform/internal/service"
)

// Server is the MCP server for the raceform tool. It exposes the merge
// operations so AI agents can inspect snapshots and reconcile them.
type Server struct {
	mcp    *server.MCPServer
	merges *service.MergeService
}

// New creates and configures a new MCP server with all tools registered.
func New(merges *service.MergeService) *Server {
	s := &Server{merges: merges}

	s.mcp = server.NewMCPServer(
		"raceform-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerMergeTools()
	s.registerJobTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult wraps a plain string in a tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
