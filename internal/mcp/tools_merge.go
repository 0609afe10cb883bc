package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"raceform/internal/merge"
	"raceform/internal/relation"
)

func (s *Server) registerMergeTools() {
	s.mcp.AddTool(mcp.NewTool("run_merge",
		mcp.WithDescription("🛑 DESTRUCTIVE: Merge new rows from a reference snapshot into a local database. Inserts every source row whose (race_id, horse) key is absent from the destination; existing rows are never modified."),
		mcp.WithString("source", mcp.Description("Source snapshot path (or DSN)"), mcp.Required()),
		mcp.WithString("destination", mcp.Description("Destination database path (or DSN)"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name (default \"data\")")),
		mcp.WithString("driver", mcp.Description("Driver: sqlite (default), mysql, postgres")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunMerge)

	s.mcp.AddTool(mcp.NewTool("preview_merge",
		mcp.WithDescription("Dry-run a merge: report how many rows would be inserted without writing anything"),
		mcp.WithString("source", mcp.Description("Source snapshot path (or DSN)"), mcp.Required()),
		mcp.WithString("destination", mcp.Description("Destination database path (or DSN)"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name (default \"data\")")),
		mcp.WithString("driver", mcp.Description("Driver: sqlite (default), mysql, postgres")),
	), s.handlePreviewMerge)

	s.mcp.AddTool(mcp.NewTool("inspect_relation",
		mcp.WithDescription("Show the column schema and row count of a table in a database"),
		mcp.WithString("dsn", mcp.Description("Database path (or DSN)"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name (default \"data\")")),
		mcp.WithString("driver", mcp.Description("Driver: sqlite (default), mysql, postgres")),
	), s.handleInspectRelation)
}

// mergeConfigFromArgs builds a merge.Config from the common tool arguments.
func mergeConfigFromArgs(req mcp.CallToolRequest, dryRun bool) (merge.Config, error) {
	source := req.GetString("source", "")
	destination := req.GetString("destination", "")
	if source == "" || destination == "" {
		return merge.Config{}, fmt.Errorf("source and destination are required")
	}
	table := req.GetString("table", "")
	driver := req.GetString("driver", "")

	return merge.Config{
		Source:      relation.Config{Driver: driver, DSN: source, Table: table},
		Destination: relation.Config{Driver: driver, DSN: destination, Table: table},
		DryRun:      dryRun,
	}, nil
}

func (s *Server) handleRunMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := mergeConfigFromArgs(req, false)
	if err != nil {
		return nil, err
	}
	result, err := s.merges.RunAdHoc(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handlePreviewMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := mergeConfigFromArgs(req, true)
	if err != nil {
		return nil, err
	}
	result, err := s.merges.RunAdHoc(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleInspectRelation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dsn := req.GetString("dsn", "")
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	table := req.GetString("table", "")
	if table == "" {
		table = merge.DefaultTable
	}
	driver := req.GetString("driver", "")

	rel, err := relation.Open(ctx, relation.Config{Driver: driver, DSN: dsn, Table: table})
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rel.Close()

	cols, err := rel.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	count, err := rel.RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("row count: %w", err)
	}

	return jsonResult(map[string]any{
		"table":    table,
		"columns":  cols,
		"rowCount": count,
	})
}
