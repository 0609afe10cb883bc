package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"raceform/internal/merge"
	"raceform/internal/relation"
	"raceform/internal/service"
)

func (s *Server) registerJobTools() {
	s.mcp.AddTool(mcp.NewTool("list_merge_jobs",
		mcp.WithDescription("List stored merge jobs with their triggers and last run status"),
	), s.handleListJobs)

	s.mcp.AddTool(mcp.NewTool("create_merge_job",
		mcp.WithDescription("Store a re-runnable merge job. Trigger types: manual, schedule (cron expression), file_watch (path to the source snapshot)"),
		mcp.WithString("name", mcp.Description("Job name"), mcp.Required()),
		mcp.WithString("source", mcp.Description("Source snapshot path (or DSN)"), mcp.Required()),
		mcp.WithString("destination", mcp.Description("Destination database path (or DSN)"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name (default \"data\")")),
		mcp.WithString("triggerType", mcp.Description("manual | schedule | file_watch (default manual)")),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression or watch path, per trigger type")),
	), s.handleCreateJob)

	s.mcp.AddTool(mcp.NewTool("run_merge_job",
		mcp.WithDescription("🛑 DESTRUCTIVE: Execute a stored merge job by ID"),
		mcp.WithString("jobId", mcp.Description("Merge job ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunJob)

	s.mcp.AddTool(mcp.NewTool("list_run_logs",
		mcp.WithDescription("List recent run logs for a merge job"),
		mcp.WithString("jobId", mcp.Description("Merge job ID"), mcp.Required()),
	), s.handleListRunLogs)
}

func (s *Server) handleListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.merges.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jsonResult(jobs)
}

func (s *Server) handleCreateJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	source := req.GetString("source", "")
	destination := req.GetString("destination", "")
	if name == "" || source == "" || destination == "" {
		return nil, fmt.Errorf("name, source and destination are required")
	}
	table := req.GetString("table", "")

	job, err := s.merges.CreateJob(ctx, service.CreateJobInput{
		Name: name,
		Config: merge.Config{
			Source:      relation.Config{DSN: source, Table: table},
			Destination: relation.Config{DSN: destination, Table: table},
		},
		TriggerType:   req.GetString("triggerType", merge.TriggerManual),
		TriggerConfig: req.GetString("triggerConfig", ""),
		Enabled:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return jsonResult(job)
}

func (s *Server) handleRunJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	result, err := s.merges.RunJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("run job: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleListRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := req.GetString("jobId", "")
	if jobID == "" {
		return nil, fmt.Errorf("jobId is required")
	}
	logs, err := s.merges.ListRunLogs(jobID)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return jsonResult(logs)
}
