// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes NovaTask tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/novatask/novatask/internal/models"
	"github.com/novatask/novatask/internal/taskservice"
)

// Server wraps the MCP server with NovaTask tools.
type Server struct {
	mcp *server.MCPServer
	svc *taskservice.Service
}

// New creates a new MCP server with all NovaTask tools registered.
func New(svc *taskservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"NovaTask",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Create a task from a quick-add line. The line supports "+
			"!priority, #category, and @due-date tokens; read the syntax first via "+
			"the get_quick_add_format tool or the novatask://quick-add-format resource."),
		mcp.WithString("line", mcp.Required(), mcp.Description("Quick-add line, e.g. 'Buy milk !high #errands @tomorrow'")),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, optionally filtered by status and category."),
		mcp.WithString("status", mcp.Description("Status filter: all, active, or completed (default all)")),
		mcp.WithString("category", mcp.Description("Category filter (empty or 'all' for any)")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Toggle the completion flag of a task."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.completeTask)

	s.mcp.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task permanently."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.deleteTask)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search through task text and categories."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("get_task_stats",
		mcp.WithDescription("Return total/active/completed/overdue task counters."),
	), s.getTaskStats)

	s.mcp.AddTool(mcp.NewTool("get_quick_add_format",
		mcp.WithDescription("Returns the canonical quick-add line syntax. "+
			"Call this before creating tasks to ensure correct token usage."),
	), s.getQuickAddFormat)

	// Resource: quick-add format contract.
	s.mcp.AddResource(
		mcp.NewResource("novatask://quick-add-format", "Quick-Add Format",
			mcp.WithResourceDescription("Canonical quick-add line syntax for creating tasks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuickAddFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) addTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.QuickAdd(ctx, line)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", task.Text, task.ID)), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := models.Filter{}
	if v, err := req.RequireString("status"); err == nil {
		filter.Status = v
	}
	if v, err := req.RequireString("category"); err == nil {
		filter.Category = v
	}

	tasks, err := s.svc.ListAll(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks found"), nil
	}

	var lines []string
	for _, t := range tasks {
		mark := "[ ]"
		if t.Done {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s (%s, %s", mark, t.Text, t.ID, t.Priority)
		if t.Category != "" {
			line += ", #" + t.Category
		}
		if t.DueDate != nil {
			line += ", due " + t.DueDate.Format("2006-01-02")
		}
		line += ")"
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) completeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.Toggle(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	state := "active"
	if task.Done {
		state = "completed"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", state, task.Text)), nil
}

func (s *Server) deleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getTaskStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getQuickAddFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuickAddContract), nil
}

func (s *Server) readQuickAddFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "novatask://quick-add-format",
			MIMEType: "text/markdown",
			Text:     QuickAddContract,
		},
	}, nil
}
