package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"

	"github.com/dbjwhs/cql-sub000/internal/audit"
	"github.com/dbjwhs/cql-sub000/internal/history"
	"github.com/dbjwhs/cql-sub000/internal/logger"
	"github.com/dbjwhs/cql-sub000/internal/optimize"
	"github.com/dbjwhs/cql-sub000/internal/query"
	"github.com/dbjwhs/cql-sub000/internal/template"
)

// Server exposes query compilation over the Model Context Protocol on
// stdio, with scheduled maintenance for the cache, audit trail and
// run history.
type Server struct {
	mcpServer *server.MCPServer
	optimizer *optimize.Compiler
	templates *template.Store
	trail     *audit.Trail
	runs      *history.Store
	scheduler *cron.Cron
	flags     optimize.Flags
}

// Options carry the wired subsystems. Optimizer and Templates are
// required; Trail and Runs may be nil.
type Options struct {
	Version   string
	Optimizer *optimize.Compiler
	Templates *template.Store
	Trail     *audit.Trail
	Runs      *history.Store
	Flags     optimize.Flags
}

// New builds the MCP server and registers its tools.
func New(opts Options) *Server {
	m := server.NewMCPServer(
		"cql",
		opts.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: m,
		optimizer: opts.Optimizer,
		templates: opts.Templates,
		trail:     opts.Trail,
		runs:      opts.Runs,
		scheduler: cron.New(),
		flags:     opts.Flags,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "compile_query",
		Description: "Compile CQL directive text into a structured LLM prompt. Returns markdown, or JSON when the query carries @format json.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The CQL query text, e.g. @language \"Go\" @description \"a worker pool\".",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleCompileQuery)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "optimize_query",
		Description: "Compile a CQL query and optimize the resulting prompt. Falls back to deterministic local optimization when no LLM is available.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The CQL query text to compile and optimize.",
				},
				"goal": map[string]any{
					"type":        "string",
					"description": "Optimization goal: reduce_tokens, improve_accuracy, domain_specific or balanced.",
				},
				"domain": map[string]any{
					"type":        "string",
					"description": "Domain hint for domain_specific optimization.",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleOptimizeQuery)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_templates",
		Description: "List stored CQL templates with their descriptions.",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, s.handleListTemplates)
}

func (s *Server) handleCompileQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := req.Params.Arguments["query"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	nodes, err := query.Parse(text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse error: %v", err)), nil
	}
	if err := query.Screen(nodes); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rejected query: %v", err)), nil
	}
	if result := query.NewValidator().Validate(nodes); result.HasErrors() {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %v", result.Err())), nil
	}

	compiled, err := query.NewCompiler().CompileNodes(nodes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compile error: %v", err)), nil
	}

	s.writeAudit(audit.Record{Event: "mcp.compile_query", Success: true})
	return mcp.NewToolResultText(compiled), nil
}

func (s *Server) handleOptimizeQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := req.Params.Arguments["query"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	flags := s.flags
	if goalArg, ok := req.Params.Arguments["goal"].(string); ok && goalArg != "" {
		goal, err := optimize.ParseGoal(goalArg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		flags.Goal = goal
	}
	if domain, ok := req.Params.Arguments["domain"].(string); ok && domain != "" {
		flags.Domain = domain
	}

	compiled, err := query.Compile(text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compile error: %v", err)), nil
	}

	result := s.optimizer.Compile(ctx, compiled, flags)
	if !result.Success {
		return mcp.NewToolResultError(result.ErrorMessage), nil
	}

	s.writeAudit(audit.Record{
		Event:    "mcp.optimize_query",
		Mode:     flags.Mode.String(),
		Goal:     flags.Goal.String(),
		CacheHit: result.Metrics.CacheHit,
		UsedLLM:  result.Metrics.UsedLLM,
		Cost:     result.Metrics.ActualCost,
		Success:  true,
	})
	return mcp.NewToolResultText(result.CompiledPrompt), nil
}

func (s *Server) handleListTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.templates.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list templates: %v", err)), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("No templates found."), nil
	}

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		if meta, err := s.templates.GetMetadata(name); err == nil && meta.Description != "" {
			sb.WriteString(" - ")
			sb.WriteString(meta.Description)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) writeAudit(record audit.Record) {
	if s.trail == nil {
		return
	}
	if err := s.trail.Write(record); err != nil {
		logger.Warn("failed to write audit record: %v", err)
	}
}

// startMaintenance schedules periodic cleanup: expired cache entries
// hourly, audit files and old runs daily.
func (s *Server) startMaintenance() {
	s.scheduler.AddFunc("@hourly", func() {
		removed := s.optimizer.Cache().CleanupExpired()
		if removed > 0 {
			logger.Debug("cache maintenance removed %d expired entries", removed)
		}
	})
	if s.trail != nil && s.trail.Enabled() {
		s.scheduler.AddFunc("@daily", func() {
			if err := s.trail.Cleanup(); err != nil {
				logger.Warn("audit maintenance failed: %v", err)
			}
		})
	}
	if s.runs != nil {
		s.scheduler.AddFunc("@daily", func() {
			if _, err := s.runs.PruneRuns(30 * 24 * time.Hour); err != nil {
				logger.Warn("history maintenance failed: %v", err)
			}
		})
	}
	s.scheduler.Start()
}

// Serve runs the MCP server on stdio until the client disconnects.
func (s *Server) Serve() error {
	s.startMaintenance()
	defer s.scheduler.Stop()

	logger.Info("cql MCP server listening on stdio")
	return server.ServeStdio(s.mcpServer)
}
