package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dbjwhs/cql-sub000/internal/optimize"
	"github.com/dbjwhs/cql-sub000/internal/template"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	store, err := template.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("template store: %v", err)
	}
	flags := optimize.DefaultFlags()
	flags.Mode = optimize.ModeLocalOnly
	return New(Options{
		Version:   "test",
		Optimizer: optimize.NewCompiler(nil, optimize.DefaultCompilerConfig()),
		Templates: store,
		Flags:     flags,
	})
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestCompileQueryTool(t *testing.T) {
	s := testServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"query": `@copyright "MIT License" "2026 dbjwhs"
@language "Go"
@description "implement a worker pool"
@test "workers drain the queue"`,
	}

	result, err := s.handleCompileQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("handleCompileQuery: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	out := toolText(t, result)
	if !strings.Contains(out, "Please generate Go code that:") {
		t.Errorf("compiled prompt missing request line: %q", out)
	}
	if !strings.Contains(out, "workers drain the queue") {
		t.Errorf("compiled prompt missing test case: %q", out)
	}
}

func TestCompileQueryToolRejectsInvalid(t *testing.T) {
	s := testServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": `@language "Go" @description "no copyright"`}
	result, err := s.handleCompileQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("handleCompileQuery: %v", err)
	}
	if !result.IsError {
		t.Error("missing copyright should fail validation")
	}

	req.Params.Arguments = map[string]any{}
	result, _ = s.handleCompileQuery(context.Background(), req)
	if !result.IsError {
		t.Error("missing query argument should be a tool error")
	}
}

func TestCompileQueryToolScreensContent(t *testing.T) {
	s := testServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"query": `@copyright "MIT License" "2026 dbjwhs"
@language "Go"
@description "cleanup; rm temp files afterwards"`,
	}
	result, err := s.handleCompileQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("handleCompileQuery: %v", err)
	}
	if !result.IsError {
		t.Error("injection pattern in a directive should be a tool error")
	}
	if !strings.Contains(toolText(t, result), "rejected query") {
		t.Errorf("unexpected tool output: %q", toolText(t, result))
	}
}

func TestOptimizeQueryTool(t *testing.T) {
	s := testServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"query": `@copyright "MIT License" "2026 dbjwhs"
@language "Go"
@description "implement a cache"`,
		"goal": "reduce_tokens",
	}

	result, err := s.handleOptimizeQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("handleOptimizeQuery: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "implement a cache") {
		t.Errorf("optimized prompt lost content: %q", toolText(t, result))
	}
}

func TestOptimizeQueryToolRejectsBadGoal(t *testing.T) {
	s := testServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": `@language "Go" @description "x"`, "goal": "make_it_nice"}
	result, _ := s.handleOptimizeQuery(context.Background(), req)
	if !result.IsError {
		t.Error("unknown goal should be a tool error")
	}
}

func TestListTemplatesTool(t *testing.T) {
	s := testServer(t)
	s.templates.Save("user/pool", "@description \"worker pool scaffold\"\n@language \"Go\"\n")

	req := mcp.CallToolRequest{}
	result, err := s.handleListTemplates(context.Background(), req)
	if err != nil {
		t.Fatalf("handleListTemplates: %v", err)
	}
	out := toolText(t, result)
	if !strings.Contains(out, "user/pool") || !strings.Contains(out, "worker pool scaffold") {
		t.Errorf("template listing incomplete: %q", out)
	}
}

func TestListTemplatesToolEmpty(t *testing.T) {
	s := testServer(t)
	req := mcp.CallToolRequest{}
	result, err := s.handleListTemplates(context.Background(), req)
	if err != nil {
		t.Fatalf("handleListTemplates: %v", err)
	}
	if !strings.Contains(toolText(t, result), "No templates found") {
		t.Errorf("unexpected empty listing: %q", toolText(t, result))
	}
}
