// Package mcp provides the Overseer MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/overseer"
	"github.com/deixis/overseer/internal/config"
	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
	"github.com/deixis/overseer/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *workflow.Engine
	runner *runner.Runner // retained for updateWorkspaceFromRoots
	store  report.Store
}

// NewServer creates an MCP server with all Overseer tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, logger *log.Logger) *mcp.Server {
	h := &handler{
		engine: &workflow.Engine{
			Config: cfg,
			Runner: r,
			Store:  store,
			Logger: logger,
		},
		runner: r,
		store:  store,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "overseer", Version: overseer.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "ovr_workspace",
		Description: "Summarise the workspace: root directory, defaults, configured profiles and check steps.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ovr_run",
		Description: `Run an external program under supervision and return its verdict.

Pass either argv, or the name of a configured profile (plus optional extra args).
Stdout and stderr are captured line by line and judged by the policy: exit-code
(default) or keyword, where lines containing a fail keyword fail the run and lines
containing a succeed keyword pass it. interrupt_on_failure kills the process as soon
as a failure is seen; timeout_ms bounds the run. Results are stored for drill-down
via ovr_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ovr_check",
		Description: `Run the configured check profiles in sequence and stop on the first failure.

Steps default to the check.steps list from the configuration, or every profile.
Each step's run is stored for drill-down via ovr_inspect.`,
	}, h.checkHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ovr_inspect",
		Description: `Search the captured output of a stored run.

Use the run_id from an ovr_run or ovr_check result. Returns the lines of stdout
and/or stderr containing pattern, with line numbers. An empty pattern returns
every line.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "ovr_history",
		Description: "List recent runs, most recent first, with their verdict, exit code and duration.",
	}, h.historyHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and updates the
// handler's engine, runner, and config if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		return
	}

	h.runner.Workspace = loaded.RepoRoot
	h.runner.MaxOutput = loaded.Config.MaxOutputBytes()
	h.engine.Config = loaded.Config
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
