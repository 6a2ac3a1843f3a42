package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/overseer/internal/workflow"
)

type checkParams struct {
	Steps []string `json:"steps,omitempty" jsonschema:"profile names to run in order. Defaults to the configured check steps."`
}

func (h *handler) checkHandler(ctx context.Context, req *mcp.CallToolRequest, params checkParams) (*mcp.CallToolResult, any, error) {
	result, err := h.engine.Check(ctx, params.Steps)
	if err != nil {
		return errorResult(fmt.Sprintf("check failed: %v", err))
	}
	return textResult(formatCheck(result))
}

func formatCheck(result *workflow.CheckResult) string {
	var b strings.Builder

	if result.Passed() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Steps:")
	for _, s := range result.Steps {
		if s.Record != nil {
			fmt.Fprintf(&b, "  %s: %s (run %s, exit %s)\n", s.Name, s.Status, s.Record.ID, s.Record.ExitLabel())
		} else {
			fmt.Fprintf(&b, "  %s: %s\n", s.Name, s.Status)
		}
	}
	fmt.Fprintln(&b)

	if result.Passed() {
		fmt.Fprintln(&b, "All check steps passed.")
		return b.String()
	}

	failed := result.Steps[result.FailedIdx]
	fmt.Fprintf(&b, "Failed step: %s\n", failed.Name)
	if failed.Detail != "" {
		fmt.Fprintf(&b, "  %s\n", failed.Detail)
	}
	if failed.Record != nil {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Run: %s\n", failed.Record.ID)
		fmt.Fprintf(&b, "Inspect with ovr_inspect(run_id=%q, pattern=\"<text>\").\n", failed.Record.ID)
	}
	return b.String()
}
