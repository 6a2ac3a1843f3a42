package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/overseer/internal/report"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from an ovr_run or ovr_check result"`
	Stream  string `json:"stream,omitempty" jsonschema:"stdout or stderr. Defaults to both."`
	Pattern string `json:"pattern,omitempty" jsonschema:"substring to search for. Empty returns every line."`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	stream, err := report.ParseStream(params.Stream)
	if err != nil {
		return errorResult(err.Error())
	}
	if h.store == nil {
		return errorResult("run history is disabled")
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	matches := report.Grep(rec, stream, params.Pattern)
	if len(matches) == 0 {
		return textResult(fmt.Sprintf("No lines matching %q in run %s (%s).", params.Pattern, rec.ID, rec.Command()))
	}
	return textResult(formatInspectOutput(rec, matches))
}

func formatInspectOutput(rec *report.RunRecord, matches []report.Match) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rec.ID, rec.Command())
	fmt.Fprintf(&b, "Verdict: %s, exit %s\n", rec.Verdict, rec.ExitLabel())
	fmt.Fprintf(&b, "%d matching lines:\n", len(matches))
	fmt.Fprintln(&b)
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", m.Stream, m.Line, m.Text)
	}
	return b.String()
}
