package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type historyParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to list. Default: 10."`
}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, params historyParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	recs, err := h.engine.History(limit)
	if err != nil {
		return errorResult(err.Error())
	}
	if len(recs) == 0 {
		return textResult("No runs recorded yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d most recent runs:\n\n", len(recs))
	for _, rec := range recs {
		name := rec.Profile
		if name == "" {
			name = rec.Command()
		}
		fmt.Fprintf(&b, "%s  %s  %-7s exit %-11s %8s  %s\n",
			rec.ID, rec.StartedAt.Local().Format(time.DateTime), rec.Verdict,
			rec.ExitLabel(), rec.Duration.Round(time.Millisecond), name)
	}
	return textResult(b.String())
}
