package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ workspaceParams) (*sdkmcp.CallToolResult, any, error) {
	var b strings.Builder

	cfg := h.engine.Config
	fmt.Fprintf(&b, "Workspace: %s\n", h.runner.Workspace)
	if cfg != nil {
		if t := cfg.Timeout(); t > 0 {
			fmt.Fprintf(&b, "Default timeout: %s\n", t)
		} else {
			fmt.Fprintln(&b, "Default timeout: none")
		}
		fmt.Fprintf(&b, "Output limit: %d bytes per stream\n", cfg.MaxOutputBytes())
	}
	fmt.Fprintln(&b)

	names := h.engine.Profiles()
	if len(names) == 0 {
		fmt.Fprintln(&b, "Profiles: none configured. Use ovr_run with argv.")
		return textResult(b.String())
	}

	fmt.Fprintf(&b, "Profiles (%d):\n", len(names))
	for _, name := range names {
		p, _ := cfg.Profile(name)
		argv, err := p.Argv()
		cmd := strings.Join(argv, " ")
		if err != nil {
			cmd = fmt.Sprintf("(invalid: %v)", err)
		}
		kind := p.Policy.Kind
		if kind == "" {
			kind = "default"
		}
		fmt.Fprintf(&b, "  %s: %s [policy %s", name, cmd, kind)
		if t := p.Timeout(0); t > 0 {
			fmt.Fprintf(&b, ", timeout %s", t)
		}
		if p.InterruptOnFailure {
			b.WriteString(", interrupt on failure")
		}
		b.WriteString("]\n")
	}
	if steps := cfg.CheckSteps(); len(steps) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Check steps: %s\n", strings.Join(steps, ", "))
	}

	return textResult(b.String())
}
