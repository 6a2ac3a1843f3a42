package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/overseer/internal/config"
	"github.com/deixis/overseer/internal/gotest"
	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
)

type runParams struct {
	Argv               []string `json:"argv,omitempty" jsonschema:"program and arguments to execute (e.g. [\"go\", \"test\", \"./...\"]). Required unless profile is set."`
	Profile            string   `json:"profile,omitempty" jsonschema:"name of a configured profile to run instead of argv"`
	Args               []string `json:"args,omitempty" jsonschema:"extra arguments appended to the profile's command"`
	Dir                string   `json:"dir,omitempty" jsonschema:"working directory, relative to the workspace. Must stay inside the workspace."`
	Policy             string   `json:"policy,omitempty" jsonschema:"evaluation policy for argv runs: exit-code, keyword, or go-test (for go test -json output). Default: keyword when any keyword list is set, otherwise exit-code."`
	Ignore             []string `json:"ignore,omitempty" jsonschema:"keyword policy: lines containing any of these are ignored"`
	Fail               []string `json:"fail,omitempty" jsonschema:"keyword policy: lines containing any of these fail the run"`
	Succeed            []string `json:"succeed,omitempty" jsonschema:"keyword policy: lines containing any of these pass the run"`
	TimeoutMS          int      `json:"timeout_ms,omitempty" jsonschema:"interrupt the run after this many milliseconds. 0 uses the configured default."`
	InterruptOnFailure *bool    `json:"interrupt_on_failure,omitempty" jsonschema:"stop the process as soon as a stream reports failure"`
	InterruptOnSuccess *bool    `json:"interrupt_on_success,omitempty" jsonschema:"stop reading a stream as soon as it reports success"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	rreq, err := h.buildRequest(params)
	if err != nil {
		return errorResult(err.Error())
	}

	rec, err := h.engine.Run(ctx, params.Profile, rreq)
	if err != nil {
		// The run itself completed; only recording it failed.
		return textResult(formatRecord(rec) + fmt.Sprintf("\nWarning: %v\n", err))
	}
	return textResult(formatRecord(rec))
}

func (h *handler) buildRequest(params runParams) (*runner.Request, error) {
	var opts []runner.RequestOption
	if params.TimeoutMS > 0 {
		opts = append(opts, runner.WithInterruptAfter(time.Duration(params.TimeoutMS)*time.Millisecond))
	}
	if params.InterruptOnFailure != nil {
		opts = append(opts, runner.WithInterruptOnFailure(*params.InterruptOnFailure))
	}
	if params.InterruptOnSuccess != nil {
		opts = append(opts, runner.WithInterruptOnSuccess(*params.InterruptOnSuccess))
	}
	if params.Dir != "" {
		opts = append(opts, runner.WithDir(params.Dir))
	}

	if params.Profile != "" {
		if len(params.Argv) > 0 {
			return nil, fmt.Errorf("set either argv or profile, not both")
		}
		return h.engine.Request(params.Profile, params.Args, opts...)
	}
	if len(params.Argv) == 0 {
		return nil, fmt.Errorf("argv or profile is required")
	}

	policy, err := config.PolicyConfig{
		Kind:    params.Policy,
		Ignore:  params.Ignore,
		Fail:    params.Fail,
		Succeed: params.Succeed,
	}.Build()
	if err != nil {
		return nil, err
	}
	if params.TimeoutMS <= 0 && h.engine.Config != nil {
		opts = append([]runner.RequestOption{runner.WithInterruptAfter(h.engine.Config.Timeout())}, opts...)
	}
	return runner.NewRequest(params.Argv, policy, opts...)
}

// maxStreamLines is the maximum number of lines shown per stream.
const maxStreamLines = 40

func formatRecord(rec *report.RunRecord) string {
	var b strings.Builder

	if rec.Succeeded() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	fmt.Fprintf(&b, "Command: %s\n", rec.Command())
	fmt.Fprintf(&b, "Exit: %s\n", rec.ExitLabel())
	fmt.Fprintf(&b, "Verdict: %s\n", rec.Verdict)
	fmt.Fprintf(&b, "Duration: %s\n", rec.Duration.Round(time.Millisecond))
	if rec.Interrupted {
		fmt.Fprintln(&b, "Interrupted: yes")
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "Error (%s): %s\n", rec.ErrorKind, rec.Error)
	}
	if rec.Truncated {
		fmt.Fprintln(&b, "Output truncated at the configured limit.")
	}

	if s := gotest.Summarize(rec.InfoStream); s != nil {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Go tests:")
		fmt.Fprint(&b, s.String())
	} else {
		writeStream(&b, "stdout", rec.InfoStream)
	}
	writeStream(&b, "stderr", rec.ErrorStream)

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with ovr_inspect(run_id=%q, pattern=\"<text>\").\n", rec.ID)
	return b.String()
}

func writeStream(b *strings.Builder, name, text string) {
	if text == "" {
		return
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	fmt.Fprintln(b)
	if len(lines) > maxStreamLines {
		fmt.Fprintf(b, "%s (last %d of %d lines):\n", name, maxStreamLines, len(lines))
		lines = lines[len(lines)-maxStreamLines:]
	} else {
		fmt.Fprintf(b, "%s:\n", name)
	}
	for _, line := range lines {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
