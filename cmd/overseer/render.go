package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
	"github.com/deixis/overseer/internal/workflow"
)

// exitCodeFor maps a run to the process exit code of the CLI: 0 on
// success, the child's own code when it failed with one, 1 otherwise.
func exitCodeFor(rec *report.RunRecord) int {
	if rec.Succeeded() {
		return 0
	}
	if rec.ExitCode > 0 && rec.ExitCode != runner.ExitInterrupted && rec.ExitCode != runner.ExitException {
		return rec.ExitCode
	}
	return 1
}

// verdictLine renders the one-line summary printed after a run.
func verdictLine(rec *report.RunRecord) string {
	var b strings.Builder
	switch rec.Verdict {
	case runner.Success:
		b.WriteString(successStyle.Render("✓ success"))
	case runner.Failure:
		b.WriteString(errorStyle.Render("✗ failure"))
	default:
		b.WriteString(warningStyle.Render("? unresolved"))
	}
	fmt.Fprintf(&b, " exit %s in %s", rec.ExitLabel(), formatDuration(rec.Duration))
	if rec.Interrupted {
		b.WriteString(warningStyle.Render(" (interrupted)"))
	}
	b.WriteString(mutedStyle.Render(" run " + rec.ID))
	if rec.Error != "" {
		fmt.Fprintf(&b, "\n  %s %s", errorStyle.Render(rec.ErrorKind+":"), rec.Error)
	}
	if rec.Truncated {
		fmt.Fprintf(&b, "\n  %s", warningStyle.Render(fmt.Sprintf("output truncated (%s stdout, %s stderr kept)",
			humanize.IBytes(uint64(len(rec.InfoStream))), humanize.IBytes(uint64(len(rec.ErrorStream))))))
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func formatCheck(res *workflow.CheckResult) string {
	var b strings.Builder
	for _, s := range res.Steps {
		var status string
		switch s.Status {
		case "pass":
			status = successStyle.Render("ok")
		case "fail":
			status = errorStyle.Render("FAIL")
		default:
			status = mutedStyle.Render("-")
		}
		fmt.Fprintf(&b, "  %-15s %s", s.Name, status)
		if s.Record != nil {
			fmt.Fprintf(&b, " %s", mutedStyle.Render(formatDuration(s.Record.Duration)))
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if res.Passed() {
		b.WriteString(successStyle.Render("ok") + "\n")
		return b.String()
	}
	failed := res.Steps[res.FailedIdx]
	fmt.Fprintf(&b, "%s %s", errorStyle.Render("FAIL"), failed.Name)
	if failed.Detail != "" {
		fmt.Fprintf(&b, ": %s", failed.Detail)
	}
	b.WriteByte('\n')
	if failed.Record != nil {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render("inspect with: overseer inspect "+failed.Record.ID))
	}
	return b.String()
}

func formatHistory(recs []*report.RunRecord, now time.Time) string {
	if len(recs) == 0 {
		return "No runs recorded yet.\n"
	}
	var b strings.Builder
	for _, rec := range recs {
		name := rec.Profile
		if name == "" {
			name = rec.Command()
		}
		verdict := rec.Verdict.String()
		switch rec.Verdict {
		case runner.Success:
			verdict = successStyle.Render(verdict)
		case runner.Failure:
			verdict = errorStyle.Render(verdict)
		}
		fmt.Fprintf(&b, "%s  %-14s  %s  exit %-11s %8s  %s\n",
			rec.ID, humanize.RelTime(rec.StartedAt, now, "ago", "from now"),
			verdict, rec.ExitLabel(), formatDuration(rec.Duration), name)
	}
	return b.String()
}

func formatMatches(rec *report.RunRecord, matches []report.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("run "+rec.ID), mutedStyle.Render(rec.Command()))
	for _, m := range matches {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%s:%d:", m.Stream, m.Line)), m.Text)
	}
	return b.String()
}
