package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/overseer/internal/gotest"
	"github.com/deixis/overseer/internal/report"
)

// CheckResult holds the full outcome of a check run.
type CheckResult struct {
	Steps     []StepResult `json:"steps"`
	FailedIdx int          `json:"failed_idx"` // -1 if all passed
}

// Passed reports whether every step passed.
func (r *CheckResult) Passed() bool {
	return r.FailedIdx < 0
}

// StepResult holds the outcome of a single check step.
type StepResult struct {
	Name   string            `json:"name"`
	Status string            `json:"status"`           // pass, fail, skipped
	Detail string            `json:"detail,omitempty"` // why the step failed
	Record *report.RunRecord `json:"record,omitempty"` // nil when the step never ran
}

// Check runs the given profiles in sequence, stopping on the first one that
// does not succeed. With no steps it runs the configured check steps.
func (e *Engine) Check(ctx context.Context, steps []string) (*CheckResult, error) {
	if len(steps) == 0 {
		steps = e.config().CheckSteps()
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no check steps configured")
	}

	results := make([]StepResult, len(steps))
	for i, step := range steps {
		results[i] = StepResult{Name: step, Status: "skipped"}
	}

	failedIdx := -1
	for i, step := range steps {
		req, err := e.Request(step, nil)
		if err != nil {
			results[i] = StepResult{Name: step, Status: "fail", Detail: err.Error()}
			failedIdx = i
			break
		}

		rec, err := e.Run(ctx, step, req)
		results[i] = StepResult{Name: step, Status: "pass", Record: rec}
		switch {
		case err != nil:
			results[i].Status = "fail"
			results[i].Detail = err.Error()
		case !rec.Succeeded():
			results[i].Status = "fail"
			results[i].Detail = failureDetail(rec)
		}
		e.logger().Info("check step", "step", step, "status", results[i].Status)

		if results[i].Status == "fail" {
			failedIdx = i
			break
		}
	}

	return &CheckResult{Steps: results, FailedIdx: failedIdx}, nil
}

// failureDetail summarises why a run did not succeed.
func failureDetail(rec *report.RunRecord) string {
	if rec.Error != "" {
		return rec.Error
	}
	if s := gotest.Summarize(rec.InfoStream); s != nil && s.Status == "FAIL" {
		return s.Headline()
	}
	if line := FirstLine(rec.ErrorStream); line != "" {
		return fmt.Sprintf("exit %s: %s", rec.ExitLabel(), line)
	}
	return fmt.Sprintf("exit %s", rec.ExitLabel())
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func (r *CheckResult) String() string {
	var b strings.Builder
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "%-8s %s", s.Status, s.Name)
		if s.Detail != "" {
			fmt.Fprintf(&b, " (%s)", s.Detail)
		}
		b.WriteByte('\n')
	}
	if r.Passed() {
		b.WriteString("All checks passed.\n")
	} else {
		fmt.Fprintf(&b, "Check failed at %s.\n", r.Steps[r.FailedIdx].Name)
	}
	return b.String()
}
