package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
)

// RepeatResult holds the outcome of running one request several times.
type RepeatResult struct {
	Records    []*report.RunRecord `json:"records"`        // in launch order
	Idempotent bool                `json:"idempotent"`     // every run matched the first
	DivergedAt int                 `json:"diverged_at"`    // index of the first mismatch, or -1
	Diff       string              `json:"diff,omitempty"` // unified diff between run 0 and DivergedAt
}

// Repeat runs req n times with at most parallel runs in flight and reports
// whether every run produced the same observable outcome. A parallel value
// below one runs sequentially.
func (e *Engine) Repeat(ctx context.Context, name string, req *runner.Request, n, parallel int) (*RepeatResult, error) {
	if n < 1 {
		return nil, fmt.Errorf("repeat count must be at least 1, got %d", n)
	}
	if parallel < 1 {
		parallel = 1
	}

	records := make([]*report.RunRecord, n)
	var g errgroup.Group
	g.SetLimit(parallel)
	for i := range n {
		g.Go(func() error {
			rec, err := e.Run(ctx, name, req)
			records[i] = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &RepeatResult{Records: records, Idempotent: true, DivergedAt: -1}
	for i := 1; i < n; i++ {
		if report.Equivalent(records[0], records[i]) {
			continue
		}
		diff, err := report.Diff(records[0], records[i])
		if err != nil {
			return nil, err
		}
		out.Idempotent = false
		out.DivergedAt = i
		out.Diff = diff
		break
	}
	e.logger().Debug("repeat finished", "runs", n, "idempotent", out.Idempotent)
	return out, nil
}
