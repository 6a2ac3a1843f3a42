// Package workflow provides the execution engine behind Overseer's run,
// check and repeat commands. It is consumed by both the MCP server and the
// CLI commands.
package workflow

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/deixis/overseer/internal/config"
	"github.com/deixis/overseer/internal/report"
	"github.com/deixis/overseer/internal/runner"
)

// Executor runs a single request to completion.
// Implemented by runner.Runner.
type Executor interface {
	Execute(ctx context.Context, req *runner.Request) *runner.Result
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config *config.Config
	Runner Executor
	Store  report.Store // nil disables history
	Logger *log.Logger  // nil discards
}

// Request builds a runner request from the named profile. extra is
// appended to the profile's argv; opts are applied after the profile's own
// settings and so override them.
func (e *Engine) Request(profile string, extra []string, opts ...runner.RequestOption) (*runner.Request, error) {
	p, err := e.config().Profile(profile)
	if err != nil {
		return nil, err
	}
	argv, err := p.Argv()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile, err)
	}
	policy, err := p.Policy.Build()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile, err)
	}

	base := []runner.RequestOption{
		runner.WithInterruptAfter(p.Timeout(e.config().Timeout())),
		runner.WithInterruptOnFailure(p.InterruptOnFailure),
		runner.WithInterruptOnSuccess(p.InterruptOnSuccess),
		runner.WithDir(p.Dir),
		runner.WithEnv(p.Env...),
	}
	req, err := runner.NewRequest(append(argv, extra...), policy, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile, err)
	}
	return req, nil
}

// Run executes req and records the outcome under name, which may be empty
// for ad-hoc runs. The record is returned even when saving it fails.
func (e *Engine) Run(ctx context.Context, name string, req *runner.Request) (*report.RunRecord, error) {
	res := e.Runner.Execute(ctx, req)
	rec := report.FromResult(name, res)
	e.logger().Debug("run finished",
		"id", rec.ID, "profile", name, "exit", rec.ExitLabel(),
		"verdict", rec.Verdict, "duration", rec.Duration)

	if err := e.save(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (e *Engine) save(rec *report.RunRecord) error {
	if e.Store == nil {
		return nil
	}
	if err := e.Store.Save(rec); err != nil {
		e.logger().Warn("saving run", "id", rec.ID, "err", err)
		return fmt.Errorf("saving run %s: %w", rec.ID, err)
	}
	return nil
}

// History returns up to limit stored runs, most recent first.
func (e *Engine) History(limit int) ([]*report.RunRecord, error) {
	l, ok := e.Store.(report.Lister)
	if !ok {
		return nil, fmt.Errorf("run history is not available")
	}
	return l.List(limit)
}

// Profiles returns the configured profile names in order.
func (e *Engine) Profiles() []string {
	names := make([]string, 0, len(e.config().Profiles))
	for name := range e.config().Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (e *Engine) config() *config.Config {
	if e.Config == nil {
		return &config.Config{}
	}
	return e.Config
}

func (e *Engine) logger() *log.Logger {
	if e.Logger == nil {
		return log.New(io.Discard)
	}
	return e.Logger
}
