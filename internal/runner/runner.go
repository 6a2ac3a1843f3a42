// Package runner executes external processes while monitoring their
// standard output and standard error line by line against a pluggable
// Policy. It supports stopping early on the first conclusive line,
// bounding each stream with a time budget, and always reports exactly one
// Result per execution.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Runner executes requests. The zero value is usable: it launches processes
// with os/exec in the current directory and keeps all output.
type Runner struct {
	Workspace string   // requests' directories resolve inside it; empty = no bound
	MaxOutput int      // bytes kept per stream; 0 = unbounded
	Launcher  Launcher // nil = ExecLauncher
	Logger    *log.Logger
}

// Execute runs req and returns its result. It never panics on a bad
// request and never returns an error: every failure, including a nil
// request or a process that cannot be started, is reported in the Result.
//
// With no time budget on the request, Execute blocks for as long as the
// process keeps either output stream open. Cancelling ctx stops the
// watchdogs and yields an interrupted result.
func (r *Runner) Execute(ctx context.Context, req *Request) *Result {
	started := time.Now()
	runID := uuid.New().String()

	res := r.execute(ctx, req)

	res.RunID = runID
	if req != nil {
		res.Argv = req.Argv()
	}
	res.StartedAt = started
	res.Duration = time.Since(started)
	return res
}

func (r *Runner) execute(ctx context.Context, req *Request) *Result {
	if req == nil {
		return LaunchFailure(fmt.Errorf("%w: nil request", ErrInvalidRequest))
	}
	if err := req.validate(); err != nil {
		return LaunchFailure(err)
	}
	policy := req.policy
	logger := r.logger().With("program", req.argv[0])

	if err := ctx.Err(); err != nil {
		return &Result{
			ExitCode:    ExitInterrupted,
			Verdict:     Failure,
			Err:         fmt.Errorf("%w: %w", ErrWatchdogCancelled, err),
			Interrupted: true,
		}
	}

	dir, err := r.resolveDir(req.dir)
	if err != nil {
		return launchError(policy, err)
	}
	proc, err := r.launcher().Launch(ctx, LaunchSpec{Argv: req.Argv(), Dir: dir, Env: req.Env()})
	if err != nil {
		logger.Debug("launch failed", "err", err)
		return launchError(policy, err)
	}
	logger.Debug("process started", "dir", dir, "timeout", req.interruptAfter)

	info := newMonitor("stdout", proc.Stdout(), policy.InfoLine, req, r.MaxOutput, logger)
	errs := newMonitor("stderr", proc.Stderr(), policy.ErrorLine, req, r.MaxOutput, logger)
	infoDog := newWatchdog(info, proc, req, logger)
	errsDog := newWatchdog(errs, proc, req, logger)

	// Monitors first: a watchdog started before its monitor would see a
	// stream that has not begun as one that has already finished.
	info.start()
	errs.start()
	infoDog.start(ctx)
	errsDog.start(ctx)

	joined := make(chan struct{})
	go func() {
		infoDog.wait()
		errsDog.wait()
		close(joined)
	}()

	var topErr error
	select {
	case <-joined:
	case <-ctx.Done():
		topErr = fmt.Errorf("%w: %w", ErrWatchdogCancelled, ctx.Err())
		<-joined
	}

	var exit *int
	if topErr == nil && completed(info.outcome) && completed(errs.outcome) {
		code, err := waitExit(ctx, proc)
		if err != nil {
			topErr = err
			if req.interruptOnFailure {
				_ = proc.Kill()
			}
		} else {
			exit = &code
		}
	}
	if exit == nil {
		proc.Release()
	}

	res := Merge(exit, info.outcome, errs.outcome, policy)
	if topErr != nil {
		applyTopLevel(res, topErr)
	}
	logger.Debug("run finished", "exit", res.ExitCode, "verdict", res.Verdict, "interrupted", res.Interrupted)
	return res
}

// completed reports whether a stream was read to its end without error.
func completed(o *StreamOutcome) bool {
	return o.Err == nil && !o.Interrupted
}

// waitExit waits for the process to exit unless ctx is cancelled first.
func waitExit(ctx context.Context, proc Process) (int, error) {
	type status struct {
		code int
		err  error
	}
	ch := make(chan status, 1)
	go func() {
		code, err := proc.Wait()
		ch <- status{code, err}
	}()

	select {
	case s := <-ch:
		return s.code, s.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrWatchdogCancelled, ctx.Err())
	}
}

// applyTopLevel folds an error raised by the orchestrator itself into res,
// unless res already carries a stream error of the same or a stronger kind.
func applyTopLevel(res *Result, err error) {
	kind := KindOf(err)
	if !errors.Is(res.Err, ErrNoExitCode) && KindOf(res.Err) >= kind {
		return
	}
	res.Verdict = Failure
	res.Err = err
	if kind.interruption() {
		res.ExitCode = ExitInterrupted
		res.Interrupted = true
		return
	}
	res.ExitCode = ExitException
}

func launchError(policy Policy, err error) *Result {
	if res := policy.LaunchError(err); res != nil {
		return res
	}
	return LaunchFailure(err)
}

// resolveDir resolves dir relative to the workspace and validates it is
// within the workspace boundary.
func (r *Runner) resolveDir(dir string) (string, error) {
	if r.Workspace == "" {
		return dir, nil
	}
	if dir == "" {
		return r.Workspace, nil
	}

	var resolved string
	if filepath.IsAbs(dir) {
		resolved = filepath.Clean(dir)
	} else {
		resolved = filepath.Clean(filepath.Join(r.Workspace, dir))
	}

	rel, err := filepath.Rel(r.Workspace, resolved)
	if err != nil {
		return "", fmt.Errorf("resolving dir: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dir %q is outside workspace %q", dir, r.Workspace)
	}
	return resolved, nil
}

func (r *Runner) launcher() Launcher {
	if r.Launcher == nil {
		return ExecLauncher{}
	}
	return r.Launcher
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}
