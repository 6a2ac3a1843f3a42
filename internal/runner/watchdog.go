package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// killer is the part of Process a watchdog needs.
type killer interface {
	Kill() error
}

// watchdog supervises one monitor. It bounds the monitor's runtime,
// cancels it when the budget runs out or the caller gives up, and kills
// the process when the stream failed and the request asks for it.
type watchdog struct {
	m                  *monitor
	proc               killer
	timeout            time.Duration
	interruptOnFailure bool
	logger             *log.Logger
	done               chan struct{}
}

func newWatchdog(m *monitor, proc killer, req *Request, logger *log.Logger) *watchdog {
	return &watchdog{
		m:                  m,
		proc:               proc,
		timeout:            req.interruptAfter,
		interruptOnFailure: req.interruptOnFailure,
		logger:             logger,
		done:               make(chan struct{}),
	}
}

// start runs the watchdog on its own goroutine. The monitor must already
// be running.
func (w *watchdog) start(ctx context.Context) {
	go w.run(ctx)
}

func (w *watchdog) run(ctx context.Context) {
	defer close(w.done)

	var expired <-chan time.Time
	if w.timeout > 0 {
		t := time.NewTimer(w.timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-w.m.done:
	case <-expired:
		w.interrupt(&DeadlineError{Timeout: w.timeout})
	case <-ctx.Done():
		w.interrupt(fmt.Errorf("%w: %w", ErrWatchdogCancelled, ctx.Err()))
	}

	// The monitor has stopped; the outcome now belongs to this goroutine.
	if w.interruptOnFailure && w.m.outcome.failed() {
		w.logger.Debug("killing process", "stream", w.m.name)
		if err := w.proc.Kill(); err != nil {
			w.logger.Warn("kill failed", "stream", w.m.name, "err", err)
		}
	}
}

// interrupt force-cancels a monitor that is still reading and records why.
// A monitor that finished on its own in the meantime is left untouched.
func (w *watchdog) interrupt(cause error) {
	select {
	case <-w.m.done:
		return
	default:
	}
	w.m.cancel()
	w.m.wait()
	if !w.m.aborted {
		// Reached the end of the stream before the cancel landed.
		return
	}

	o := w.m.outcome
	o.Interrupted = true
	o.setErr(cause)
	w.logger.Debug("stream interrupted by watchdog", "stream", w.m.name, "cause", cause)
}

// wait blocks until the watchdog has finished.
func (w *watchdog) wait() {
	<-w.done
}
