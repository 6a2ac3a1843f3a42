package runner

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingKiller struct {
	kills atomic.Int32
}

func (k *countingKiller) Kill() error {
	k.kills.Add(1)
	return nil
}

func waitDone(t *testing.T, w *watchdog) {
	t.Helper()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("watchdog did not finish")
	}
}

func TestWatchdog_MonitorFinishesInTime(t *testing.T) {
	req := testRequest(t, ExitCodePolicy{}, WithInterruptAfter(time.Second), WithInterruptOnFailure(true))
	m := newMonitor("stdout", strings.NewReader("a\nb\n"), ExitCodePolicy{}.InfoLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	m.start()
	w.start(context.Background())
	waitDone(t, w)

	if m.outcome.Err != nil || m.outcome.Interrupted {
		t.Errorf("outcome = %+v, want clean", m.outcome)
	}
	if k.kills.Load() != 0 {
		t.Errorf("kills = %d, want 0", k.kills.Load())
	}
}

func TestWatchdog_Deadline(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	req := testRequest(t, ExitCodePolicy{}, WithInterruptAfter(50*time.Millisecond))
	m := newMonitor("stdout", pr, ExitCodePolicy{}.InfoLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	m.start()
	w.start(context.Background())
	waitDone(t, w)

	o := m.outcome
	if !o.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	var de *DeadlineError
	if !errors.As(o.Err, &de) {
		t.Fatalf("Err = %v, want *DeadlineError", o.Err)
	}
	if de.Timeout != 50*time.Millisecond {
		t.Errorf("Timeout = %s, want 50ms", de.Timeout)
	}
	if k.kills.Load() != 0 {
		t.Errorf("kills = %d, want 0 without interrupt-on-failure", k.kills.Load())
	}
}

func TestWatchdog_DeadlineKillsWhenInterruptOnFailure(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	req := testRequest(t, ExitCodePolicy{}, WithInterruptAfter(20*time.Millisecond), WithInterruptOnFailure(true))
	m := newMonitor("stdout", pr, ExitCodePolicy{}.InfoLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	m.start()
	w.start(context.Background())
	waitDone(t, w)

	if k.kills.Load() != 1 {
		t.Errorf("kills = %d, want 1", k.kills.Load())
	}
}

func TestWatchdog_KillsOnFailingStream(t *testing.T) {
	p := KeywordPolicy{Fail: []string{"fatal"}}
	req := testRequest(t, p, WithInterruptOnFailure(true))
	m := newMonitor("stderr", strings.NewReader("fatal: boom\nrest\n"), p.ErrorLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	m.start()
	w.start(context.Background())
	waitDone(t, w)

	if k.kills.Load() != 1 {
		t.Errorf("kills = %d, want 1", k.kills.Load())
	}
	if m.outcome.Err != nil {
		t.Errorf("Err = %v, want nil", m.outcome.Err)
	}
}

func TestWatchdog_NoKillOnSuccess(t *testing.T) {
	p := KeywordPolicy{Succeed: []string{"ready"}}
	req := testRequest(t, p, WithInterruptOnFailure(true), WithInterruptOnSuccess(true))
	m := newMonitor("stdout", strings.NewReader("ready\n"), p.InfoLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	m.start()
	w.start(context.Background())
	waitDone(t, w)

	if k.kills.Load() != 0 {
		t.Errorf("kills = %d, want 0", k.kills.Load())
	}
}

func TestWatchdog_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	req := testRequest(t, ExitCodePolicy{}, WithInterruptOnFailure(true))
	m := newMonitor("stdout", pr, ExitCodePolicy{}.InfoLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	ctx, cancel := context.WithCancel(context.Background())
	m.start()
	w.start(ctx)
	cancel()
	waitDone(t, w)

	o := m.outcome
	if !errors.Is(o.Err, ErrWatchdogCancelled) {
		t.Errorf("Err = %v, want ErrWatchdogCancelled", o.Err)
	}
	if !errors.Is(o.Err, context.Canceled) {
		t.Errorf("Err = %v, want to wrap context.Canceled", o.Err)
	}
	if !o.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	if k.kills.Load() != 1 {
		t.Errorf("kills = %d, want 1", k.kills.Load())
	}
}

func TestWatchdog_FirstErrorWins(t *testing.T) {
	cause := errors.New("device gone")
	req := testRequest(t, ExitCodePolicy{}, WithInterruptAfter(time.Hour))
	m := newMonitor("stdout", &failingReader{err: cause}, ExitCodePolicy{}.InfoLine, req, 0, discard())
	w := newWatchdog(m, &countingKiller{}, req, discard())

	m.start()
	m.wait()
	w.interrupt(&DeadlineError{Timeout: time.Hour})

	if !errors.Is(m.outcome.Err, cause) {
		t.Errorf("Err = %v, want the first error %v", m.outcome.Err, cause)
	}
	if m.outcome.Interrupted {
		t.Error("a finished monitor must not be marked interrupted")
	}
}

// lateEOFReader blocks its second read until released, then reports EOF.
// Its deadline is recorded but does not unblock the read, so the stream
// ends on its own after the watchdog has already asked it to stop.
type lateEOFReader struct {
	served   bool
	deadline chan struct{}
	release  chan struct{}
}

func (r *lateEOFReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		return copy(p, "last line\n"), nil
	}
	<-r.release
	return 0, io.EOF
}

func (r *lateEOFReader) SetReadDeadline(time.Time) error {
	close(r.deadline)
	return nil
}

func TestWatchdog_StreamEndsWhileCancelling(t *testing.T) {
	r := &lateEOFReader{deadline: make(chan struct{}), release: make(chan struct{})}
	req := testRequest(t, ExitCodePolicy{}, WithInterruptAfter(time.Hour), WithInterruptOnFailure(true))
	m := newMonitor("stdout", r, ExitCodePolicy{}.InfoLine, req, 0, discard())
	k := &countingKiller{}
	w := newWatchdog(m, k, req, discard())

	m.start()
	interrupted := make(chan struct{})
	go func() {
		w.interrupt(&DeadlineError{Timeout: time.Hour})
		close(interrupted)
	}()

	<-r.deadline
	close(r.release)
	select {
	case <-interrupted:
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt did not return")
	}

	o := m.outcome
	if o.Interrupted || o.Err != nil {
		t.Errorf("outcome = %+v, want a stream read to its end", o)
	}
	if o.Text() != "last line\n" {
		t.Errorf("Text = %q", o.Text())
	}
}
