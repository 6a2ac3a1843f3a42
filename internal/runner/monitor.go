package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// monitor reads one stream line by line and judges each line until the
// verdict settles, the stream ends, or an interrupt flag fires.
type monitor struct {
	name               string
	r                  io.Reader
	judge              func(line string) Verdict
	interruptOnFailure bool
	interruptOnSuccess bool
	logger             *log.Logger

	outcome   *StreamOutcome
	done      chan struct{}
	cancelled atomic.Bool
	aborted   bool // read loop stopped by cancel; valid after done
}

func newMonitor(name string, r io.Reader, judge func(string) Verdict, req *Request, limit int, logger *log.Logger) *monitor {
	return &monitor{
		name:               name,
		r:                  r,
		judge:              judge,
		interruptOnFailure: req.interruptOnFailure,
		interruptOnSuccess: req.interruptOnSuccess,
		logger:             logger,
		outcome:            newStreamOutcome(limit),
		done:               make(chan struct{}),
	}
}

// start runs the read loop on its own goroutine.
func (m *monitor) start() {
	go m.run()
}

func (m *monitor) run() {
	defer close(m.done)

	br := bufio.NewReader(m.r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if m.consume(line) {
				return
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if m.cancelled.Load() {
			m.aborted = true
			return
		}
		m.outcome.Verdict = Failure
		m.outcome.setErr(fmt.Errorf("reading %s: %w", m.name, err))
		return
	}
}

// consume records line and reports whether reading must stop.
func (m *monitor) consume(line string) bool {
	o := m.outcome
	o.appendLine(line)
	if o.Verdict != Unresolved {
		return false
	}

	v := m.judge(line)
	if (v == Success && m.interruptOnSuccess) || (v == Failure && m.interruptOnFailure) {
		o.Verdict = v
		o.Interrupted = true
		m.logger.Debug("stream interrupted", "stream", m.name, "verdict", v, "line", line)
		return true
	}
	o.settle(v)
	return false
}

// readDeadliner is implemented by pipes backed by the runtime poller.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// cancel unblocks a pending read. The read loop treats the resulting error
// as cancellation rather than an I/O failure.
func (m *monitor) cancel() {
	if !m.cancelled.CompareAndSwap(false, true) {
		return
	}
	if d, ok := m.r.(readDeadliner); ok {
		if err := d.SetReadDeadline(time.Now()); err == nil {
			return
		}
	}
	if c, ok := m.r.(io.Closer); ok {
		_ = c.Close()
	}
}

// wait blocks until the read loop has returned.
func (m *monitor) wait() {
	<-m.done
}
