package runner

import "strings"

// StreamOutcome accumulates what one monitor saw on its stream.
//
// An outcome has a single writer: its monitor goroutine while reading, then
// the paired watchdog once the monitor has stopped. Readers must wait for
// the watchdog to finish before looking at it.
type StreamOutcome struct {
	text        strings.Builder
	limit       int // 0 = unbounded
	Verdict     Verdict
	Interrupted bool
	Truncated   bool
	Err         error
}

func newStreamOutcome(limit int) *StreamOutcome {
	return &StreamOutcome{limit: limit}
}

// Text returns every line read so far, each followed by "\n".
func (o *StreamOutcome) Text() string {
	return o.text.String()
}

// setErr records err unless an error is already present. The first error
// always wins.
func (o *StreamOutcome) setErr(err error) {
	if o.Err == nil {
		o.Err = err
	}
}

// settle records v unless a verdict is already set.
func (o *StreamOutcome) settle(v Verdict) {
	if o.Verdict == Unresolved {
		o.Verdict = v
	}
}

// failed reports whether the stream ended in a state that is not a success.
func (o *StreamOutcome) failed() bool {
	return o.Verdict == Failure || o.Err != nil
}

func (o *StreamOutcome) appendLine(line string) {
	if o.limit <= 0 {
		o.text.WriteString(line)
		o.text.WriteByte('\n')
		return
	}
	remaining := o.limit - o.text.Len()
	if remaining <= 0 {
		o.Truncated = true
		return
	}
	if len(line)+1 > remaining {
		o.text.WriteString(line[:min(len(line), remaining)])
		o.Truncated = true
		return
	}
	o.text.WriteString(line)
	o.text.WriteByte('\n')
}
