// Package report provides structured persistence and retrieval of
// execution results. Results are stored as RunRecords and can be queried
// by stream content or compared with each other.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/overseer/internal/runner"
)

// Store persists and retrieves run records.
type Store interface {
	Save(rec *RunRecord) error
	Load(runID string) (*RunRecord, error)
}

// Lister is implemented by stores that can enumerate past runs.
type Lister interface {
	// List returns up to limit records, most recent first. A limit of zero
	// or less returns every record.
	List(limit int) ([]*RunRecord, error)
}

// RunRecord is the serialisable form of a runner.Result.
type RunRecord struct {
	ID          string         `json:"id"`
	Profile     string         `json:"profile,omitempty"`
	Argv        []string       `json:"argv"`
	ExitCode    int            `json:"exit_code"`
	Verdict     runner.Verdict `json:"verdict"`
	InfoStream  string         `json:"info_stream"`
	ErrorStream string         `json:"error_stream"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"` // deadline, cancelled or exception
	Interrupted bool           `json:"interrupted"`
	Truncated   bool           `json:"truncated,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	Duration    time.Duration  `json:"duration_ns"`
}

// FromResult converts a runner result into a record. profile may be empty
// for ad-hoc runs.
func FromResult(profile string, res *runner.Result) *RunRecord {
	rec := &RunRecord{
		ID:          res.RunID,
		Profile:     profile,
		Argv:        res.Argv,
		ExitCode:    res.ExitCode,
		Verdict:     res.Verdict,
		InfoStream:  res.InfoStream,
		ErrorStream: res.ErrorStream,
		Interrupted: res.Interrupted,
		Truncated:   res.Truncated,
		StartedAt:   res.StartedAt,
		Duration:    res.Duration,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		rec.ErrorKind = runner.KindOf(res.Err).String()
	}
	return rec
}

// Succeeded reports whether the run's final verdict is success.
func (r *RunRecord) Succeeded() bool {
	return r.Verdict == runner.Success
}

// ExitLabel renders the exit code, naming the sentinel values.
func (r *RunRecord) ExitLabel() string {
	switch r.ExitCode {
	case runner.ExitInterrupted:
		return "interrupted"
	case runner.ExitException:
		return "exception"
	default:
		return fmt.Sprint(r.ExitCode)
	}
}

// Command returns the argv joined with spaces.
func (r *RunRecord) Command() string {
	return strings.Join(r.Argv, " ")
}

// Stream names a captured output stream.
type Stream string

const (
	// Stdout is the info stream.
	Stdout Stream = "stdout"
	// Stderr is the error stream.
	Stderr Stream = "stderr"
)

// ParseStream accepts stdout, stderr, or empty for both.
func ParseStream(s string) (Stream, error) {
	switch Stream(s) {
	case "", Stdout, Stderr:
		return Stream(s), nil
	}
	return "", fmt.Errorf("unknown stream %q (want stdout or stderr)", s)
}

// Match is a stream line matching a Grep pattern.
type Match struct {
	Stream Stream
	Line   int // 1-based
	Text   string
}

// Grep returns the lines of rec's streams that contain pattern. An empty
// stream searches both, stdout first; an empty pattern matches every line.
func Grep(rec *RunRecord, stream Stream, pattern string) []Match {
	var out []Match
	if stream == "" || stream == Stdout {
		out = append(out, grepText(Stdout, rec.InfoStream, pattern)...)
	}
	if stream == "" || stream == Stderr {
		out = append(out, grepText(Stderr, rec.ErrorStream, pattern)...)
	}
	return out
}

func grepText(stream Stream, text, pattern string) []Match {
	if text == "" {
		return nil
	}
	var out []Match
	for i, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if strings.Contains(line, pattern) {
			out = append(out, Match{Stream: stream, Line: i + 1, Text: line})
		}
	}
	return out
}
