package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel exit codes. Both lie outside the range of any exit status an
// operating system reports, including Go's -1 for signalled processes.
const (
	// ExitInterrupted means the run stopped before the process completed.
	ExitInterrupted = math.MinInt32
	// ExitException means the run failed with an error before an exit
	// code could be observed.
	ExitException = math.MinInt32 + 1
)

var (
	// ErrInvalidRequest is reported for a nil or malformed Request.
	ErrInvalidRequest = errors.New("invalid execution request")
	// ErrWatchdogCancelled is attached when a watchdog's wait is cancelled
	// from outside, usually through the caller's context.
	ErrWatchdogCancelled = errors.New("watchdog cancelled")
	// ErrNoExitCode is reported when both streams completed but no exit
	// code was supplied to Merge.
	ErrNoExitCode = errors.New("no exit code available")
)

// DeadlineError is attached to a stream outcome whose monitor was still
// reading when the request's time budget ran out.
type DeadlineError struct {
	Timeout time.Duration
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("deadline exceeded after %s", e.Timeout)
}

// Is reports whether target is context.DeadlineExceeded.
func (e *DeadlineError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// Result is the single value Execute returns. It is fully populated
// before it is handed to the caller.
type Result struct {
	RunID       string
	Argv        []string
	ExitCode    int // real exit status, or ExitInterrupted / ExitException
	Verdict     Verdict
	InfoStream  string // standard output, one "\n" per line
	ErrorStream string // standard error, one "\n" per line
	Err         error
	Interrupted bool
	Truncated   bool // at least one stream exceeded Runner.MaxOutput
	StartedAt   time.Time
	Duration    time.Duration
}

// Succeeded reports whether the final verdict is Success.
func (r *Result) Succeeded() bool {
	return r.Verdict == Success
}

// ErrorKind classifies an error attached to a result.
type ErrorKind int

const (
	// KindNone means there is no error.
	KindNone ErrorKind = iota
	// KindException is any error that is not an interruption.
	KindException
	// KindCancelled is a watchdog or orchestrator cancellation.
	KindCancelled
	// KindDeadline is a forced cancellation after the time budget elapsed.
	KindDeadline
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindException:
		return "exception"
	case KindCancelled:
		return "cancelled"
	case KindDeadline:
		return "deadline"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf classifies err. Deadline outranks cancellation, which outranks
// every other error.
func KindOf(err error) ErrorKind {
	var de *DeadlineError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &de):
		return KindDeadline
	case errors.Is(err, ErrWatchdogCancelled):
		return KindCancelled
	default:
		return KindException
	}
}

func (k ErrorKind) interruption() bool {
	return k == KindDeadline || k == KindCancelled
}
