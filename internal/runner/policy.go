package runner

import "strings"

// Policy decides what an exit code or a line of output means for a run.
//
// Implementations must be safe for concurrent use: the stdout and stderr
// monitors call InfoLine and ErrorLine from separate goroutines.
type Policy interface {
	// ExitCode judges the process exit code. It must be total.
	ExitCode(code int) Verdict
	// InfoLine judges one line of standard output.
	InfoLine(line string) Verdict
	// ErrorLine judges one line of standard error.
	ErrorLine(line string) Verdict
	// LaunchError builds the result returned when the process never started.
	LaunchError(err error) *Result
}

// LaunchFailure is the result every built-in policy returns when the
// process could not be started.
func LaunchFailure(err error) *Result {
	return &Result{
		ExitCode: ExitException,
		Verdict:  Failure,
		Err:      err,
	}
}

// ExitCodePolicy judges a run by its exit code alone. Zero is success.
type ExitCodePolicy struct{}

func (ExitCodePolicy) ExitCode(code int) Verdict {
	if code == 0 {
		return Success
	}
	return Failure
}

func (ExitCodePolicy) InfoLine(string) Verdict  { return Unresolved }
func (ExitCodePolicy) ErrorLine(string) Verdict { return Unresolved }

func (ExitCodePolicy) LaunchError(err error) *Result { return LaunchFailure(err) }

// KeywordPolicy judges output lines by substring match. For every line the
// keyword sets are consulted in a fixed order: Ignore, then Fail, then
// Succeed. A line containing an ignore keyword is never conclusive. The
// same sets apply to both streams; the exit code is judged like
// ExitCodePolicy.
type KeywordPolicy struct {
	ExitCodePolicy

	Ignore  []string
	Fail    []string
	Succeed []string
}

func (p KeywordPolicy) InfoLine(line string) Verdict  { return p.judge(line) }
func (p KeywordPolicy) ErrorLine(line string) Verdict { return p.judge(line) }

func (p KeywordPolicy) judge(line string) Verdict {
	switch {
	case containsAny(line, p.Ignore):
		return Unresolved
	case containsAny(line, p.Fail):
		return Failure
	case containsAny(line, p.Succeed):
		return Success
	}
	return Unresolved
}

func containsAny(line string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(line, k) {
			return true
		}
	}
	return false
}

// FuncPolicy adapts plain functions to Policy. A nil function behaves like
// the corresponding ExitCodePolicy method.
type FuncPolicy struct {
	Exit   func(code int) Verdict
	Info   func(line string) Verdict
	Error  func(line string) Verdict
	Launch func(err error) *Result
}

func (p FuncPolicy) ExitCode(code int) Verdict {
	if p.Exit == nil {
		return ExitCodePolicy{}.ExitCode(code)
	}
	return p.Exit(code)
}

func (p FuncPolicy) InfoLine(line string) Verdict {
	if p.Info == nil {
		return Unresolved
	}
	return p.Info(line)
}

func (p FuncPolicy) ErrorLine(line string) Verdict {
	if p.Error == nil {
		return Unresolved
	}
	return p.Error(line)
}

func (p FuncPolicy) LaunchError(err error) *Result {
	if p.Launch == nil {
		return LaunchFailure(err)
	}
	return p.Launch(err)
}
