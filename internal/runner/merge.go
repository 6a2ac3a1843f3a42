package runner

// Merge combines the exit code and both stream outcomes into the final
// result. exit is nil when no exit code was observed. Merge is pure: it
// reads its inputs and allocates a new Result.
//
// The first matching rule wins:
//
//  1. either stream carries a deadline or cancellation error: Failure,
//     ExitInterrupted;
//  2. either stream carries another error: Failure, ExitException;
//  3. either stream stopped on an interrupt flag: Failure, ExitInterrupted;
//  4. both streams completed: the exit code's verdict, overridden to
//     Failure by any failing stream.
//
// Where both streams hold an error, deadline beats cancellation beats
// anything else, and standard output beats standard error on a tie.
func Merge(exit *int, info, errs *StreamOutcome, policy Policy) *Result {
	r := &Result{
		InfoStream:  info.Text(),
		ErrorStream: errs.Text(),
		Interrupted: info.Interrupted || errs.Interrupted,
		Truncated:   info.Truncated || errs.Truncated,
	}

	kind, err := mergeErrors(info.Err, errs.Err)
	switch {
	case kind.interruption():
		r.Verdict = Failure
		r.ExitCode = ExitInterrupted
		r.Err = err
		r.Interrupted = true
		return r
	case kind == KindException:
		r.Verdict = Failure
		r.ExitCode = ExitException
		r.Err = err
		return r
	case r.Interrupted:
		r.Verdict = Failure
		r.ExitCode = ExitInterrupted
		return r
	case exit == nil:
		r.Verdict = Failure
		r.ExitCode = ExitException
		r.Err = ErrNoExitCode
		return r
	}

	r.ExitCode = *exit
	byExit := policy.ExitCode(*exit)
	switch {
	case info.Verdict == Unresolved && errs.Verdict == Unresolved:
		r.Verdict = byExit
	case info.Verdict == Failure || errs.Verdict == Failure:
		r.Verdict = Failure
	case byExit == Unresolved:
		r.Verdict = Success
	default:
		r.Verdict = byExit
	}
	return r
}

// mergeErrors picks the error to report from the two streams.
func mergeErrors(info, errs error) (ErrorKind, error) {
	ik, ek := KindOf(info), KindOf(errs)
	if ek > ik {
		return ek, errs
	}
	return ik, info
}
