package runner

import (
	"fmt"
	"slices"
	"time"
)

// Request describes one execution. It is built once by NewRequest and never
// mutated afterwards, so a single Request may be executed concurrently.
type Request struct {
	argv               []string
	policy             Policy
	interruptOnFailure bool
	interruptOnSuccess bool
	interruptAfter     time.Duration
	dir                string
	env                []string
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithInterruptOnFailure stops reading a stream, and kills the process, as
// soon as a line is judged a Failure.
func WithInterruptOnFailure(on bool) RequestOption {
	return func(r *Request) { r.interruptOnFailure = on }
}

// WithInterruptOnSuccess stops reading a stream as soon as a line is judged
// a Success.
func WithInterruptOnSuccess(on bool) RequestOption {
	return func(r *Request) { r.interruptOnSuccess = on }
}

// WithInterruptAfter bounds how long each stream may be read. Zero means
// unbounded.
func WithInterruptAfter(d time.Duration) RequestOption {
	return func(r *Request) { r.interruptAfter = d }
}

// WithDir sets the working directory, relative to the runner's workspace.
func WithDir(dir string) RequestOption {
	return func(r *Request) { r.dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) RequestOption {
	return func(r *Request) { r.env = append(r.env, kv...) }
}

// NewRequest validates argv and policy and returns an immutable Request.
// The first element of argv is the program, resolved via PATH.
func NewRequest(argv []string, policy Policy, opts ...RequestOption) (*Request, error) {
	r := &Request{
		argv:   slices.Clone(argv),
		policy: policy,
	}
	for _, o := range opts {
		o(r)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.env = slices.Clone(r.env)
	return r, nil
}

// validate reports why r cannot be executed. Requests not built by
// NewRequest are checked again before launch.
func (r *Request) validate() error {
	switch {
	case len(r.argv) == 0:
		return fmt.Errorf("%w: empty argv", ErrInvalidRequest)
	case r.argv[0] == "":
		return fmt.Errorf("%w: empty program name", ErrInvalidRequest)
	case r.policy == nil:
		return fmt.Errorf("%w: nil policy", ErrInvalidRequest)
	case r.interruptAfter < 0:
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidRequest, r.interruptAfter)
	}
	return nil
}

// Argv returns a copy of the argument vector.
func (r *Request) Argv() []string { return slices.Clone(r.argv) }

// Policy returns the evaluation policy.
func (r *Request) Policy() Policy { return r.policy }

// InterruptOnFailure reports whether a Failure line stops the run.
func (r *Request) InterruptOnFailure() bool { return r.interruptOnFailure }

// InterruptOnSuccess reports whether a Success line stops the run.
func (r *Request) InterruptOnSuccess() bool { return r.interruptOnSuccess }

// InterruptAfter returns the per-stream time budget; zero is unbounded.
func (r *Request) InterruptAfter() time.Duration { return r.interruptAfter }

// Dir returns the requested working directory.
func (r *Request) Dir() string { return r.dir }

// Env returns a copy of the extra environment.
func (r *Request) Env() []string { return slices.Clone(r.env) }
