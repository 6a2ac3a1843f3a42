package runner

import "fmt"

// Verdict is the tri-state judgement a Policy assigns to an exit code or a
// single line of output.
type Verdict int

const (
	// Unresolved means the input was not conclusive.
	Unresolved Verdict = iota
	// Success means the input proves the run succeeded.
	Success
	// Failure means the input proves the run failed.
	Failure
)

func (v Verdict) String() string {
	switch v {
	case Unresolved:
		return "unresolved"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unresolved", "":
		*v = Unresolved
	case "success":
		*v = Success
	case "failure":
		*v = Failure
	default:
		return fmt.Errorf("unknown verdict %q", text)
	}
	return nil
}
