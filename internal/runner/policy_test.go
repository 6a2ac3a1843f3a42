package runner

import (
	"errors"
	"testing"
)

func TestExitCodePolicy_ExitCode(t *testing.T) {
	p := ExitCodePolicy{}
	for _, code := range []int{0, 1, 2, 127, 255, -1, ExitInterrupted, ExitException} {
		want := Failure
		if code == 0 {
			want = Success
		}
		if got := p.ExitCode(code); got != want {
			t.Errorf("ExitCode(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestExitCodePolicy_IgnoresStreams(t *testing.T) {
	p := ExitCodePolicy{}
	if got := p.InfoLine("FAILED"); got != Unresolved {
		t.Errorf("InfoLine = %s, want unresolved", got)
	}
	if got := p.ErrorLine("panic: boom"); got != Unresolved {
		t.Errorf("ErrorLine = %s, want unresolved", got)
	}
}

func TestKeywordPolicy_Precedence(t *testing.T) {
	p := KeywordPolicy{
		Ignore:  []string{"WARN"},
		Fail:    []string{"ERROR", "FAIL"},
		Succeed: []string{"OK", "PASS"},
	}

	tests := []struct {
		line string
		want Verdict
	}{
		{"all good", Unresolved},
		{"ERROR: disk full", Failure},
		{"tests PASS", Success},
		{"WARN: ERROR budget low", Unresolved},   // ignore beats fail
		{"WARN: PASS with warnings", Unresolved}, // ignore beats succeed
		{"FAIL but also OK", Failure},            // fail beats succeed
		{"", Unresolved},
	}
	for _, tt := range tests {
		if got := p.InfoLine(tt.line); got != tt.want {
			t.Errorf("InfoLine(%q) = %s, want %s", tt.line, got, tt.want)
		}
		if got := p.ErrorLine(tt.line); got != tt.want {
			t.Errorf("ErrorLine(%q) = %s, want %s", tt.line, got, tt.want)
		}
	}
}

func TestKeywordPolicy_EmptyKeywordNeverMatches(t *testing.T) {
	p := KeywordPolicy{Fail: []string{""}}
	if got := p.InfoLine("anything"); got != Unresolved {
		t.Errorf("InfoLine = %s, want unresolved", got)
	}
}

func TestKeywordPolicy_ExitCode(t *testing.T) {
	p := KeywordPolicy{Fail: []string{"x"}}
	if got := p.ExitCode(0); got != Success {
		t.Errorf("ExitCode(0) = %s, want success", got)
	}
	if got := p.ExitCode(3); got != Failure {
		t.Errorf("ExitCode(3) = %s, want failure", got)
	}
}

func TestLaunchFailure(t *testing.T) {
	cause := errors.New("no such file")
	for _, p := range []Policy{ExitCodePolicy{}, KeywordPolicy{}, FuncPolicy{}} {
		res := p.LaunchError(cause)
		if res.ExitCode != ExitException {
			t.Errorf("%T: ExitCode = %d, want ExitException", p, res.ExitCode)
		}
		if res.Verdict != Failure {
			t.Errorf("%T: Verdict = %s, want failure", p, res.Verdict)
		}
		if !errors.Is(res.Err, cause) {
			t.Errorf("%T: Err = %v, want %v", p, res.Err, cause)
		}
	}
}

func TestFuncPolicy_Defaults(t *testing.T) {
	p := FuncPolicy{
		Info: func(line string) Verdict {
			if line == "done" {
				return Success
			}
			return Unresolved
		},
	}
	if got := p.InfoLine("done"); got != Success {
		t.Errorf("InfoLine = %s, want success", got)
	}
	if got := p.ErrorLine("done"); got != Unresolved {
		t.Errorf("ErrorLine = %s, want unresolved", got)
	}
	if got := p.ExitCode(1); got != Failure {
		t.Errorf("ExitCode(1) = %s, want failure", got)
	}
}

func TestVerdict_Text(t *testing.T) {
	for _, v := range []Verdict{Unresolved, Success, Failure} {
		text, err := v.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", v, err)
		}
		var got Verdict
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != v {
			t.Errorf("round trip of %s = %s", v, got)
		}
	}
	var v Verdict
	if err := v.UnmarshalText([]byte("maybe")); err == nil {
		t.Error("expected error for unknown verdict")
	}
}
