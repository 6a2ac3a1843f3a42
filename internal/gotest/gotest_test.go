package gotest

import (
	"context"
	"strings"
	"testing"

	"github.com/deixis/overseer/internal/runner"
)

// lines joins strings with newlines.
func lines(ss ...string) string {
	return strings.Join(ss, "\n")
}

func TestPolicy_InfoLine(t *testing.T) {
	tests := []struct {
		line string
		want runner.Verdict
	}{
		{`{"Action":"run","Package":"pkg","Test":"TestA"}`, runner.Unresolved},
		{`{"Action":"pass","Package":"pkg","Test":"TestA"}`, runner.Unresolved},
		{`{"Action":"pass","Package":"pkg"}`, runner.Unresolved},
		{`{"Action":"fail","Package":"pkg","Test":"TestA"}`, runner.Failure},
		{`{"Action":"fail","Package":"pkg"}`, runner.Failure},
		{`{"ImportPath":"pkg","Action":"build-fail"}`, runner.Failure},
		{`{"Action":"output","Package":"pkg","Output":"FAIL\n"}`, runner.Unresolved},
		{`FAIL pkg 0.01s`, runner.Unresolved},
		{`{broken`, runner.Unresolved},
	}
	var p Policy
	for _, tt := range tests {
		if got := p.InfoLine(tt.line); got != tt.want {
			t.Errorf("InfoLine(%s) = %v, want %v", tt.line, got, tt.want)
		}
	}
	if got := p.ErrorLine(`{"Action":"fail","Package":"pkg"}`); got != runner.Unresolved {
		t.Errorf("ErrorLine = %v, want unresolved", got)
	}
	if got := p.ExitCode(0); got != runner.Success {
		t.Errorf("ExitCode(0) = %v, want success", got)
	}
}

func TestPolicy_InterruptsOnFirstFailure(t *testing.T) {
	script := `echo '{"Action":"pass","Package":"a","Test":"TestOK"}'
echo '{"Action":"fail","Package":"a","Test":"TestBad"}'
sleep 5
echo '{"Action":"pass","Package":"b","Test":"TestLate"}'`
	req, err := runner.NewRequest([]string{"sh", "-c", script}, Policy{}, runner.WithInterruptOnFailure(true))
	if err != nil {
		t.Fatal(err)
	}
	res := (&runner.Runner{}).Execute(context.Background(), req)
	if res.Verdict != runner.Failure {
		t.Errorf("Verdict = %v, want failure", res.Verdict)
	}
	if strings.Contains(res.InfoStream, "TestLate") {
		t.Error("run continued past the first failure")
	}

	s := Summarize(res.InfoStream)
	if s == nil || s.Failed != 1 || s.Passed != 1 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestSummarize_AllPass(t *testing.T) {
	s := Summarize(lines(
		`{"Action":"run","Package":"pkg","Test":"TestA"}`,
		`{"Action":"output","Package":"pkg","Test":"TestA","Output":"ok\n"}`,
		`{"Action":"pass","Package":"pkg","Test":"TestA","Elapsed":0.1}`,
		`{"Action":"pass","Package":"pkg","Elapsed":0.2}`,
	))
	if s.Status != "PASS" || s.Total != 1 || s.Passed != 1 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
	if got := s.Headline(); got != "all 1 tests passed" {
		t.Errorf("Headline = %q", got)
	}
}

func TestSummarize_Mixed(t *testing.T) {
	s := Summarize(lines(
		`{"Action":"pass","Package":"pkg","Test":"TestA"}`,
		`{"Action":"output","Package":"pkg","Test":"TestB","Output":"--- FAIL: TestB\n"}`,
		`{"Action":"fail","Package":"pkg","Test":"TestB"}`,
		`{"Action":"skip","Package":"pkg","Test":"TestC"}`,
		`{"Action":"fail","Package":"pkg"}`,
	))
	if s.Status != "FAIL" {
		t.Errorf("Status = %q, want FAIL", s.Status)
	}
	if s.Total != 3 || s.Passed != 1 || s.Failed != 1 || s.Skipped != 1 {
		t.Errorf("counts = %+v", s)
	}
	if len(s.Failures) != 1 || s.Failures[0].Symbol() != "pkg.TestB" {
		t.Fatalf("Failures = %+v", s.Failures)
	}
	if !strings.Contains(s.Failures[0].Output, "--- FAIL: TestB") {
		t.Errorf("Output = %q", s.Failures[0].Output)
	}
	if got := s.Headline(); got != "1 of 3 tests failed: pkg.TestB" {
		t.Errorf("Headline = %q", got)
	}
}

func TestSummarize_PackageLevelFailOnly(t *testing.T) {
	s := Summarize(`{"Action":"fail","Package":"pkg"}`)
	if s.Status != "FAIL" || s.Total != 0 {
		t.Errorf("summary = %+v", s)
	}
	if got := s.Headline(); got != "package failed without a failing test" {
		t.Errorf("Headline = %q", got)
	}
}

func TestSummarize_MalformedLines(t *testing.T) {
	s := Summarize(lines(
		`not json at all`,
		`{"Action":"pass","Package":"pkg","Test":"TestA"}`,
		`{broken`,
	))
	if s.Status != "PASS" || s.Total != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummarize_NoEvents(t *testing.T) {
	if s := Summarize(""); s != nil {
		t.Errorf("Summarize(\"\") = %+v, want nil", s)
	}
	if s := Summarize("ok  \tpkg\t0.01s\n"); s != nil {
		t.Errorf("plain go test output parsed as events: %+v", s)
	}
}

func TestSummarize_BuildFailure(t *testing.T) {
	s := Summarize(lines(
		`{"ImportPath":"example.com/pkg","Action":"build-output","Output":"# example.com/pkg\n"}`,
		`{"ImportPath":"example.com/pkg","Action":"build-output","Output":"./main.go:10:2: undefined: foo\n"}`,
		`{"ImportPath":"example.com/pkg","Action":"build-fail"}`,
		`{"Action":"start","Package":"example.com/pkg"}`,
		`{"Action":"fail","Package":"example.com/pkg","Elapsed":0.001,"FailedBuild":"example.com/pkg"}`,
	))
	if s.Status != "FAIL" {
		t.Errorf("Status = %q, want FAIL", s.Status)
	}
	if len(s.BuildErrors) != 1 || s.BuildErrors[0].ImportPath != "example.com/pkg" {
		t.Fatalf("BuildErrors = %+v", s.BuildErrors)
	}
	if !strings.Contains(s.BuildErrors[0].Output, "undefined: foo") {
		t.Errorf("Output = %q", s.BuildErrors[0].Output)
	}
	if len(s.Failures) != 0 {
		t.Errorf("Failures = %+v, want none", s.Failures)
	}
	if got := s.Headline(); got != "build failed: example.com/pkg" {
		t.Errorf("Headline = %q", got)
	}
}

func TestSummary_String(t *testing.T) {
	pass := (&Summary{Status: "PASS", Total: 3, Passed: 2, Skipped: 1}).String()
	if !strings.Contains(pass, "All 3 tests passed (1 skipped).") {
		t.Errorf("pass summary:\n%s", pass)
	}

	fail := (&Summary{
		Status:      "FAIL",
		Total:       1,
		Failed:      1,
		Failures:    []Failure{{Package: "pkg", Test: "TestA", Output: "short error\n"}},
		BuildErrors: []BuildError{{ImportPath: "pkg/b", Output: "./b.go:5: syntax error"}},
	}).String()
	for _, want := range []string{"Status: FAIL", "Build errors:", "syntax error", "Failed 1 of 1 tests:", "- pkg.TestA", "short error"} {
		if !strings.Contains(fail, want) {
			t.Errorf("failure summary missing %q:\n%s", want, fail)
		}
	}
}

func TestTruncateLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		wantSub  string
		wantFull bool
	}{
		{"under limit", "a\nb\nc", 5, "", true},
		{"at limit", "a\nb\nc", 3, "", true},
		{"over limit", "a\nb\nc\nd\ne", 2, "... (3 more lines)", false},
		{"empty", "", 5, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateLines(tt.input, tt.max)
			if tt.wantFull {
				if got != tt.input {
					t.Errorf("truncateLines() = %q, want %q", got, tt.input)
				}
			} else if !strings.Contains(got, tt.wantSub) {
				t.Errorf("truncateLines() = %q, want to contain %q", got, tt.wantSub)
			}
		})
	}
}
