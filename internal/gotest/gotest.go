// Package gotest understands the event stream written by `go test -json`.
// It provides an evaluation policy that judges a run from its test events
// and a summary of the failures for reporting.
package gotest

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/deixis/overseer/internal/runner"
)

// Event is a single line of `go test -json` output.
type Event struct {
	Action     string  `json:"Action"`
	Package    string  `json:"Package"`
	Test       string  `json:"Test"`
	Output     string  `json:"Output"`
	Elapsed    float64 `json:"Elapsed"`
	ImportPath string  `json:"ImportPath"`
}

// ParseEvent decodes line as a test event. ok is false for lines that are
// not JSON objects, such as output from a wrapper script.
func ParseEvent(line string) (ev Event, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Event{}, false
	}
	if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Action == "" {
		return Event{}, false
	}
	return ev, true
}

// Policy fails a run on the first failed test, package or build seen on
// stdout. Everything else is left to the exit code.
type Policy struct {
	runner.ExitCodePolicy
}

// InfoLine reports Failure for fail and build-fail events.
func (Policy) InfoLine(line string) runner.Verdict {
	ev, ok := ParseEvent(line)
	if !ok {
		return runner.Unresolved
	}
	switch ev.Action {
	case "fail", "build-fail":
		return runner.Failure
	}
	return runner.Unresolved
}

// Summary holds parsed test results.
type Summary struct {
	Status      string // PASS or FAIL
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	BuildErrors []BuildError
	Failures    []Failure
}

// BuildError holds a build failure.
type BuildError struct {
	ImportPath string
	Output     string
}

// Failure holds a single test failure.
type Failure struct {
	Package string
	Test    string
	Output  string
}

// Symbol returns the Go-qualified test name.
func (f Failure) Symbol() string {
	return f.Package + "." + f.Test
}

// maxFailureLines is the maximum number of output lines shown per failure.
const maxFailureLines = 20

// Summarize parses the captured stdout of a `go test -json` run. It
// returns nil when the text holds no test events.
func Summarize(stdout string) *Summary {
	s := &Summary{Status: "PASS"}

	type testKey struct{ pkg, test string }
	outputs := make(map[testKey]*strings.Builder)
	var failed []testKey

	buildOutputs := make(map[string]*strings.Builder)
	var failedBuilds []string

	events := 0
	for _, line := range strings.Split(stdout, "\n") {
		ev, ok := ParseEvent(line)
		if !ok {
			continue
		}
		events++
		key := testKey{ev.Package, ev.Test}

		switch ev.Action {
		case "output":
			if ev.Test != "" {
				if _, ok := outputs[key]; !ok {
					outputs[key] = &strings.Builder{}
				}
				outputs[key].WriteString(ev.Output)
			}
		case "pass":
			if ev.Test != "" {
				s.Total++
				s.Passed++
			}
		case "fail":
			s.Status = "FAIL"
			if ev.Test != "" {
				s.Total++
				s.Failed++
				failed = append(failed, key)
			}
		case "skip":
			if ev.Test != "" {
				s.Total++
				s.Skipped++
			}
		case "build-output":
			ip := importPath(ev)
			if _, ok := buildOutputs[ip]; !ok {
				buildOutputs[ip] = &strings.Builder{}
			}
			buildOutputs[ip].WriteString(ev.Output)
		case "build-fail":
			s.Status = "FAIL"
			if ip := importPath(ev); !slices.Contains(failedBuilds, ip) {
				failedBuilds = append(failedBuilds, ip)
			}
		}
	}
	if events == 0 {
		return nil
	}

	for _, key := range failed {
		var output string
		if b, ok := outputs[key]; ok {
			output = b.String()
		}
		s.Failures = append(s.Failures, Failure{Package: key.pkg, Test: key.test, Output: output})
	}
	for _, ip := range failedBuilds {
		var output string
		if b, ok := buildOutputs[ip]; ok {
			output = strings.TrimRight(b.String(), "\n")
		}
		s.BuildErrors = append(s.BuildErrors, BuildError{ImportPath: ip, Output: output})
	}
	return s
}

func importPath(ev Event) string {
	if ev.ImportPath != "" {
		return ev.ImportPath
	}
	return ev.Package
}

// Headline is a one-line description of the outcome.
func (s *Summary) Headline() string {
	switch {
	case len(s.BuildErrors) > 0:
		pkgs := make([]string, len(s.BuildErrors))
		for i, be := range s.BuildErrors {
			pkgs[i] = be.ImportPath
		}
		return "build failed: " + strings.Join(pkgs, ", ")
	case s.Failed > 0:
		syms := make([]string, len(s.Failures))
		for i, f := range s.Failures {
			syms[i] = f.Symbol()
		}
		return fmt.Sprintf("%d of %d tests failed: %s", s.Failed, s.Total, strings.Join(syms, ", "))
	case s.Status == "FAIL":
		return "package failed without a failing test"
	default:
		return fmt.Sprintf("all %d tests passed", s.Total)
	}
}

func (s *Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	if s.Status == "PASS" {
		fmt.Fprintf(&b, "All %d tests passed", s.Total)
		if s.Skipped > 0 {
			fmt.Fprintf(&b, " (%d skipped)", s.Skipped)
		}
		fmt.Fprintln(&b, ".")
		return b.String()
	}

	if len(s.BuildErrors) > 0 {
		fmt.Fprintln(&b, "Build errors:")
		for _, be := range s.BuildErrors {
			fmt.Fprintf(&b, "  %s:\n", be.ImportPath)
			for _, line := range strings.Split(truncateLines(be.Output, maxFailureLines), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, "Failed %d of %d tests:\n", s.Failed, s.Total)
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  - %s\n", f.Symbol())
			if output := truncateLines(f.Output, maxFailureLines); output != "" {
				for _, line := range strings.Split(output, "\n") {
					fmt.Fprintf(&b, "      %s\n", line)
				}
			}
		}
	}
	return b.String()
}

func truncateLines(s string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	result := strings.Join(lines[:maxLines], "\n")
	result += fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
	return result
}
