package report

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff between the observable outcome of two runs:
// exit code, verdict, interruption, error and both streams. It returns the
// empty string when the runs are equivalent. Run IDs and timings are not
// compared.
func Diff(a, b *RunRecord) (string, error) {
	ra, rb := render(a), render(b)
	if ra == rb {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ra),
		B:        difflib.SplitLines(rb),
		FromFile: "run/" + a.ID,
		ToFile:   "run/" + b.ID,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s %s: %w", a.ID, b.ID, err)
	}
	return text, nil
}

// Equivalent reports whether two runs produced the same observable outcome.
func Equivalent(a, b *RunRecord) bool {
	return render(a) == render(b)
}

func render(r *RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "exit: %s\n", r.ExitLabel())
	fmt.Fprintf(&b, "verdict: %s\n", r.Verdict)
	fmt.Fprintf(&b, "interrupted: %t\n", r.Interrupted)
	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", r.Error)
	}
	b.WriteString("[stdout]\n")
	b.WriteString(r.InfoStream)
	b.WriteString("[stderr]\n")
	b.WriteString(r.ErrorStream)
	return b.String()
}
