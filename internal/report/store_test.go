package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/overseer/internal/runner"
)

func testRecord(id string, started time.Time) *RunRecord {
	return &RunRecord{
		ID:          id,
		Profile:     "unit",
		Argv:        []string{"go", "test", "./..."},
		ExitCode:    0,
		Verdict:     runner.Success,
		InfoStream:  "ok\tpkg/a\nok\tpkg/b\n",
		ErrorStream: "warning: cache miss\n",
		StartedAt:   started,
		Duration:    1500 * time.Millisecond,
	}
}

func TestFromResult(t *testing.T) {
	res := &runner.Result{
		RunID:       "r1",
		Argv:        []string{"make"},
		ExitCode:    runner.ExitInterrupted,
		Verdict:     runner.Failure,
		InfoStream:  "building\n",
		Err:         &runner.DeadlineError{Timeout: time.Second},
		Interrupted: true,
	}
	rec := FromResult("build", res)
	if rec.ID != "r1" || rec.Profile != "build" {
		t.Errorf("id/profile = %q/%q", rec.ID, rec.Profile)
	}
	if rec.ErrorKind != runner.KindDeadline.String() {
		t.Errorf("ErrorKind = %q, want %q", rec.ErrorKind, runner.KindDeadline)
	}
	if rec.Error == "" {
		t.Error("expected error text")
	}
	if got := rec.ExitLabel(); got != "interrupted" {
		t.Errorf("ExitLabel = %q, want interrupted", got)
	}
	if rec.Succeeded() {
		t.Error("failure record must not report success")
	}
}

func TestGrep(t *testing.T) {
	rec := testRecord("r1", time.Now())

	got := Grep(rec, "", "ok")
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(got), got)
	}
	if got[1].Line != 2 || got[1].Stream != Stdout || got[1].Text != "ok\tpkg/b" {
		t.Errorf("second match = %+v", got[1])
	}

	got = Grep(rec, Stderr, "cache")
	if len(got) != 1 || got[0].Stream != Stderr || got[0].Line != 1 {
		t.Errorf("stderr matches = %+v", got)
	}

	if got := Grep(rec, Stdout, "cache"); len(got) != 0 {
		t.Errorf("stdout should not match cache: %+v", got)
	}
	if got := Grep(rec, "", ""); len(got) != 3 {
		t.Errorf("empty pattern matched %d lines, want 3", len(got))
	}
}

func TestParseStream(t *testing.T) {
	for _, s := range []string{"", "stdout", "stderr"} {
		if _, err := ParseStream(s); err != nil {
			t.Errorf("ParseStream(%q): %v", s, err)
		}
	}
	if _, err := ParseStream("stdin"); err == nil {
		t.Error("expected error for stdin")
	}
}

func TestDiff(t *testing.T) {
	a := testRecord("a", time.Now())
	b := testRecord("b", time.Now().Add(time.Minute))

	text, err := Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Errorf("equivalent runs produced diff:\n%s", text)
	}
	if !Equivalent(a, b) {
		t.Error("Equivalent = false for identical outcomes")
	}

	b.InfoStream = "ok\tpkg/a\nFAIL\tpkg/b\n"
	b.Verdict = runner.Failure
	b.ExitCode = 1
	text, err = Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"--- run/a", "+++ run/b", "-ok\tpkg/b", "+FAIL\tpkg/b", "-exit: 0", "+exit: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("diff missing %q:\n%s", want, text)
		}
	}
	if Equivalent(a, b) {
		t.Error("Equivalent = true for differing outcomes")
	}
}

// storeContract exercises the behaviour shared by every Store.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := testRecord("run-1", base)
	second := testRecord("run-2", base.Add(time.Hour))
	second.Verdict = runner.Failure
	second.ExitCode = runner.ExitException
	second.Error = "exec: not found"
	second.ErrorKind = "exception"
	second.Interrupted = true

	for _, rec := range []*RunRecord{first, second} {
		if err := s.Save(rec); err != nil {
			t.Fatalf("Save(%s): %v", rec.ID, err)
		}
	}

	got, err := s.Load("run-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Verdict != runner.Failure || got.ExitCode != runner.ExitException || !got.Interrupted {
		t.Errorf("loaded %+v", got)
	}
	if got.Error != "exec: not found" || got.ErrorKind != "exception" {
		t.Errorf("error = %q/%q", got.Error, got.ErrorKind)
	}
	if !got.StartedAt.Equal(second.StartedAt) || got.Duration != second.Duration {
		t.Errorf("timing = %v/%v", got.StartedAt, got.Duration)
	}
	if strings.Join(got.Argv, " ") != "go test ./..." {
		t.Errorf("argv = %q", got.Argv)
	}

	if _, err := s.Load("missing"); err == nil {
		t.Error("expected error loading a missing run")
	}

	l, ok := s.(Lister)
	if !ok {
		return
	}
	recs, err := l.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "run-2" || recs[1].ID != "run-1" {
		t.Fatalf("List order = %v", ids(recs))
	}
	recs, err = l.List(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "run-2" {
		t.Errorf("List(1) = %v", ids(recs))
	}
}

func ids(recs []*RunRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestDiskStore(t *testing.T) {
	storeContract(t, NewDiskStore(t.TempDir()))
}

func TestDiskStore_LazyTempDir(t *testing.T) {
	s := NewDiskStore("")
	if err := s.Save(testRecord("r", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("r"); err != nil {
		t.Fatal(err)
	}
}

func TestDiskStore_RejectsPathIDs(t *testing.T) {
	parent := t.TempDir()
	s := NewDiskStore(filepath.Join(parent, "runs"))
	for _, id := range []string{"", "..", "a/b", `a\b`, "../escape"} {
		if _, err := s.Load(id); err == nil {
			t.Errorf("Load(%q) succeeded", id)
		}
		if err := s.Save(&RunRecord{ID: id}); err == nil {
			t.Errorf("Save(%q) succeeded", id)
		}
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.json")); !os.IsNotExist(err) {
		t.Errorf("record written outside the store: %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(testRecord("keep", time.Now())); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Load("keep"); err != nil {
		t.Fatalf("record lost across reopen: %v", err)
	}
}

type countingStore struct {
	recs  map[string]*RunRecord
	loads int
}

func (s *countingStore) Save(rec *RunRecord) error {
	s.recs[rec.ID] = rec
	return nil
}

func (s *countingStore) Load(id string) (*RunRecord, error) {
	s.loads++
	rec, ok := s.recs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func TestLRUStore(t *testing.T) {
	back := &countingStore{recs: map[string]*RunRecord{}}
	s := NewLRUStore(2, back)
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(testRecord(id, now)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	// b and c are cached; a was evicted.
	if _, err := s.Load("c"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("cache hit went to backing store")
	}
	if _, err := s.Load("a"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("loads = %d, want 1", back.loads)
	}

	// Loading a evicted b, the least recently used.
	if _, err := s.Load("b"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 2 {
		t.Errorf("loads = %d, want 2", back.loads)
	}

	if _, err := s.List(10); err == nil {
		t.Error("expected List to fail on a non-listing backing store")
	}
}

func TestLRUStore_ListDelegates(t *testing.T) {
	s := NewLRUStore(4, NewDiskStore(t.TempDir()))
	storeContract(t, s)
}
