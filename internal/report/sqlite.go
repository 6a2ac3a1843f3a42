package report

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run history in a SQLite database.
type SQLiteStore struct {
	Path string
	db   *sql.DB
}

// OpenSQLite opens or creates the history database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{Path: absPath, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	profile TEXT NOT NULL,
	argv_json TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	verdict TEXT NOT NULL,
	info_stream TEXT NOT NULL,
	error_stream TEXT NOT NULL,
	error TEXT NOT NULL,
	error_kind TEXT NOT NULL,
	interrupted INTEGER NOT NULL,
	truncated INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	duration_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, profile, argv_json, exit_code, verdict, info_stream, error_stream,
	error, error_kind, interrupted, truncated, started_at, duration_ns`

// Save inserts rec, replacing any previous record with the same ID.
func (s *SQLiteStore) Save(rec *RunRecord) error {
	argv, err := json.Marshal(rec.Argv)
	if err != nil {
		return fmt.Errorf("marshal argv: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Profile, string(argv), rec.ExitCode, rec.Verdict.String(),
		rec.InfoStream, rec.ErrorStream, rec.Error, rec.ErrorKind,
		boolInt(rec.Interrupted), boolInt(rec.Truncated),
		rec.StartedAt.UTC().Format(timeLayout), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the record with the given ID.
func (s *SQLiteStore) Load(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return rec, nil
}

// List returns up to limit records, most recent first.
func (s *SQLiteStore) List(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []*RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*RunRecord, error) {
	var (
		rec         RunRecord
		argv        string
		verdict     string
		interrupted int
		truncated   int
		startedAt   string
		duration    int64
	)
	err := sc.Scan(&rec.ID, &rec.Profile, &argv, &rec.ExitCode, &verdict,
		&rec.InfoStream, &rec.ErrorStream, &rec.Error, &rec.ErrorKind,
		&interrupted, &truncated, &startedAt, &duration)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(argv), &rec.Argv); err != nil {
		return nil, fmt.Errorf("unmarshal argv: %w", err)
	}
	if err := rec.Verdict.UnmarshalText([]byte(verdict)); err != nil {
		return nil, err
	}
	if rec.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	rec.Interrupted = interrupted != 0
	rec.Truncated = truncated != 0
	rec.Duration = time.Duration(duration)
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
