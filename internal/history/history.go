// history.go keeps a sqlite log of per-target deploy outcomes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/mcdeploy/internal/artifact"
	"github.com/example/mcdeploy/internal/deploy"
)

// DefaultPath is relative to the project root.
const DefaultPath = ".mcdeploy/history.sqlite"

// Entry is one recorded deploy outcome.
type Entry struct {
	ID       int64
	At       time.Time
	Target   string
	Endpoint string
	Artifact string
	Version  string
	Status   deploy.Status
	Detail   string
}

// Store persists entries.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, path: path, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS deploy_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at_ns INTEGER NOT NULL,
  target TEXT NOT NULL,
  endpoint TEXT NOT NULL,
  artifact TEXT NOT NULL,
  version TEXT NOT NULL,
  status TEXT NOT NULL,
  detail TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS deploy_results_target ON deploy_results(target, at_ns);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init history schema: %w", err)
		}
	}
	return nil
}

// Record stores the outcome of deploying a to one target.
func (s *Store) Record(ctx context.Context, a artifact.Descriptor, r deploy.Result) error {
	detail := r.Reason
	if r.Err != nil {
		detail = r.Err.Error()
	} else if r.Status == deploy.StatusSucceeded && len(r.Removed) > 0 {
		detail = "removed " + strings.Join(r.Removed, ", ")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO deploy_results (at_ns, target, endpoint, artifact, version, status, detail)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.now().UTC().UnixNano(), r.Target, r.Endpoint, a.FileName(), a.Version.String(), string(r.Status), detail)
	if err != nil {
		return fmt.Errorf("insert deploy result: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, at_ns, target, endpoint, artifact, version, status, detail FROM deploy_results ORDER BY at_ns DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deploy results: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			atNS   int64
			status string
		)
		if err := rows.Scan(&e.ID, &atNS, &e.Target, &e.Endpoint, &e.Artifact, &e.Version, &status, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, atNS).UTC()
		e.Status = deploy.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
