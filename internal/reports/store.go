package reports

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/profilescout/profilescout/internal/metrics"
)

// Store archives performance reports in SQLite so runs can be compared
// across restarts.
type Store struct {
	db *sql.DB
}

// Open creates or opens the report archive at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging archive: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenMemory creates an in-memory archive (useful for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory archive: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS performance_reports (
    id TEXT PRIMARY KEY,
    generated_at DATETIME NOT NULL,
    total_calls INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON performance_reports(generated_at);
`

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives one report. The full report is stored as JSON; id and
// generation time are lifted into columns for listing and ordering.
func (s *Store) Save(report *metrics.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO performance_reports (id, generated_at, total_calls, payload) VALUES (?, ?, ?, ?)`,
		report.ID, report.GeneratedAt.UTC().Format(time.RFC3339Nano), report.Summary.TotalCalls, string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// Entry is one archived report in a listing.
type Entry struct {
	ID          string
	GeneratedAt time.Time
	TotalCalls  int
}

// List returns archived reports, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, generated_at, total_calls FROM performance_reports ORDER BY generated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var generatedAt string
		if err := rows.Scan(&e.ID, &generatedAt, &e.TotalCalls); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, generatedAt); err == nil {
			e.GeneratedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Load retrieves one archived report by id.
func (s *Store) Load(id string) (*metrics.Report, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM performance_reports WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading report: %w", err)
	}

	var report metrics.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

// Latest retrieves the most recently generated report, or nil when the
// archive is empty.
func (s *Store) Latest() (*metrics.Report, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM performance_reports ORDER BY generated_at DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest report: %w", err)
	}
	return s.Load(id)
}
