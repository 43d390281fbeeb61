// Package trace persists execution traces of completed runs. Traces are
// written once at run end and never updated; the store is append-only.
package trace

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadpilot/internal/logging"
)

// ErrNotFound is returned when no trace exists for a run id.
var ErrNotFound = errors.New("trace not found")

// Trace is the immutable record of one completed run.
type Trace struct {
	RunID        string          `json:"run_id"`
	LeadID       string          `json:"lead_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Status       string          `json:"status"` // approved, escalated, failed
	DecisionPath []string        `json:"decision_path"`
	Snapshot     json.RawMessage `json:"snapshot"` // serialized final run state
}

// Store persists traces in sqlite. Thread-safe.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore wires the store onto an existing database connection and ensures
// the schema exists.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure trace schema: %w", err)
	}
	logging.StoreDebug("Trace store initialized")
	return s, nil
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS execution_traces (
		run_id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		decision_path TEXT NOT NULL,
		snapshot TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_traces_lead ON execution_traces(lead_id);
	CREATE INDEX IF NOT EXISTS idx_traces_status ON execution_traces(status);
	CREATE INDEX IF NOT EXISTS idx_traces_finished ON execution_traces(finished_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes one completed trace. Run ids are unique; writing the same
// run twice is an error.
func (s *Store) Append(t Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := json.Marshal(t.DecisionPath)
	if err != nil {
		return fmt.Errorf("failed to marshal decision path: %w", err)
	}

	snapshot := t.Snapshot
	if len(snapshot) == 0 {
		snapshot = json.RawMessage("{}")
	}

	_, err = s.db.Exec(`
		INSERT INTO execution_traces
			(run_id, lead_id, started_at, finished_at, status, decision_path, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.LeadID, t.StartedAt.UTC(), t.FinishedAt.UTC(),
		t.Status, string(path), string(snapshot))
	if err != nil {
		return fmt.Errorf("failed to insert trace %s: %w", t.RunID, err)
	}

	logging.StoreDebug("Appended trace run=%s lead=%s status=%s", t.RunID, t.LeadID, t.Status)
	return nil
}

// Get returns one trace by run id.
func (s *Store) Get(runID string) (Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT run_id, lead_id, started_at, finished_at, status, decision_path, snapshot
		FROM execution_traces WHERE run_id = ?`, runID)

	t, err := scanTrace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Trace{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return t, err
}

// List returns traces for one lead, newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) List(leadID, status string, limit int) ([]Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT run_id, lead_id, started_at, finished_at, status, decision_path, snapshot
		FROM execution_traces WHERE lead_id = ?`
	args := []any{leadID}

	if status != "" {
		query += " AND status = ?"
		args = append(args, strings.ToLower(status))
	}
	query += " ORDER BY finished_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces for %s: %w", leadID, err)
	}
	defer rows.Close()

	var out []Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (Trace, error) {
	var t Trace
	var path, snapshot string
	err := row.Scan(&t.RunID, &t.LeadID, &t.StartedAt, &t.FinishedAt,
		&t.Status, &path, &snapshot)
	if err != nil {
		return Trace{}, err
	}
	if err := json.Unmarshal([]byte(path), &t.DecisionPath); err != nil {
		return Trace{}, fmt.Errorf("failed to decode decision path for %s: %w", t.RunID, err)
	}
	t.Snapshot = json.RawMessage(snapshot)
	return t, nil
}
