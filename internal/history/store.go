// Package history persists per-lead campaign memory. The store is an
// append-only event log with a derived snapshot read: every run appends one
// event, and Get replays the lead's events into a Record. Nothing is ever
// deleted, which gives a natural audit trail and keeps concurrent-write
// reasoning simple.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"leadpilot/internal/logging"
	"leadpilot/internal/traits"
)

// RunEvent is the record appended after every campaign run.
type RunEvent struct {
	RunID      string     `json:"run_id"`
	TraitSet   traits.Set `json:"trait_set"`
	Angle      string     `json:"angle"`
	FinalScore float64    `json:"final_score"`
	Status     string     `json:"status"` // approved, escalated, failed
	At         time.Time  `json:"at"`
}

// Outcome is one past campaign result in a derived Record.
type Outcome struct {
	RunID      string    `json:"run_id"`
	Angle      string    `json:"angle"`
	FinalScore float64   `json:"final_score"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// Record is the derived snapshot of a lead's memory. Built fresh from the
// event log on every Get; callers own the copy.
type Record struct {
	LeadID      string       `json:"lead_id"`
	TraitSets   []traits.Set `json:"trait_sets"`
	Outcomes    []Outcome    `json:"outcomes"`
	Runs        int          `json:"runs"`
	Approved    int          `json:"approved"`
	SuccessRate float64      `json:"success_rate"`
}

// EscalatedAngles returns angles that previously escalated below the given
// score, worst first. The planner uses this to avoid repeating a losing
// angle.
func (r *Record) EscalatedAngles(below float64) []string {
	seen := make(map[string]bool)
	var angles []string
	for _, o := range r.Outcomes {
		if o.Status == "escalated" && o.FinalScore < below && !seen[o.Angle] {
			seen[o.Angle] = true
			angles = append(angles, o.Angle)
		}
	}
	return angles
}

// Store is the keyed lookup of prior attempts per lead.
type Store interface {
	// Get replays the lead's event log into a Record. ok is false when the
	// lead has no history yet.
	Get(ctx context.Context, leadID string) (rec *Record, ok bool, err error)

	// AppendRun appends one run event for the lead. Events are never
	// updated or deleted.
	AppendRun(ctx context.Context, leadID string, ev RunEvent) error

	// Acquire takes the per-lead lock, serializing read-plan-write cycles
	// for one lead ID against concurrent runs. Returns the release func.
	Acquire(leadID string) (release func())

	Close() error
}

// SQLiteStore implements Store on a sqlite database.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.Mutex
	locks *leadLocks
}

// NewSQLiteStore opens (or creates) the history store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	s := &SQLiteStore{db: db, locks: newLeadLocks()}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}

	logging.Store("History store initialized at %s", path)
	return s, nil
}

// NewSQLiteStoreWithDB wraps an existing connection (shared with the trace
// store in the default wiring).
func NewSQLiteStoreWithDB(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, locks: newLeadLocks()}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		lead_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_lead ON history_events(lead_id);
	CREATE INDEX IF NOT EXISTS idx_history_run ON history_events(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get replays the lead's events in insertion order.
func (s *SQLiteStore) Get(ctx context.Context, leadID string) (*Record, bool, error) {
	timer := logging.StartTimer(logging.CategoryStore, "history.Get")
	defer timer.Stop()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM history_events WHERE lead_id = ? ORDER BY seq ASC`, leadID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query history for %s: %w", leadID, err)
	}
	defer rows.Close()

	rec := &Record{LeadID: leadID}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		var ev RunEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping corrupt history event for %s: %v", leadID, err)
			continue
		}
		rec.apply(ev)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if rec.Runs == 0 {
		return nil, false, nil
	}
	return rec, true, nil
}

func (r *Record) apply(ev RunEvent) {
	r.TraitSets = append(r.TraitSets, ev.TraitSet)
	r.Outcomes = append(r.Outcomes, Outcome{
		RunID:      ev.RunID,
		Angle:      ev.Angle,
		FinalScore: ev.FinalScore,
		Status:     ev.Status,
		At:         ev.At,
	})
	r.Runs++
	if ev.Status == "approved" {
		r.Approved++
	}
	r.SuccessRate = float64(r.Approved) / float64(r.Runs)
}

// AppendRun appends one run event.
func (s *SQLiteStore) AppendRun(ctx context.Context, leadID string, ev RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history_events (lead_id, run_id, payload) VALUES (?, ?, ?)`,
		leadID, ev.RunID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to append history event for %s: %w", leadID, err)
	}

	logging.StoreDebug("history event appended: lead=%s run=%s status=%s", leadID, ev.RunID, ev.Status)
	return nil
}

// Acquire takes the per-lead lock.
func (s *SQLiteStore) Acquire(leadID string) func() {
	return s.locks.acquire(leadID)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// leadLocks is a keyed mutex registry. Locks are never removed; the set of
// lead IDs a process touches is bounded by its work queue.
type leadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLeadLocks() *leadLocks {
	return &leadLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *leadLocks) acquire(leadID string) func() {
	l.mu.Lock()
	m, ok := l.locks[leadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[leadID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
