package trace

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func sampleTrace(runID, leadID, status string, finished time.Time) Trace {
	return Trace{
		RunID:        runID,
		LeadID:       leadID,
		StartedAt:    finished.Add(-time.Minute),
		FinishedAt:   finished,
		Status:       status,
		DecisionPath: []string{"detecting: 2 traits", "planning: sequence=saas_standard", "finalizing: status=" + status},
		Snapshot:     json.RawMessage(`{"lead_id":"` + leadID + `"}`),
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	s := newTestStore(t)
	want := sampleTrace("run-1", "lead-1", "approved", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.Append(want))

	got, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.LeadID, got.LeadID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.DecisionPath, got.DecisionPath)
	assert.JSONEq(t, string(want.Snapshot), string(got.Snapshot))
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_AppendIsWriteOnce(t *testing.T) {
	s := newTestStore(t)
	tr := sampleTrace("run-1", "lead-1", "approved", time.Now())
	require.NoError(t, s.Append(tr))
	assert.Error(t, s.Append(tr))
}

func TestStore_ListNewestFirstWithFilter(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Append(sampleTrace("run-1", "lead-1", "approved", base.Add(-2*time.Hour))))
	require.NoError(t, s.Append(sampleTrace("run-2", "lead-1", "escalated", base.Add(-time.Hour))))
	require.NoError(t, s.Append(sampleTrace("run-3", "lead-1", "approved", base)))
	require.NoError(t, s.Append(sampleTrace("run-4", "lead-2", "approved", base)))

	all, err := s.List("lead-1", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].RunID)
	assert.Equal(t, "run-1", all[2].RunID)

	approved, err := s.List("lead-1", "approved", 0)
	require.NoError(t, err)
	require.Len(t, approved, 2)

	limited, err := s.List("lead-1", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-3", limited[0].RunID)
}
