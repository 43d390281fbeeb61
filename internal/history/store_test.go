package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot/internal/traits"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGet_AbsentLead(t *testing.T) {
	s := testStore(t)
	rec, ok, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestAppendAndReplay(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ts := traits.Set{Primary: traits.Trait{Name: "saas", Confidence: 0.8}}
	require.NoError(t, s.AppendRun(ctx, "l1", RunEvent{
		RunID: "r1", TraitSet: ts, Angle: "efficiency", FinalScore: 85, Status: "approved", At: time.Now(),
	}))
	require.NoError(t, s.AppendRun(ctx, "l1", RunEvent{
		RunID: "r2", TraitSet: ts, Angle: "growth", FinalScore: 55, Status: "escalated", At: time.Now(),
	}))

	rec, ok, err := s.Get(ctx, "l1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 2, rec.Runs)
	assert.Equal(t, 1, rec.Approved)
	assert.InDelta(t, 0.5, rec.SuccessRate, 1e-9)
	require.Len(t, rec.Outcomes, 2)
	// Insertion order preserved.
	assert.Equal(t, "r1", rec.Outcomes[0].RunID)
	assert.Equal(t, "r2", rec.Outcomes[1].RunID)
}

func TestEscalatedAngles(t *testing.T) {
	rec := &Record{Outcomes: []Outcome{
		{Angle: "growth", FinalScore: 55, Status: "escalated"},
		{Angle: "efficiency", FinalScore: 85, Status: "approved"},
		{Angle: "growth", FinalScore: 40, Status: "escalated"},
		{Angle: "trust", FinalScore: 79, Status: "escalated"},
	}}

	angles := rec.EscalatedAngles(60)
	assert.Equal(t, []string{"growth"}, angles)

	angles = rec.EscalatedAngles(80)
	assert.Equal(t, []string{"growth", "trust"}, angles)
}

func TestLeadIsolation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRun(ctx, "l1", RunEvent{RunID: "r1", Status: "approved", At: time.Now()}))

	_, ok, err := s.Get(ctx, "l2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcquire_SerializesPerLead(t *testing.T) {
	s := testStore(t)

	var order []int
	var mu sync.Mutex
	release := s.Acquire("l1")

	done := make(chan struct{})
	go func() {
		r := s.Acquire("l1") // blocks until first holder releases
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		r()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	release()
	<-done

	assert.Equal(t, []int{1, 2}, order)
}

func TestAcquire_DifferentLeadsIndependent(t *testing.T) {
	s := testStore(t)
	r1 := s.Acquire("l1")
	defer r1()

	acquired := make(chan struct{})
	go func() {
		r2 := s.Acquire("l2")
		r2()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on l1 blocked acquisition for l2")
	}
}
