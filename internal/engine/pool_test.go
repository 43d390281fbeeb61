package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leadpilot/internal/config"
	"leadpilot/internal/lead"
	"leadpilot/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func batchLeads(n int) []lead.Context {
	leads := make([]lead.Context, n)
	for i := range leads {
		lc := richLead()
		lc.ID = fmt.Sprintf("lead-%d", i)
		lc.Email = fmt.Sprintf("lead%d@northwind.example", i)
		leads[i] = lc
	}
	return leads
}

func TestRunBatch_AllApproved(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Engine.MaxConcurrentRuns = 3
	}, &llm.StubClient{Responses: []string{strongResponse}})

	leads := batchLeads(7)
	results := h.engine.RunBatch(context.Background(), leads)
	require.Len(t, results, 7)

	for i, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.State)
		assert.Equal(t, leads[i].ID, r.Lead.ID, "results keep input order")
		assert.Equal(t, StatusApproved, r.State.Status)
	}

	// One run per lead was recorded.
	for _, lc := range leads {
		rec, ok, err := h.hist.Get(context.Background(), lc.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, rec.Runs)
	}
}

func TestRunBatch_MixedOutcomes(t *testing.T) {
	h := newHarness(t, nil, &llm.StubClient{Responses: []string{strongResponse}})

	leads := batchLeads(3)
	leads[1].Email = ""
	leads[1].NetworkURL = ""

	results := h.engine.RunBatch(context.Background(), leads)
	require.Len(t, results, 3)
	assert.Equal(t, StatusApproved, results[0].State.Status)
	assert.Equal(t, StatusFailed, results[1].State.Status)
	assert.Equal(t, StatusApproved, results[2].State.Status)
}

func TestRunBatch_CancelledContextStopsNewRuns(t *testing.T) {
	h := newHarness(t, nil, llm.NewStubClient())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.engine.RunBatch(ctx, batchLeads(4))
	require.Len(t, results, 4)
	for _, r := range results {
		// Either the semaphore refused the slot or the run recorded the
		// cancellation; no run completes successfully.
		if r.Err == nil {
			require.NotNil(t, r.State)
			assert.Equal(t, StatusFailed, r.State.Status)
		}
	}
}
