// Package engine drives a lead through the campaign workflow: trait
// detection, planning, the generate/review/gate loop per step, routing, and
// finalization. The engine owns all retry looping and emits the execution
// trace at run end.
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"leadpilot/internal/generation"
	"leadpilot/internal/lead"
	"leadpilot/internal/planner"
	"leadpilot/internal/review"
	"leadpilot/internal/routing"
	"leadpilot/internal/traits"
)

// State names the workflow phases. GeneratingStep, Reviewing and Gating
// repeat per plan step.
type State string

const (
	StateDetecting  State = "detecting"
	StatePlanning   State = "planning"
	StateGenerating State = "generating"
	StateReviewing  State = "reviewing"
	StateGating     State = "gating"
	StateRouting    State = "routing"
	StateFinalizing State = "finalizing"
)

// RunStatus is the terminal outcome of a run.
type RunStatus string

const (
	StatusApproved  RunStatus = "approved"
	StatusEscalated RunStatus = "escalated"
	StatusFailed    RunStatus = "failed"
)

// StepResult pairs a step's final message with its review score.
type StepResult struct {
	Message  generation.Message `json:"message"`
	Score    review.Score       `json:"score"`
	Overall  float64            `json:"overall"`
	Attempts int                `json:"attempts"` // generation calls made for the step
	Approved bool               `json:"approved"`
}

// RunState accumulates one lead's progress through a run. Mutated only by
// the engine; serialized into the trace snapshot at run end.
type RunState struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	Lead   lead.Context `json:"lead"`
	Traits traits.Set   `json:"traits"`
	Plan   planner.Plan `json:"plan"`

	// StepResults holds one entry per attempted step, in plan order. A
	// step's entry is its last attempt, approved or not.
	StepResults []StepResult `json:"step_results"`

	Directive *routing.Directive `json:"directive,omitempty"`

	DecisionPath []string  `json:"decision_path"`
	Status       RunStatus `json:"status,omitempty"`
	Err          string    `json:"error,omitempty"`
}

// newRunState starts the accumulator for one lead.
func newRunState(runID string, lc lead.Context) *RunState {
	return &RunState{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Lead:      lc,
	}
}

// log appends one human-readable transition entry.
func (rs *RunState) log(state State, format string, args ...any) {
	entry := fmt.Sprintf("%s: %s", state, fmt.Sprintf(format, args...))
	rs.DecisionPath = append(rs.DecisionPath, entry)
}

// ApprovedMessages returns the finalized messages of approved steps, in
// plan order.
func (rs *RunState) ApprovedMessages() []generation.Message {
	var out []generation.Message
	for _, sr := range rs.StepResults {
		if sr.Approved {
			out = append(out, sr.Message)
		}
	}
	return out
}

// FinalScore is the overall score of the last attempted step, the value
// recorded into history.
func (rs *RunState) FinalScore() float64 {
	if len(rs.StepResults) == 0 {
		return 0
	}
	return rs.StepResults[len(rs.StepResults)-1].Overall
}

// snapshot serializes the final state for the trace store.
func (rs *RunState) snapshot() json.RawMessage {
	data, err := json.Marshal(rs)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`{"run_id":%q,"snapshot_error":%q}`, rs.RunID, err.Error()))
	}
	return data
}
