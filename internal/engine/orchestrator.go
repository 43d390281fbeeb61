package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadpilot/internal/config"
	"leadpilot/internal/delivery"
	"leadpilot/internal/gate"
	"leadpilot/internal/generation"
	"leadpilot/internal/history"
	"leadpilot/internal/lead"
	"leadpilot/internal/llm"
	"leadpilot/internal/logging"
	"leadpilot/internal/planner"
	"leadpilot/internal/retry"
	"leadpilot/internal/review"
	"leadpilot/internal/routing"
	"leadpilot/internal/trace"
	"leadpilot/internal/traits"
)

// Engine orchestrates campaign runs. Configuration is fixed at construction;
// concurrent engines with different configurations are safe.
type Engine struct {
	detector  *traits.Detector
	planner   *planner.Planner
	generator *generation.Generator
	reviewer  *review.Reviewer

	history history.Store
	traces  *trace.Store

	// Delivery collaborators may be nil (dry runs); dispatch is then skipped
	// and the directive is only recorded in the trace.
	queue delivery.EmailQueue
	crm   delivery.CRM

	passThreshold   float64
	maxRetries      int
	transportPolicy retry.Policy
	genTimeout      time.Duration
	delTimeout      time.Duration
	maxConcurrent   int64
}

// New wires an engine from configuration and collaborators.
func New(cfg *config.Config, client llm.Client, hist history.Store, traces *trace.Store,
	queue delivery.EmailQueue, crm delivery.CRM) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("engine requires a text-generation client")
	}
	if hist == nil || traces == nil {
		return nil, fmt.Errorf("engine requires history and trace stores")
	}

	genTimeout, err := cfg.GenerationTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid generation timeout: %w", err)
	}
	delTimeout, err := cfg.DeliveryTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid delivery timeout: %w", err)
	}

	maxConcurrent := int64(cfg.Engine.MaxConcurrentRuns)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Engine{
		detector:        traits.NewDetector(cfg.Traits),
		planner:         planner.New(cfg.Planner),
		generator:       generation.NewGenerator(client, cfg.LLM.MaxTokens, cfg.LLM.Temperature),
		reviewer:        review.NewReviewer(cfg.Review),
		history:         hist,
		traces:          traces,
		queue:           queue,
		crm:             crm,
		passThreshold:   cfg.Engine.PassThreshold,
		maxRetries:      cfg.Engine.MaxQualityRetries,
		transportPolicy: retry.DefaultPolicy(cfg.Engine.MaxTransportRetries + 1),
		genTimeout:      genTimeout,
		delTimeout:      delTimeout,
		maxConcurrent:   maxConcurrent,
	}, nil
}

// Run drives one lead through the full workflow and returns the final run
// state. A run that terminates failed or escalated is not an error; the
// returned error covers infrastructure trouble only (store writes).
func (e *Engine) Run(ctx context.Context, lc lead.Context) (*RunState, error) {
	rs := newRunState(uuid.NewString(), lc)
	logging.Engine("Run started run=%s lead=%s", rs.RunID, lc.ID)

	release := e.history.Acquire(lc.ID)
	defer release()

	e.execute(ctx, rs)

	if err := e.finalize(ctx, rs); err != nil {
		return rs, err
	}

	logging.Engine("Run finished run=%s lead=%s status=%s path_len=%d",
		rs.RunID, lc.ID, rs.Status, len(rs.DecisionPath))
	return rs, nil
}

// execute walks the state machine up to (but not including) finalization.
// A node panic fails this run only; it must never take down sibling runs.
func (e *Engine) execute(ctx context.Context, rs *RunState) {
	defer func() {
		if r := recover(); r != nil {
			logging.EngineError("run %s panicked: %v", rs.RunID, r)
			rs.log(StateFinalizing, "internal error: %v", r)
			e.fail(rs, fmt.Errorf("internal error: %v", r))
		}
	}()

	// Detecting.
	set, err := e.detector.Detect(rs.Lead)
	if err != nil {
		if errors.Is(err, lead.ErrInvalidInput) {
			rs.log(StateDetecting, "invalid lead input: %v", err)
			e.fail(rs, err)
			return
		}
		rs.log(StateDetecting, "detection error: %v", err)
		e.fail(rs, err)
		return
	}
	rs.Traits = set
	rs.log(StateDetecting, "%d traits, primary=%s", len(set.Traits), set.Primary.Name)

	if ctx.Err() != nil {
		e.cancel(rs, StateDetecting, ctx.Err())
		return
	}

	// Planning. History is advisory; a read failure falls back to planning
	// without memory rather than failing the run.
	rec, ok, err := e.history.Get(ctx, rs.Lead.ID)
	if err != nil {
		logging.EngineError("history read failed for lead=%s: %v", rs.Lead.ID, err)
		rec, ok = nil, false
	}
	if !ok {
		rec = nil
	}
	rs.Plan = e.planner.Plan(set, rec)
	rs.log(StatePlanning, "sequence=%s angle=%s tone=%s steps=%d",
		rs.Plan.Sequence, rs.Plan.Angle, rs.Plan.Tone, len(rs.Plan.Steps))

	// Generate, review and gate each step in order. Escalation stops the
	// run; remaining steps are not attempted.
	for i, step := range rs.Plan.Steps {
		if ctx.Err() != nil {
			e.cancel(rs, StateGenerating, ctx.Err())
			return
		}
		if !e.runStep(ctx, rs, i, step) {
			return
		}
	}

	// Routing. A cancellation that lands after the last approval must not
	// start a delivery hand-off.
	if ctx.Err() != nil {
		e.cancel(rs, StateRouting, ctx.Err())
		return
	}
	e.route(ctx, rs)
}

// runStep executes the generate/review/gate loop for one step. Returns false
// when the run must stop (escalation or cancellation).
func (e *Engine) runStep(ctx context.Context, rs *RunState, index int, step string) bool {
	var priorIssues []string

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			e.cancel(rs, StateGenerating, ctx.Err())
			return false
		}

		msg, err := e.generateWithRetry(ctx, rs, step, attempt, priorIssues)
		if err != nil {
			// Transport retries exhausted. A zero-score review forces the
			// gate to escalate this step.
			rs.log(StateGenerating, "step=%s attempt=%d generation failed: %v", step, attempt+1, err)
			rs.StepResults = append(rs.StepResults, StepResult{
				Message:  generation.Message{Step: step, Attempt: attempt + 1},
				Overall:  0,
				Attempts: attempt + 1,
			})
			rs.log(StateGating, "step=%s escalate (transport retries exhausted)", step)
			e.escalate(rs)
			return false
		}
		rs.log(StateGenerating, "step=%s attempt=%d/%d", step, attempt+1, e.maxRetries+1)

		score := e.reviewer.Review(msg, rs.Lead, rs.Traits)
		overall := score.Overall()
		rs.log(StateReviewing, "step=%s overall=%.1f issues=%d", step, overall, len(score.Issues))

		decision := gate.Evaluate(overall, attempt, e.passThreshold, e.maxRetries)
		rs.log(StateGating, "step=%s decision=%s", step, decision)
		logging.Gate("run=%s step=%s overall=%.1f attempt=%d decision=%s",
			rs.RunID, step, overall, attempt, decision)

		result := StepResult{
			Message:  msg,
			Score:    score,
			Overall:  overall,
			Attempts: attempt + 1,
			Approved: decision == gate.Approve,
		}

		switch decision {
		case gate.Approve:
			rs.StepResults = append(rs.StepResults, result)
			return true
		case gate.Retry:
			priorIssues = score.Issues
		case gate.Escalate:
			rs.StepResults = append(rs.StepResults, result)
			e.escalate(rs)
			return false
		}
	}
}

// generateWithRetry wraps the single-call generator in the transport-retry
// policy with a per-call timeout.
func (e *Engine) generateWithRetry(ctx context.Context, rs *RunState, step string,
	attempt int, priorIssues []string) (generation.Message, error) {
	in := generation.StepInput{
		Step:          step,
		Lead:          rs.Lead,
		Traits:        rs.Traits,
		Plan:          rs.Plan,
		Attempt:       attempt + 1,
		PriorIssues:   priorIssues,
		PriorMessages: rs.ApprovedMessages(),
	}
	return retry.Do(ctx, e.transportPolicy, func() (generation.Message, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
		defer cancel()
		return e.generator.Generate(callCtx, in)
	})
}

// route selects the delivery channel and dispatches the hand-off.
func (e *Engine) route(ctx context.Context, rs *RunState) {
	directive, err := routing.Route(rs.ApprovedMessages(), rs.Lead)
	if err != nil {
		if errors.Is(err, routing.ErrInsufficientContactInfo) {
			rs.log(StateRouting, "no usable contact channel")
		} else {
			rs.log(StateRouting, "routing error: %v", err)
		}
		e.fail(rs, err)
		return
	}
	rs.Directive = &directive
	rs.log(StateRouting, "channel=%s", directive.Channel)

	if err := e.dispatch(ctx, rs, directive); err != nil {
		// Approved messages and the trace survive a failed hand-off.
		rs.log(StateRouting, "delivery failed: %v", err)
		e.fail(rs, err)
		return
	}

	rs.Status = StatusApproved
}

// dispatch hands the directive to the matching delivery collaborator, with
// transport retries.
func (e *Engine) dispatch(ctx context.Context, rs *RunState, d routing.Directive) error {
	switch d.Channel {
	case routing.ChannelEmail:
		if e.queue == nil {
			rs.log(StateRouting, "dispatch skipped (no queue configured)")
			return nil
		}
		_, err := retry.Do(ctx, e.transportPolicy, func() (struct{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.delTimeout)
			defer cancel()
			return struct{}{}, e.queue.Enqueue(callCtx, rs.RunID, d.Emails)
		})
		return err

	case routing.ChannelManual:
		if e.crm == nil {
			rs.log(StateRouting, "dispatch skipped (no CRM configured)")
			return nil
		}
		_, err := retry.Do(ctx, e.transportPolicy, func() (struct{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.delTimeout)
			defer cancel()
			return struct{}{}, e.crm.WriteManual(callCtx, rs.Lead.ID, *d.Manual)
		})
		return err

	default:
		return fmt.Errorf("unknown delivery channel %q", d.Channel)
	}
}

func (e *Engine) escalate(rs *RunState) {
	rs.Status = StatusEscalated
}

func (e *Engine) fail(rs *RunState, err error) {
	rs.Status = StatusFailed
	if err != nil {
		rs.Err = err.Error()
	}
}

func (e *Engine) cancel(rs *RunState, at State, err error) {
	rs.log(at, "run cancelled: %v", err)
	e.fail(rs, err)
}

// finalize stamps the terminal status, writes the history event, and emits
// the trace. History and trace writes are best-effort independent: a history
// failure does not suppress the trace.
func (e *Engine) finalize(ctx context.Context, rs *RunState) error {
	if rs.Status == "" {
		rs.Status = StatusFailed
	}
	rs.log(StateFinalizing, "status=%s", rs.Status)

	var errs []error

	// The history write uses a background-derived context so a cancelled run
	// is still recorded.
	histCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.history.AppendRun(histCtx, rs.Lead.ID, history.RunEvent{
		RunID:      rs.RunID,
		TraitSet:   rs.Traits,
		Angle:      rs.Plan.Angle,
		FinalScore: rs.FinalScore(),
		Status:     string(rs.Status),
		At:         time.Now().UTC(),
	}); err != nil {
		errs = append(errs, fmt.Errorf("history write: %w", err))
	}

	if err := e.traces.Append(trace.Trace{
		RunID:        rs.RunID,
		LeadID:       rs.Lead.ID,
		StartedAt:    rs.StartedAt,
		FinishedAt:   time.Now().UTC(),
		Status:       string(rs.Status),
		DecisionPath: rs.DecisionPath,
		Snapshot:     rs.snapshot(),
	}); err != nil {
		errs = append(errs, fmt.Errorf("trace write: %w", err))
	}

	return errors.Join(errs...)
}
