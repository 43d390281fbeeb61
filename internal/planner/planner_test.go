package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot/internal/config"
	"leadpilot/internal/history"
	"leadpilot/internal/traits"
)

func setWith(primary string, others ...string) traits.Set {
	s := traits.Set{Primary: traits.Trait{Name: primary, Confidence: 0.9}}
	s.Traits = append(s.Traits, s.Primary)
	for _, o := range others {
		s.Traits = append(s.Traits, traits.Trait{Name: o, Confidence: 0.5})
	}
	return s
}

func TestPlan_NoMatchFallsBackToDefault(t *testing.T) {
	p := New(config.PlannerConfig{})
	plan := p.Plan(setWith("unknown"), nil)

	assert.Equal(t, "default", plan.Sequence)
	assert.Equal(t, []string{"intro", "value_prop", "call_to_action"}, plan.Steps)
}

func TestPlan_PrimaryTraitMatch(t *testing.T) {
	p := New(config.PlannerConfig{})
	plan := p.Plan(setWith("agency"), nil)

	assert.Equal(t, "partnership", plan.Sequence)
	assert.Equal(t, "client_results", plan.Angle)
}

func TestPlan_RequiredTraitsPreferRicherMapping(t *testing.T) {
	p := New(config.PlannerConfig{})

	// saas alone -> product_led; saas + ai_adopter -> higher-priority innovation.
	assert.Equal(t, "product_led", p.Plan(setWith("saas"), nil).Sequence)
	assert.Equal(t, "innovation", p.Plan(setWith("saas", "ai_adopter"), nil).Sequence)
}

func TestPlan_AvoidsBurnedAngle(t *testing.T) {
	p := New(config.PlannerConfig{})
	rec := &history.Record{
		Runs: 1,
		Outcomes: []history.Outcome{
			{Angle: "innovation_edge", FinalScore: 50, Status: "escalated"},
		},
	}

	plan := p.Plan(setWith("saas", "ai_adopter"), rec)

	// innovation_edge escalated low last time; next-best saas mapping wins.
	assert.Equal(t, "product_led", plan.Sequence)
	assert.Equal(t, "efficiency", plan.Angle)
}

func TestPlan_AllAnglesBurnedStillPlans(t *testing.T) {
	p := New(config.PlannerConfig{})
	rec := &history.Record{
		Runs: 2,
		Outcomes: []history.Outcome{
			{Angle: "innovation_edge", FinalScore: 40, Status: "escalated"},
			{Angle: "efficiency", FinalScore: 45, Status: "escalated"},
		},
	}

	plan := p.Plan(setWith("saas", "ai_adopter"), rec)

	// Everything is burned; best candidate still beats the default plan.
	assert.Equal(t, "innovation", plan.Sequence)
}

func TestPlan_ApprovedAngleNotBurned(t *testing.T) {
	p := New(config.PlannerConfig{})
	rec := &history.Record{
		Runs: 1,
		Outcomes: []history.Outcome{
			{Angle: "innovation_edge", FinalScore: 90, Status: "approved"},
		},
	}

	plan := p.Plan(setWith("saas", "ai_adopter"), rec)
	assert.Equal(t, "innovation_edge", plan.Angle)
}

func TestPlan_Deterministic(t *testing.T) {
	p := New(config.PlannerConfig{})
	set := setWith("fintech")
	first := p.Plan(set, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Plan(set, nil))
	}
}

func TestPlan_ConfiguredMappings(t *testing.T) {
	p := New(config.PlannerConfig{Mappings: []config.MappingConfig{
		{PrimaryTrait: "aerospace", Sequence: "moonshot", Steps: []string{"intro"}, Angle: "frontier", Tone: "bold", Priority: 5},
	}})

	plan := p.Plan(setWith("aerospace"), nil)
	require.Equal(t, "moonshot", plan.Sequence)
	assert.Equal(t, []string{"intro"}, plan.Steps)
}
