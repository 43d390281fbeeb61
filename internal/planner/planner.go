// Package planner maps detected traits (and lead history) to a named message
// sequence, a messaging angle, and a tone. Planning never fails: when no
// mapping matches, the default plan is used.
package planner

import (
	"sort"

	"leadpilot/internal/config"
	"leadpilot/internal/history"
	"leadpilot/internal/logging"
	"leadpilot/internal/traits"
)

// Plan is the campaign shape for one run. Fixed for the run's lifetime;
// quality retries regenerate messages, they never re-plan.
type Plan struct {
	Sequence string   `json:"sequence"` // named sequence, e.g. "product_led"
	Steps    []string `json:"steps"`    // ordered step identifiers
	Angle    string   `json:"angle"`
	Tone     string   `json:"tone"`
}

// Mapping is one candidate campaign shape keyed on an attribute combination.
type Mapping struct {
	PrimaryTrait   string
	RequiredTraits []string
	Sequence       string
	Steps          []string
	Angle          string
	Tone           string
	Priority       int
}

// Planner resolves trait sets to plans.
type Planner struct {
	mappings []Mapping
}

// escalationScoreCeiling: a past angle counts as "burned" only when it
// escalated below this score.
const escalationScoreCeiling = 70.0

// New builds a planner from config, falling back to the built-in mapping
// table when the config carries none.
func New(cfg config.PlannerConfig) *Planner {
	if len(cfg.Mappings) == 0 {
		return &Planner{mappings: defaultMappings()}
	}
	mappings := make([]Mapping, 0, len(cfg.Mappings))
	for _, m := range cfg.Mappings {
		mappings = append(mappings, Mapping{
			PrimaryTrait:   m.PrimaryTrait,
			RequiredTraits: m.RequiredTraits,
			Sequence:       m.Sequence,
			Steps:          m.Steps,
			Angle:          m.Angle,
			Tone:           m.Tone,
			Priority:       m.Priority,
		})
	}
	return &Planner{mappings: mappings}
}

// DefaultPlan is the fallback when no mapping matches.
func DefaultPlan() Plan {
	return Plan{
		Sequence: "default",
		Steps:    []string{"intro", "value_prop", "call_to_action"},
		Angle:    "general_value",
		Tone:     "professional",
	}
}

// Plan resolves a trait set (and optional history) to a campaign plan.
// rec may be nil for new leads.
func (p *Planner) Plan(set traits.Set, rec *history.Record) Plan {
	candidates := p.match(set)
	if len(candidates) == 0 {
		logging.PlannerDebug("no mapping matched primary=%s, using default plan", set.Primary.Name)
		return DefaultPlan()
	}

	// Best candidate first: higher priority wins, sequence name breaks ties
	// so the choice is deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Sequence < candidates[j].Sequence
	})

	// Skip angles that previously escalated with a low score for this lead,
	// preferring the next-best candidate.
	var burned []string
	if rec != nil {
		burned = rec.EscalatedAngles(escalationScoreCeiling)
	}
	for _, c := range candidates {
		if containsString(burned, c.Angle) {
			logging.Planner("skipping burned angle %q for lead with %d prior runs", c.Angle, rec.Runs)
			continue
		}
		return toPlan(c)
	}

	// Every candidate's angle is burned; take the best one anyway rather
	// than falling back to default, since a matched sequence still beats a
	// generic one.
	return toPlan(candidates[0])
}

func (p *Planner) match(set traits.Set) []Mapping {
	var out []Mapping
	for _, m := range p.mappings {
		if m.PrimaryTrait != "" && m.PrimaryTrait != set.Primary.Name {
			continue
		}
		ok := true
		for _, req := range m.RequiredTraits {
			if !set.Has(req) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

func toPlan(m Mapping) Plan {
	steps := m.Steps
	if len(steps) == 0 {
		steps = DefaultPlan().Steps
	}
	return Plan{Sequence: m.Sequence, Steps: steps, Angle: m.Angle, Tone: m.Tone}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// defaultMappings is the built-in trait-to-sequence table.
func defaultMappings() []Mapping {
	return []Mapping{
		{
			PrimaryTrait: "saas",
			Sequence:     "product_led",
			Steps:        []string{"intro", "value_prop", "call_to_action"},
			Angle:        "efficiency",
			Tone:         "direct",
			Priority:     10,
		},
		{
			PrimaryTrait:   "saas",
			RequiredTraits: []string{"ai_adopter"},
			Sequence:       "innovation",
			Steps:          []string{"intro", "insight", "call_to_action"},
			Angle:          "innovation_edge",
			Tone:           "enthusiastic",
			Priority:       20,
		},
		{
			PrimaryTrait: "agency",
			Sequence:     "partnership",
			Steps:        []string{"intro", "case_study", "call_to_action"},
			Angle:        "client_results",
			Tone:         "collaborative",
			Priority:     10,
		},
		{
			PrimaryTrait: "ecommerce",
			Sequence:     "revenue",
			Steps:        []string{"intro", "value_prop", "call_to_action"},
			Angle:        "conversion_lift",
			Tone:         "direct",
			Priority:     10,
		},
		{
			PrimaryTrait: "fintech",
			Sequence:     "trust_first",
			Steps:        []string{"intro", "credibility", "call_to_action"},
			Angle:        "risk_reduction",
			Tone:         "formal",
			Priority:     10,
		},
	}
}
