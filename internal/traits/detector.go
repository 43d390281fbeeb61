// Package traits derives confidence-scored categorical attributes from a
// lead's company signals. Detection is pure rule matching over configured
// keyword groups; no network calls are made.
package traits

import (
	"sort"
	"strings"

	"leadpilot/internal/config"
	"leadpilot/internal/lead"
	"leadpilot/internal/logging"
)

// Category is an attribute category a trait belongs to.
type Category string

const (
	CategoryBusinessModel Category = "business_model"
	CategoryTechnology    Category = "technology"
	CategoryIndustry      Category = "industry"
	CategorySeniority     Category = "seniority"
	CategoryCommStyle     Category = "communication_style"
)

// categoryPriority breaks confidence ties. Lower index wins.
var categoryPriority = []Category{
	CategoryBusinessModel,
	CategoryIndustry,
	CategoryTechnology,
	CategorySeniority,
	CategoryCommStyle,
}

func priorityOf(c Category) int {
	for i, p := range categoryPriority {
		if p == c {
			return i
		}
	}
	return len(categoryPriority)
}

// Trait is a single detected attribute.
type Trait struct {
	Category   Category `json:"category"`
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"` // 0.0-1.0
	Rationale  string   `json:"rationale"`
}

// Set is the detection result for one run. Read-only after detection.
type Set struct {
	Traits  []Trait `json:"traits"`
	Primary Trait   `json:"primary"`
}

// Unknown is the primary trait when no signals match.
var Unknown = Trait{Category: CategoryBusinessModel, Name: "unknown", Confidence: 0}

// Names returns the detected trait names in confidence order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.Traits))
	for _, t := range s.Traits {
		names = append(names, t.Name)
	}
	return names
}

// Has reports whether a trait name was detected with confidence > 0.
func (s Set) Has(name string) bool {
	for _, t := range s.Traits {
		if t.Name == name && t.Confidence > 0 {
			return true
		}
	}
	return false
}

// ToneSignal returns the detected communication-style trait name, or the
// empty string when none was detected.
func (s Set) ToneSignal() string {
	for _, t := range s.Traits {
		if t.Category == CategoryCommStyle {
			return t.Name
		}
	}
	return ""
}

// KeywordGroup defines the match rules for one trait.
type KeywordGroup struct {
	Category Category
	Trait    string
	Keywords []string
}

// Detector matches lead signals against keyword groups.
type Detector struct {
	groups []KeywordGroup
}

// NewDetector builds a detector from config, falling back to the built-in
// keyword groups when the config carries none.
func NewDetector(cfg config.TraitsConfig) *Detector {
	if len(cfg.Groups) == 0 {
		return &Detector{groups: defaultKeywordGroups()}
	}
	groups := make([]KeywordGroup, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups = append(groups, KeywordGroup{
			Category: Category(g.Category),
			Trait:    g.Trait,
			Keywords: g.Keywords,
		})
	}
	return &Detector{groups: groups}
}

// Detect derives a trait set from the lead's company signals. Sparse data
// never fails: it produces an empty set with the "unknown" primary. The only
// error is malformed lead identity.
func (d *Detector) Detect(lc lead.Context) (Set, error) {
	if err := lc.Validate(); err != nil {
		return Set{}, err
	}

	text := lc.SignalText()
	var detected []Trait

	for _, g := range d.groups {
		matched := matchKeywords(text, g.Keywords)
		if len(matched) == 0 {
			continue
		}
		// Confidence is the matched share of the group's keywords, so a
		// group with many keywords needs broad evidence to score high.
		conf := float64(len(matched)) / float64(len(g.Keywords))
		if conf > 1 {
			conf = 1
		}
		detected = append(detected, Trait{
			Category:   g.Category,
			Name:       g.Trait,
			Confidence: conf,
			Rationale:  "matched: " + strings.Join(matched, ", "),
		})
	}

	// Deterministic order: confidence desc, then category priority, then name.
	sort.SliceStable(detected, func(i, j int) bool {
		if detected[i].Confidence != detected[j].Confidence {
			return detected[i].Confidence > detected[j].Confidence
		}
		pi, pj := priorityOf(detected[i].Category), priorityOf(detected[j].Category)
		if pi != pj {
			return pi < pj
		}
		return detected[i].Name < detected[j].Name
	})

	set := Set{Traits: detected, Primary: Unknown}
	if len(detected) > 0 {
		set.Primary = detected[0]
	}

	logging.TraitsDebug("lead %s: %d traits, primary=%s (%.2f)",
		lc.ID, len(detected), set.Primary.Name, set.Primary.Confidence)
	return set, nil
}

// matchKeywords returns the keywords present in text, preserving group order.
func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// defaultKeywordGroups is the built-in rule table used when the config does
// not supply one.
func defaultKeywordGroups() []KeywordGroup {
	return []KeywordGroup{
		{CategoryBusinessModel, "saas", []string{"saas", "subscription", "platform", "cloud-based"}},
		{CategoryBusinessModel, "agency", []string{"agency", "clients", "consulting", "studio"}},
		{CategoryBusinessModel, "ecommerce", []string{"shop", "store", "ecommerce", "checkout", "cart"}},
		{CategoryTechnology, "ai_adopter", []string{"machine learning", "artificial intelligence", " ai ", "automation", "llm"}},
		{CategoryTechnology, "data_driven", []string{"analytics", "data", "dashboard", "metrics"}},
		{CategoryIndustry, "fintech", []string{"payments", "banking", "fintech", "lending", "finance"}},
		{CategoryIndustry, "healthcare", []string{"health", "patient", "clinic", "medical"}},
		{CategoryIndustry, "logistics", []string{"logistics", "freight", "supply chain", "shipping"}},
		{CategorySeniority, "executive", []string{"ceo", "cto", "founder", "chief", "vp ", "president"}},
		{CategorySeniority, "manager", []string{"manager", "head of", "lead ", "director"}},
		{CategoryCommStyle, "formal", []string{"enterprise", "compliance", "governance", "procurement"}},
		{CategoryCommStyle, "casual", []string{"hey", "awesome", "love", "community", "🚀"}},
	}
}
