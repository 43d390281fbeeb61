package review

import (
	"strings"

	"leadpilot/internal/config"
	"leadpilot/internal/generation"
	"leadpilot/internal/lead"
	"leadpilot/internal/logging"
	"leadpilot/internal/traits"
)

// defaultDenylist covers the usual cold-email filler that fails brand
// compliance when no denylist is configured.
var defaultDenylist = []string{
	"to whom it may concern",
	"i hope this email finds you well",
	"touching base",
	"circle back",
	"synergy",
	"game-changer",
	"once in a lifetime",
	"limited time offer",
	"act now",
	"dear sir or madam",
}

// insightVocabulary marks strategic, business-value language.
var insightVocabulary = []string{
	"revenue", "growth", "cost", "efficiency", "margin", "pipeline",
	"market", "scale", "scaling", "conversion", "retention", "churn",
	"compliance", "risk", "automation", "roi", "productivity",
	"competitive", "benchmark", "integration",
}

// fillerPhrases are generic statements that say nothing specific.
var fillerPhrases = []string{
	"we are the best",
	"industry leader",
	"world class",
	"cutting edge",
	"state of the art",
	"innovative solutions",
	"we offer a wide range",
}

// ctaMarkers signal an explicit call to action.
var ctaMarkers = []string{
	"call", "chat", "meet", "demo", "reply", "schedule", "connect",
	"discuss", "available", "open to", "interested", "?",
}

// Reviewer scores candidate messages. Stateless apart from configuration;
// safe for concurrent use.
type Reviewer struct {
	denylist []string
}

// NewReviewer builds a reviewer from configuration, falling back to the
// default denylist.
func NewReviewer(cfg config.ReviewConfig) *Reviewer {
	denylist := cfg.Denylist
	if len(denylist) == 0 {
		denylist = defaultDenylist
	}
	lowered := make([]string, len(denylist))
	for i, p := range denylist {
		lowered[i] = strings.ToLower(p)
	}
	return &Reviewer{denylist: lowered}
}

// Review scores one candidate message. It never fails; weak messages simply
// score low. Each dimension is checked independently of the others.
func (r *Reviewer) Review(msg generation.Message, lc lead.Context, set traits.Set) Score {
	text := strings.ToLower(msg.Subject + "\n" + msg.Body)

	s := Score{}
	var issues []string

	s.Personalization, issues = checkPersonalization(text, lc, issues)
	s.StrategicInsight, issues = checkStrategicInsight(text, issues)
	s.ToneFit, issues = checkToneFit(text, lc, set, issues)
	s.Clarity, issues = checkClarity(msg, issues)
	s.BrandCompliance, issues = r.checkBrandCompliance(text, issues)
	s.Issues = issues

	logging.ReviewDebug("Scored step=%s lead=%s overall=%.1f issues=%d",
		msg.Step, lc.ID, s.Overall(), len(issues))
	return s
}

// checkPersonalization looks for the lead's name, company and role language.
func checkPersonalization(text string, lc lead.Context, issues []string) (float64, []string) {
	score := 0.0

	if first := strings.ToLower(lc.FirstName()); first != "" && strings.Contains(text, first) {
		score += 40
	} else {
		issues = append(issues, "message does not reference the recipient by name")
	}

	if company := strings.ToLower(lc.Company); company != "" && strings.Contains(text, company) {
		score += 35
	} else {
		issues = append(issues, "message does not mention the recipient's company")
	}

	if title := strings.ToLower(lc.Title); title != "" {
		matched := false
		for _, word := range strings.Fields(title) {
			if len(word) > 2 && strings.Contains(text, word) {
				matched = true
				break
			}
		}
		if matched {
			score += 25
		} else {
			issues = append(issues, "message does not speak to the recipient's role")
		}
	} else {
		// No title known, cannot hold its absence against the message.
		score += 25
	}

	return clamp(score), issues
}

// checkStrategicInsight rewards business-value language and penalizes filler.
func checkStrategicInsight(text string, issues []string) (float64, []string) {
	hits := 0
	for _, word := range insightVocabulary {
		if strings.Contains(text, word) {
			hits++
		}
	}

	score := float64(hits) * 25
	if hits == 0 {
		issues = append(issues, "message contains no market or business-value language")
	}

	for _, filler := range fillerPhrases {
		if strings.Contains(text, filler) {
			score -= 30
			issues = append(issues, "generic filler phrase: "+filler)
		}
	}

	return clamp(score), issues
}

// checkToneFit aligns the message register with the lead's stated
// communication tone, falling back to the detected tone signal.
func checkToneFit(text string, lc lead.Context, set traits.Set, issues []string) (float64, []string) {
	formalMarkers := []string{"regarding", "furthermore", "pursuant", "sincerely", "kind regards"}
	casualMarkers := []string{"hey", "awesome", "cool", "btw", "cheers", "!"}

	countMarkers := func(markers []string) int {
		n := 0
		for _, m := range markers {
			n += strings.Count(text, m)
		}
		return n
	}
	formal := countMarkers(formalMarkers)
	casual := countMarkers(casualMarkers)

	tone := strings.ToLower(strings.TrimSpace(lc.CommunicationTone))
	if tone == "" {
		tone = set.ToneSignal()
	}

	switch tone {
	case "formal":
		if casual > formal+1 {
			issues = append(issues, "register too casual for a formal recipient")
			return 40, issues
		}
		return 90, issues
	case "casual":
		if formal > casual+1 {
			issues = append(issues, "register too stiff for a casual recipient")
			return 50, issues
		}
		return 90, issues
	default:
		// Neutral tone: only penalize extremes.
		if casual > 4 || formal > 4 {
			issues = append(issues, "register is skewed for a neutral recipient")
			return 60, issues
		}
		return 80, issues
	}
}

// checkClarity enforces length bounds and the presence of a call to action.
func checkClarity(msg generation.Message, issues []string) (float64, []string) {
	score := 100.0
	words := len(strings.Fields(msg.Body))

	switch {
	case words < 20:
		score -= 40
		issues = append(issues, "body too short to carry a complete message")
	case words > 220:
		score -= 35
		issues = append(issues, "body too long for a cold outreach message")
	}

	if strings.TrimSpace(msg.Subject) == "" {
		score -= 25
		issues = append(issues, "missing subject line")
	} else if len(msg.Subject) > 90 {
		score -= 15
		issues = append(issues, "subject line too long")
	}

	lower := strings.ToLower(msg.Body)
	hasCTA := false
	for _, marker := range ctaMarkers {
		if strings.Contains(lower, marker) {
			hasCTA = true
			break
		}
	}
	if !hasCTA {
		score -= 30
		issues = append(issues, "no clear call to action")
	}

	return clamp(score), issues
}

// checkBrandCompliance fails messages containing denylisted phrases.
func (r *Reviewer) checkBrandCompliance(text string, issues []string) (float64, []string) {
	score := 100.0
	for _, phrase := range r.denylist {
		if strings.Contains(text, phrase) {
			score -= 40
			issues = append(issues, "denylisted phrase: "+phrase)
		}
	}
	return clamp(score), issues
}
