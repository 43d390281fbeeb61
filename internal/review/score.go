// Package review scores candidate outreach messages across five weighted
// quality dimensions. Scoring is deterministic: the same message, lead and
// plan always produce the same score.
package review

// Weights for the overall score. They sum to 1.0.
const (
	WeightPersonalization  = 0.25
	WeightStrategicInsight = 0.30
	WeightToneFit          = 0.20
	WeightClarity          = 0.15
	WeightBrandCompliance  = 0.10
)

// Score holds the five sub-scores, each in [0, 100], plus reviewer findings.
// The overall value is always derived from the sub-scores; it is never stored.
type Score struct {
	Personalization  float64  `json:"personalization"`
	StrategicInsight float64  `json:"strategic_insight"`
	ToneFit          float64  `json:"tone_fit"`
	Clarity          float64  `json:"clarity"`
	BrandCompliance  float64  `json:"brand_compliance"`
	Issues           []string `json:"issues,omitempty"`
}

// Overall computes the weighted quality score.
func (s Score) Overall() float64 {
	return s.Personalization*WeightPersonalization +
		s.StrategicInsight*WeightStrategicInsight +
		s.ToneFit*WeightToneFit +
		s.Clarity*WeightClarity +
		s.BrandCompliance*WeightBrandCompliance
}

// clamp keeps a sub-score inside the valid range.
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
