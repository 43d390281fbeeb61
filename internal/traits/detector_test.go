package traits

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot/internal/config"
	"leadpilot/internal/lead"
)

func richLead() lead.Context {
	return lead.Context{
		ID:      "l1",
		Name:    "Ada Lovelace",
		Title:   "CTO",
		Company: "Analytical Engines",
		CompanyDescription: "A SaaS platform offering subscription analytics dashboards " +
			"powered by machine learning and automation for fintech payments teams.",
		Services: []string{"analytics", "data pipelines"},
	}
}

func TestDetect_RichDescription(t *testing.T) {
	d := NewDetector(config.TraitsConfig{})

	set, err := d.Detect(richLead())
	require.NoError(t, err)

	assert.NotEmpty(t, set.Traits)
	assert.Greater(t, set.Primary.Confidence, 0.0)
	assert.True(t, set.Has("saas"))
	assert.True(t, set.Has("ai_adopter"))
	for _, tr := range set.Traits {
		assert.GreaterOrEqual(t, tr.Confidence, 0.0)
		assert.LessOrEqual(t, tr.Confidence, 1.0)
		assert.NotEmpty(t, tr.Rationale)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDetector(config.TraitsConfig{})
	lc := richLead()

	first, err := d.Detect(lc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.Detect(lc)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("detection not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestDetect_SparseDataYieldsUnknown(t *testing.T) {
	d := NewDetector(config.TraitsConfig{})
	set, err := d.Detect(lead.Context{ID: "l2", Name: "Bo", Company: "Acme"})
	require.NoError(t, err)

	assert.Empty(t, set.Traits)
	assert.Equal(t, "unknown", set.Primary.Name)
	assert.Zero(t, set.Primary.Confidence)
}

func TestDetect_InvalidLead(t *testing.T) {
	d := NewDetector(config.TraitsConfig{})
	_, err := d.Detect(lead.Context{Name: "No ID"})
	assert.True(t, errors.Is(err, lead.ErrInvalidInput))
}

func TestDetect_TieBrokenByCategoryPriority(t *testing.T) {
	d := NewDetector(config.TraitsConfig{Groups: []config.KeywordGroupConfig{
		{Category: "communication_style", Trait: "casual", Keywords: []string{"widgets"}},
		{Category: "business_model", Trait: "saas", Keywords: []string{"widgets"}},
	}})

	set, err := d.Detect(lead.Context{
		ID: "l3", Name: "Cy", Company: "W Co",
		CompanyDescription: "we sell widgets",
	})
	require.NoError(t, err)

	// Both traits match with identical confidence; business_model outranks
	// communication_style in the fixed priority order.
	require.Len(t, set.Traits, 2)
	assert.Equal(t, "saas", set.Primary.Name)
}

func TestDetect_ConfiguredGroupsReplaceDefaults(t *testing.T) {
	d := NewDetector(config.TraitsConfig{Groups: []config.KeywordGroupConfig{
		{Category: "industry", Trait: "aerospace", Keywords: []string{"rockets", "satellites"}},
	}})

	set, err := d.Detect(lead.Context{
		ID: "l4", Name: "Di", Company: "Orbit",
		CompanyDescription: "we launch rockets and satellites",
	})
	require.NoError(t, err)

	assert.Equal(t, "aerospace", set.Primary.Name)
	assert.Equal(t, 1.0, set.Primary.Confidence)
}

func TestToneSignal(t *testing.T) {
	d := NewDetector(config.TraitsConfig{})
	set, err := d.Detect(lead.Context{
		ID: "l5", Name: "Ed", Company: "BigCorp",
		CompanyDescription: "enterprise procurement and compliance governance",
	})
	require.NoError(t, err)
	assert.Equal(t, "formal", set.ToneSignal())
}
