package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 80.0, cfg.Engine.PassThreshold)
	assert.Equal(t, 2, cfg.Engine.MaxQualityRetries)
	assert.Equal(t, 8, cfg.Engine.MaxConcurrentRuns)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
engine:
  pass_threshold: 70
  max_quality_retries: 1
llm:
  provider: openai
  model: gpt-4o-mini
planner:
  mappings:
    - primary_trait: saas
      sequence: product_led
      steps: [intro, value_prop, call_to_action]
      angle: efficiency
      tone: direct
      priority: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 70.0, cfg.Engine.PassThreshold)
	assert.Equal(t, 1, cfg.Engine.MaxQualityRetries)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	// Untouched fields keep defaults.
	assert.Equal(t, 8, cfg.Engine.MaxConcurrentRuns)
	require.Len(t, cfg.Planner.Mappings, 1)
	assert.Equal(t, "saas", cfg.Planner.Mappings[0].PrimaryTrait)
}

func TestLoad_InvalidThresholdRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  pass_threshold: 150\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides_APIKey(t *testing.T) {
	t.Setenv("LEADPILOT_LLM_API_KEY", "key-from-env")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, "key-from-env", cfg.LLM.APIKey)
}

func TestEnvOverrides_GeminiFallback(t *testing.T) {
	t.Setenv("LEADPILOT_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg := DefaultConfig()
	cfg.LLM.APIKey = ""
	cfg.applyEnvOverrides()
	assert.Equal(t, "gemini-key", cfg.LLM.APIKey)
}

func TestTimeoutParsing(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.GenerationTimeout()
	require.NoError(t, err)
	assert.Equal(t, "2m0s", d.String())

	cfg.Engine.GenerationTimeout = "bogus"
	_, err = cfg.GenerationTimeout()
	assert.Error(t, err)
}
