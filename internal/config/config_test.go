package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetDistill/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  window_seconds: 1800
  seed: 7
source:
  root: /data/segments
sinks:
  nats:
    enabled: true
    url: nats://localhost:4222
    subject: netdistill
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1800, cfg.Pipeline.WindowSeconds)
	assert.Equal(t, int64(7), cfg.Pipeline.Seed)
	// Untouched fields keep their defaults.
	assert.Equal(t, 120, cfg.Pipeline.IdleSplitSeconds)
	assert.Equal(t, 50, cfg.Pipeline.ScanUniqueDstsThreshold)
	assert.Equal(t, 40, cfg.Pipeline.HTTPURITokenBudget)
	assert.NotEmpty(t, cfg.Pipeline.ServicePortMap)
	assert.NotEmpty(t, cfg.Pipeline.HTTPAlwaysKeepLexicon)

	assert.Equal(t, "/data/segments", cfg.Source.Root)
	assert.True(t, cfg.Sinks.NATS.Enabled)
	assert.Equal(t, "netdistill", cfg.Sinks.NATS.Subject)
	assert.False(t, cfg.Sinks.ClickHouse.Enabled)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  iforest_contamination: 0.9
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "iforest_contamination", cfgErr.Field)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "pipeline: [not a map")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestServiceFor(t *testing.T) {
	p := DefaultPipeline()
	assert.Equal(t, "http", p.ServiceFor(80))
	assert.Equal(t, "http", p.ServiceFor(8080))
	assert.Equal(t, "ftp", p.ServiceFor(21))
	assert.Equal(t, "smb", p.ServiceFor(445))
	assert.Equal(t, "unknown", p.ServiceFor(4444))
}

func TestValidateFields(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*Pipeline)
	}{
		{"window_seconds", func(p *Pipeline) { p.WindowSeconds = 0 }},
		{"idle_split_seconds", func(p *Pipeline) { p.IdleSplitSeconds = -1 }},
		{"scan_unique_dsts_threshold", func(p *Pipeline) { p.ScanUniqueDstsThreshold = -1 }},
		{"iforest_contamination", func(p *Pipeline) { p.IForestContamination = -0.1 }},
		{"iforest_estimators", func(p *Pipeline) { p.IForestEstimators = 0 }},
		{"count_log_base", func(p *Pipeline) { p.CountLogBase = 1.0 }},
		{"duration_log_base", func(p *Pipeline) { p.DurationLogBase = 0.5 }},
		{"max_bin", func(p *Pipeline) { p.MaxBin = 0 }},
		{"http_uri_token_budget", func(p *Pipeline) { p.HTTPURITokenBudget = 0 }},
		{"sample_targets_cap", func(p *Pipeline) { p.SampleTargetsCap = 0 }},
	}

	for _, c := range cases {
		p := DefaultPipeline()
		c.mutate(&p)
		err := p.Validate()
		require.Error(t, err, c.field)
		var cfgErr *model.ConfigError
		require.ErrorAs(t, err, &cfgErr, c.field)
		assert.Equal(t, c.field, cfgErr.Field)
	}

	p := DefaultPipeline()
	assert.NoError(t, p.Validate())
}
