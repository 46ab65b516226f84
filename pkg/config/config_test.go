package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "test-token"
openai:
  api_key: "test-key"
database:
  use_in_memory: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Telegram.Token)
	assert.Equal(t, 1, cfg.Analysis.Days)
	assert.Equal(t, 1000, cfg.Analysis.MaxMessages)
	assert.Equal(t, 5, cfg.Analysis.MinActivity)
	assert.Equal(t, 3, cfg.Analysis.LLMRetries)
	assert.Equal(t, int64(3600), cfg.Analysis.CacheTTLSeconds)
	assert.Equal(t, "image", cfg.Report.Format)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.True(t, cfg.Database.UseInMemory)
}

func TestLoadConfigRejectsOutOfRangeDays(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "test-token"
analysis:
  days: 30
`)

	_, err := LoadConfig(path)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "analysis.days", cfgErr.Field)
	assert.Contains(t, err.Error(), "analysis.days = 30")
}

func TestValidateRanges(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Analysis: AnalysisConfig{
				Days:              1,
				MaxMessages:       1000,
				MinActivity:       5,
				TimezoneOffset:    8,
				LLMTimeoutSeconds: 60,
				LLMRetries:        3,
				LLMBackoffMs:      1000,
				CacheTTLSeconds:   3600,
			},
			Report: ReportConfig{Format: "image"},
		}
	}
	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"days too high", func(c *Config) { c.Analysis.Days = 8 }, "analysis.days"},
		{"days too low", func(c *Config) { c.Analysis.Days = 0 }, "analysis.days"},
		{"max messages", func(c *Config) { c.Analysis.MaxMessages = 0 }, "analysis.max_messages"},
		{"min activity", func(c *Config) { c.Analysis.MinActivity = 0 }, "analysis.min_activity"},
		{"timezone low", func(c *Config) { c.Analysis.TimezoneOffset = -13 }, "analysis.timezone_offset"},
		{"timezone high", func(c *Config) { c.Analysis.TimezoneOffset = 15 }, "analysis.timezone_offset"},
		{"llm timeout", func(c *Config) { c.Analysis.LLMTimeoutSeconds = 0 }, "analysis.llm_timeout_seconds"},
		{"negative retries", func(c *Config) { c.Analysis.LLMRetries = -1 }, "analysis.llm_retries"},
		{"negative backoff", func(c *Config) { c.Analysis.LLMBackoffMs = -1 }, "analysis.llm_backoff_ms"},
		{"cache ttl", func(c *Config) { c.Analysis.CacheTTLSeconds = 0 }, "analysis.cache_ttl_seconds"},
		{"report format", func(c *Config) { c.Report.Format = "docx" }, "report.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestValidateNormalizesFormatCase(t *testing.T) {
	cfg := &Config{
		Analysis: AnalysisConfig{
			Days:              1,
			MaxMessages:       100,
			MinActivity:       1,
			LLMTimeoutSeconds: 60,
			CacheTTLSeconds:   3600,
		},
		Report: ReportConfig{Format: "PDF"},
	}
	require.NoError(t, cfg.Validate())

	// Downstream format dispatch relies on the stored value, not on a
	// re-lowered copy.
	assert.Equal(t, "pdf", cfg.Report.Format)
}

func TestValidateAcceptsBoundaryValues(t *testing.T) {
	cfg := &Config{
		Analysis: AnalysisConfig{
			Days:              7,
			MaxMessages:       1,
			MinActivity:       1,
			TimezoneOffset:    14,
			LLMTimeoutSeconds: 1,
			LLMRetries:        0,
			LLMBackoffMs:      0,
			CacheTTLSeconds:   1,
		},
		Report: ReportConfig{Format: "PDF"},
	}
	assert.NoError(t, cfg.Validate())
}
