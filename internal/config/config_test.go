package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/shadow-tools-mcp/internal/waterfill"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shadow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2500, cfg.Flood.Iterations)
	assert.Equal(t, []int{10, 50}, cfg.Refine.Checkpoints)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	path := writeConfig(t, `
rate: 0.5
flood:
  iterations: 800
  checkpoints: [10]
workers: 4
diagnostics:
  prefix: /tmp/diag_
  heatmap: true
log:
  level: debug
  human: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Rate)
	assert.Equal(t, 800, cfg.Flood.Iterations)
	assert.Equal(t, []int{10}, cfg.Flood.Checkpoints)
	assert.Equal(t, waterfill.DefaultRefineIterations, cfg.Refine.Iterations, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Diagnostics.Heatmap)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvironmentPath(t *testing.T) {
	t.Setenv(EnvConfig, writeConfig(t, "brightness: 0.9\n"))
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Brightness)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"unknown key", "ratee: 0.5\n", false},
		{"bad yaml", "rate: [\n", false},
		{"rate zero", "rate: 0\n", true},
		{"rate above one", "rate: 1.5\n", true},
		{"negative iterations", "refine:\n  iterations: -1\n", true},
		{"no workers", "workers: 0\n", true},
		{"zero brightness", "brightness: 0\n", true},
		{"zero floor", "min_shading: 0\n", true},
		{"bad level", "log:\n  level: loud\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Options(t *testing.T) {
	cfg := Default()
	cfg.Rate = 0.25
	cfg.Workers = 3

	opts := cfg.Options(zerolog.Nop())
	require.NoError(t, opts.Validate())
	assert.Equal(t, 0.25, opts.Rate)
	assert.Equal(t, 3, opts.Workers)
	assert.Nil(t, opts.Sink)

	cfg.Diagnostics = Diagnostics{Prefix: "out/run_", Heatmap: true}
	opts = cfg.Options(zerolog.Nop())
	assert.Equal(t, waterfill.FileSink{Prefix: "out/run_", Heatmap: true}, opts.Sink)

	opts.FloodCheckpoints[0] = 7
	assert.Equal(t, 100, cfg.Flood.Checkpoints[0], "options must not alias the config")
}

func TestConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log.Level = "warn"

	logger := cfg.Logger(&buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}
