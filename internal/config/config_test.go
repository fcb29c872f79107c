package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.InDelta(t, 0.6, cfg.Analysis.MinConfidence, 0.001)
	assert.Equal(t, []string{"Pain Exists", "Awareness", "Quantified Impact", "Taking Action"}, cfg.Analysis.ValidationGates)
	assert.Equal(t, []string{"sales-bant", "customer-discovery"}, cfg.Lens.PlatformDefaults)
	assert.Equal(t, 1, cfg.Lens.MaxInFlight)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 1.8, cfg.Retry.Factor, 0.001)
	assert.Equal(t, 500, cfg.Retry.MinTimeoutMs)
	assert.Equal(t, 30000, cfg.Retry.MaxTimeoutMs)
	assert.False(t, cfg.Retry.Randomize)
	assert.Equal(t, "lens", cfg.Temporal.TaskQueue)
	assert.Equal(t, "0 */15 * * * *", cfg.Scheduler.SynthesisCron)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
lens:
  max_in_flight: 2
  platform_defaults: [qa]
retry:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 2, cfg.Lens.MaxInFlight)
	assert.Equal(t, []string{"qa"}, cfg.Lens.PlatformDefaults)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	// Defaults still apply for unset values
	assert.InDelta(t, 1.8, cfg.Retry.Factor, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LENS_STORE_DRIVER", "postgres")
	t.Setenv("LENS_LOG_LEVEL", "warn")
	t.Setenv("LENS_ANALYSIS_MIN_CONFIDENCE", "0.75")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 0.75, cfg.Analysis.MinConfidence, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.LLM.Provider = "anthropic"
	cfg.Analysis.MinConfidence = 0.6
	cfg.Lens.MaxInFlight = 1
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.Factor = 1.8
	cfg.Temporal.HostPort = "localhost:7233"
	cfg.Temporal.TaskQueue = "lens"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name: "analyze all present",
			mode: "analyze",
			mutate: func(c *Config) {
				c.Store.DatabaseURL = "postgres://localhost/lens"
				c.Anthropic.Key = "sk-ant"
			},
		},
		{
			name:    "analyze missing keys",
			mode:    "analyze",
			mutate:  func(*Config) {},
			wantErr: []string{"store.database_url is required", "anthropic.key is required"},
		},
		{
			name: "sqlite needs no url",
			mode: "lens",
			mutate: func(c *Config) {
				c.Store.Driver = "sqlite"
				c.Anthropic.Key = "sk-ant"
			},
		},
		{
			name: "openai provider needs openai key",
			mode: "offline",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
				c.Anthropic.Key = "sk-ant"
			},
			wantErr: []string{"openai.key is required"},
		},
		{
			name:    "unknown provider",
			mode:    "offline",
			mutate:  func(c *Config) { c.LLM.Provider = "llama" },
			wantErr: []string{"llm.provider must be anthropic or openai"},
		},
		{
			name: "confidence out of range",
			mode: "offline",
			mutate: func(c *Config) {
				c.Anthropic.Key = "k"
				c.Analysis.MinConfidence = 1.2
			},
			wantErr: []string{"analysis.min_confidence"},
		},
		{
			name: "max in flight zero",
			mode: "offline",
			mutate: func(c *Config) {
				c.Anthropic.Key = "k"
				c.Lens.MaxInFlight = 0
			},
			wantErr: []string{"lens.max_in_flight must be between 1 and 16"},
		},
		{
			name:    "serve bad port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: []string{"server.port must be > 0"},
		},
		{
			name:    "worker without queue",
			mode:    "worker",
			mutate:  func(c *Config) { c.Store.DatabaseURL = "x"; c.Anthropic.Key = "k"; c.Temporal.TaskQueue = "" },
			wantErr: []string{"temporal.task_queue is required"},
		},
		{
			name:    "publish needs notion",
			mode:    "publish",
			mutate:  func(c *Config) { c.Store.DatabaseURL = "x" },
			wantErr: []string{"notion.token is required", "notion.summary_db is required"},
		},
		{
			name:    "migrate needs url",
			mode:    "migrate",
			mutate:  func(*Config) {},
			wantErr: []string{"store.database_url is required"},
		},
		{
			name:    "unknown mode",
			mode:    "bogus",
			mutate:  func(*Config) {},
			wantErr: []string{"unknown mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
