package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Lens      LensConfig      `yaml:"lens" mapstructure:"lens"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	Model             string  `yaml:"model" mapstructure:"model"`
	SynthesisModel    string  `yaml:"synthesis_model" mapstructure:"synthesis_model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnalysisConfig tunes the evidence analysis run.
type AnalysisConfig struct {
	MinConfidence   float64  `yaml:"min_confidence" mapstructure:"min_confidence"`
	ValidationGates []string `yaml:"validation_gates" mapstructure:"validation_gates"`
}

// LensConfig tunes lens application.
type LensConfig struct {
	PlatformDefaults []string `yaml:"platform_defaults" mapstructure:"platform_defaults"`
	MaxInFlight      int      `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	CatalogPath      string   `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// RetryConfig is the shared task retry policy.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	Factor       float64 `yaml:"factor" mapstructure:"factor"`
	MinTimeoutMs int     `yaml:"min_timeout_ms" mapstructure:"min_timeout_ms"`
	MaxTimeoutMs int     `yaml:"max_timeout_ms" mapstructure:"max_timeout_ms"`
	Randomize    bool    `yaml:"randomize" mapstructure:"randomize"`
}

// TemporalConfig points the task runner at a Temporal frontend.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// SchedulerConfig configures the periodic synthesis sweep.
type SchedulerConfig struct {
	SynthesisCron string `yaml:"synthesis_cron" mapstructure:"synthesis_cron"`
}

// NotionConfig holds Notion API credentials and the summary database ID.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	SummaryDB string `yaml:"summary_db" mapstructure:"summary_db"`
}

// ServerConfig configures the task API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.synthesis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.breaker_threshold", 5)
	v.SetDefault("llm.breaker_reset_secs", 30)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("analysis.min_confidence", 0.6)
	v.SetDefault("analysis.validation_gates", []string{"Pain Exists", "Awareness", "Quantified Impact", "Taking Action"})
	v.SetDefault("lens.platform_defaults", []string{"sales-bant", "customer-discovery"})
	v.SetDefault("lens.max_in_flight", 1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.factor", 1.8)
	v.SetDefault("retry.min_timeout_ms", 500)
	v.SetDefault("retry.max_timeout_ms", 30000)
	v.SetDefault("retry.randomize", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "lens")
	v.SetDefault("scheduler.synthesis_cron", "0 */15 * * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys a command mode needs. Modes: "analyze", "lens",
// "worker", "serve", "publish", "migrate", "offline".
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	needsDB := func() {
		if c.Store.Driver == "sqlite" {
			return
		}
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	}
	needsLLM := func() {
		switch c.LLM.Provider {
		case "anthropic":
			require(c.Anthropic.Key != "", "anthropic.key is required")
		case "openai":
			require(c.OpenAI.Key != "", "openai.key is required")
		default:
			problems = append(problems, "llm.provider must be anthropic or openai")
		}
	}
	tunables := func() {
		require(c.Analysis.MinConfidence >= 0 && c.Analysis.MinConfidence <= 1,
			"analysis.min_confidence must be between 0 and 1")
		require(c.Lens.MaxInFlight >= 1 && c.Lens.MaxInFlight <= 16,
			"lens.max_in_flight must be between 1 and 16")
		require(c.Retry.MaxAttempts >= 1, "retry.max_attempts must be >= 1")
		require(c.Retry.Factor >= 1, "retry.factor must be >= 1")
	}

	switch mode {
	case "analyze", "lens":
		needsDB()
		needsLLM()
		tunables()
	case "worker":
		needsDB()
		needsLLM()
		tunables()
		require(c.Temporal.HostPort != "", "temporal.host_port is required")
		require(c.Temporal.TaskQueue != "", "temporal.task_queue is required")
	case "serve":
		require(c.Server.Port > 0, "server.port must be > 0")
		require(c.Temporal.HostPort != "", "temporal.host_port is required")
		require(c.Temporal.TaskQueue != "", "temporal.task_queue is required")
	case "publish":
		needsDB()
		require(c.Notion.Token != "", "notion.token is required")
		require(c.Notion.SummaryDB != "", "notion.summary_db is required")
	case "migrate":
		needsDB()
	case "offline":
		needsLLM()
		tunables()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
