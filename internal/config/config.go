package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Inference  InferenceConfig  `yaml:"inference" mapstructure:"inference"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Courts     CourtsConfig     `yaml:"courts" mapstructure:"courts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// InferenceConfig configures the vision model endpoint.
type InferenceConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Model            string  `yaml:"model" mapstructure:"model"`
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	MaxTokens        int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ExtraContext     string  `yaml:"extra_context" mapstructure:"extra_context"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// Timeout returns the HTTP timeout as a duration.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings for the Claude vision backend.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// BrowserConfig configures the headless browser used for page capture.
type BrowserConfig struct {
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	SlowMoMs       int    `yaml:"slow_mo_ms" mapstructure:"slow_mo_ms"`
	ViewportWidth  int    `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" mapstructure:"viewport_height"`
	NavTimeoutMs   int    `yaml:"nav_timeout_ms" mapstructure:"nav_timeout_ms"`
	WaitTimeoutMs  int    `yaml:"wait_timeout_ms" mapstructure:"wait_timeout_ms"`
	SettleDelayMs  int    `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	ExecPath       string `yaml:"exec_path" mapstructure:"exec_path"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	DelaySecs         float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs    int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchPauseSecs    int     `yaml:"batch_pause_secs" mapstructure:"batch_pause_secs"`
}

// OutputConfig configures where records and screenshots are written.
type OutputConfig struct {
	Dir            string   `yaml:"dir" mapstructure:"dir"`
	ScreenshotsDir string   `yaml:"screenshots_dir" mapstructure:"screenshots_dir"`
	Formats        []string `yaml:"formats" mapstructure:"formats"`
}

// CourtsConfig points at the court profile file.
type CourtsConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Default string `yaml:"default" mapstructure:"default"`
}

// ServerConfig configures the read-only results API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures failure alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinCases             int     `yaml:"min_cases" mapstructure:"min_cases"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
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
	v.SetEnvPrefix("EXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "case-extractor.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("inference.provider", "openai")
	v.SetDefault("inference.base_url", "http://localhost:1234/v1")
	v.SetDefault("inference.model", "local-model")
	v.SetDefault("inference.max_tokens", 2000)
	v.SetDefault("inference.temperature", 0.1)
	v.SetDefault("inference.timeout_secs", 120)
	v.SetDefault("inference.breaker_threshold", 5)
	v.SetDefault("inference.breaker_reset_secs", 60)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.nav_timeout_ms", 30000)
	v.SetDefault("browser.wait_timeout_ms", 10000)
	v.SetDefault("browser.settle_delay_ms", 2000)
	v.SetDefault("batch.delay_secs", 3)
	v.SetDefault("batch.retry_attempts", 1)
	v.SetDefault("batch.retry_backoff_ms", 2000)
	v.SetDefault("output.dir", "extracted_cases")
	v.SetDefault("output.formats", []string{"csv", "json"})
	v.SetDefault("courts.path", "courts.yaml")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_cases", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

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

// Validate checks that the settings a given mode depends on are present
// and within bounds. Supported modes are "extract" and "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "extract":
		switch c.Inference.Provider {
		case "openai":
			if c.Inference.BaseURL == "" {
				problems = append(problems, "inference.base_url is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required")
			}
		default:
			problems = append(problems, fmt.Sprintf("inference.provider %q is not supported", c.Inference.Provider))
		}
		if c.Inference.MaxTokens <= 0 {
			problems = append(problems, "inference.max_tokens must be > 0")
		}
		if c.Inference.Temperature < 0 || c.Inference.Temperature > 2 {
			problems = append(problems, "inference.temperature must be between 0 and 2")
		}
		if c.Inference.TimeoutSecs <= 0 {
			problems = append(problems, "inference.timeout_secs must be > 0")
		}
		if c.Browser.NavTimeoutMs <= 0 || c.Browser.WaitTimeoutMs <= 0 {
			problems = append(problems, "browser timeouts must be > 0")
		}
		if c.Batch.DelaySecs < 0 {
			problems = append(problems, "batch.delay_secs must be >= 0")
		}
		if c.Batch.RetryAttempts < 1 || c.Batch.RetryAttempts > 5 {
			problems = append(problems, "batch.retry_attempts must be between 1 and 5")
		}
		if c.Output.Dir == "" {
			problems = append(problems, "output.dir is required")
		}
		for _, f := range c.Output.Formats {
			switch f {
			case "csv", "json", "xlsx":
			default:
				problems = append(problems, fmt.Sprintf("output.formats: unknown format %q", f))
			}
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ScreenshotsDir returns the screenshot directory, defaulting to
// <output.dir>/screenshots.
func (c *Config) ScreenshotsDir() string {
	if c.Output.ScreenshotsDir != "" {
		return c.Output.ScreenshotsDir
	}
	return filepath.Join(c.Output.Dir, "screenshots")
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
