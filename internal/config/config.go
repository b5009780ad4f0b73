package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/aegis/internal/learner"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Learner    learner.Policy   `yaml:"learner" mapstructure:"learner"`
	Checkers   CheckersConfig   `yaml:"checkers" mapstructure:"checkers"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// MonitoringConfig configures the background health checker and alert
// webhook.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	ScanFailRateThreshold   float64 `yaml:"scan_fail_rate_threshold" mapstructure:"scan_fail_rate_threshold"`
	CheckerFailureThreshold int     `yaml:"checker_failure_threshold" mapstructure:"checker_failure_threshold"`
	PendingBacklogThreshold int     `yaml:"pending_backlog_threshold" mapstructure:"pending_backlog_threshold"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Path is the SQLite database file when Driver is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ScanConfig tunes scan execution.
type ScanConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	BudgetSecs  int `yaml:"budget_secs" mapstructure:"budget_secs"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CheckersConfig configures the built-in checkers.
type CheckersConfig struct {
	// Disabled lists checker IDs to leave unregistered.
	Disabled []string `yaml:"disabled" mapstructure:"disabled"`
	// TermRulesPath points at a YAML rule pack overriding the built-in
	// terminology rules.
	TermRulesPath string `yaml:"term_rules_path" mapstructure:"term_rules_path"`
	// AcronymAllowlist extends the built-in list of acronyms that never
	// need a definition.
	AcronymAllowlist []string `yaml:"acronym_allowlist" mapstructure:"acronym_allowlist"`
	// LongSentenceWords and VeryLongSentenceWords are the readability
	// banding thresholds.
	LongSentenceWords     int `yaml:"long_sentence_words" mapstructure:"long_sentence_words"`
	VeryLongSentenceWords int `yaml:"very_long_sentence_words" mapstructure:"very_long_sentence_words"`
}

// IsDisabled reports whether a checker ID is configured off.
func (c CheckersConfig) IsDisabled(id string) bool {
	for _, d := range c.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

// AnthropicConfig holds Anthropic API settings for the LLM-backed
// checker.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
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
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "aegis.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.budget_secs", 0)
	v.SetDefault("scan.timeout_secs", 600)
	v.SetDefault("learner.min_samples", learner.DefaultMinSamples)
	v.SetDefault("learner.enter_threshold", learner.DefaultEnterThreshold)
	v.SetDefault("learner.exit_threshold", learner.DefaultExitThreshold)
	v.SetDefault("learner.smoothing", learner.DefaultSmoothing)
	v.SetDefault("checkers.long_sentence_words", 40)
	v.SetDefault("checkers.very_long_sentence_words", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_sec", 2)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.scan_fail_rate_threshold", 0.2)
	v.SetDefault("monitoring.checker_failure_threshold", 25)
	v.SetDefault("monitoring.pending_backlog_threshold", 500)
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

// Validate checks the configuration for the given run mode and reports
// every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Scan.Workers < 1 || c.Scan.Workers > 64 {
		problems = append(problems, "scan.workers must be between 1 and 64")
	}
	if c.Learner.MinSamples < 1 {
		problems = append(problems, "learner.min_samples must be >= 1")
	}
	if c.Learner.EnterThreshold <= 0 || c.Learner.EnterThreshold > 1 {
		problems = append(problems, "learner.enter_threshold must be in (0, 1]")
	}
	if c.Learner.ExitThreshold < 0 || c.Learner.ExitThreshold >= c.Learner.EnterThreshold {
		problems = append(problems, "learner.exit_threshold must be >= 0 and below enter_threshold")
	}

	switch mode {
	case "scan", "adjudicate", "findings", "migrate":
		// store checks above suffice
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		problems = append(problems, "unknown mode "+mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
