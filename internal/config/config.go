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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Backfill BackfillConfig `yaml:"backfill" mapstructure:"backfill"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Diag     DiagConfig     `yaml:"diag" mapstructure:"diag"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the reference-store backend.
type StoreConfig struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string      `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32       `yaml:"max_conns" mapstructure:"max_conns"`
	RatePerSec  float64     `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst   int         `yaml:"rate_burst" mapstructure:"rate_burst"`
	Retry       RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig holds retry policy knobs for remote store calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BackfillConfig configures the batch orchestrator defaults. Flags override
// these per invocation.
type BackfillConfig struct {
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	FailuresPath   string `yaml:"failures_path" mapstructure:"failures_path"`
	CheckpointPath string `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
}

// ScoringConfig configures the score engine.
type ScoringConfig struct {
	DatasetVersion string `yaml:"dataset_version" mapstructure:"dataset_version"`
}

// DiagConfig configures diagnostics reports and the report server.
type DiagConfig struct {
	ReportDir  string `yaml:"report_dir" mapstructure:"report_dir"`
	GatePath   string `yaml:"gate_path" mapstructure:"gate_path"`
	ServePort  int    `yaml:"serve_port" mapstructure:"serve_port"`
	SampleSize int    `yaml:"sample_size" mapstructure:"sample_size"`
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
	v.SetEnvPrefix("SCORECLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "score.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.rate_per_sec", 20.0)
	v.SetDefault("store.rate_burst", 10)
	v.SetDefault("store.retry.max_attempts", 3)
	v.SetDefault("store.retry.initial_backoff_ms", 500)
	v.SetDefault("store.retry.max_backoff_ms", 30000)
	v.SetDefault("store.retry.multiplier", 2.0)
	v.SetDefault("store.retry.jitter_fraction", 0.25)
	v.SetDefault("backfill.batch_size", 500)
	v.SetDefault("backfill.concurrency", 4)
	v.SetDefault("backfill.failures_path", "failures.jsonl")
	v.SetDefault("backfill.checkpoint_path", "checkpoint.json")
	v.SetDefault("scoring.dataset_version", "2025-08")
	v.SetDefault("diag.report_dir", "reports")
	v.SetDefault("diag.gate_path", "gate.yaml")
	v.SetDefault("diag.serve_port", 8643)
	v.SetDefault("diag.sample_size", 2000)
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

// Validate checks that the configuration is usable for the given mode.
// Modes: "store" (anything touching the reference store), "backfill",
// "diag", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	storeProblems := func() {
		switch c.Store.Driver {
		case "", "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required")
			}
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "store":
		storeProblems()
	case "backfill":
		storeProblems()
		if c.Backfill.BatchSize < 1 || c.Backfill.BatchSize > 10000 {
			problems = append(problems, "backfill.batch_size must be between 1 and 10000")
		}
		if c.Backfill.Concurrency < 1 || c.Backfill.Concurrency > 64 {
			problems = append(problems, "backfill.concurrency must be between 1 and 64")
		}
	case "diag":
		storeProblems()
		if c.Diag.SampleSize < 1 {
			problems = append(problems, "diag.sample_size must be > 0")
		}
	case "serve":
		storeProblems()
		if c.Diag.ServePort <= 0 {
			problems = append(problems, "diag.serve_port must be > 0")
		}
		if c.Diag.SampleSize < 1 {
			problems = append(problems, "diag.sample_size must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
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
