package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token              string        `yaml:"token"`
	Mode               string        `yaml:"mode"` // polling | noop
	Workers            int           `yaml:"workers"`
	QueueSize          int           `yaml:"queue_size"`
	PollTimeout        int           `yaml:"poll_timeout"` // seconds
	DropPendingUpdates bool          `yaml:"drop_pending_updates"`
	Language           string        `yaml:"language"` // en | ru
	ReplyRetryBackoff  time.Duration `yaml:"reply_retry_backoff"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	RateLimit          int           `yaml:"rate_limit"` // events per user per window
	RateWindow         time.Duration `yaml:"rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL           string        `yaml:"url"`
	MaxConns      int32         `yaml:"max_conns"`
	Retention     time.Duration `yaml:"retention"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StagingConfig struct {
	Dir           string        `yaml:"dir"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type PipelineConfig struct {
	MaxFileBytes   int64         `yaml:"max_file_bytes"`
	MaxLineBytes   int           `yaml:"max_line_bytes"`
	MaxFieldIndex  int           `yaml:"max_field_index"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Staging  StagingConfig  `yaml:"staging"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is allowed when the
// environment provides the bot token.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg, os.LookupEnv)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML bytes without touching the environment.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("BOT_TOKEN", &cfg.Bot.Token)
	set("REDIS_URL", &cfg.Redis.URL)
	set("REDIS_PASSWORD", &cfg.Redis.Password)
	set("DATABASE_URL", &cfg.Database.URL)
	set("ADMIN_API_KEY", &cfg.Admin.APIKey)
	set("STAGING_DIR", &cfg.Staging.Dir)
	set("LOG_LEVEL", &cfg.Log.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.QueueSize <= 0 {
		cfg.Bot.QueueSize = cfg.Bot.Workers * 4
	}
	if cfg.Bot.PollTimeout <= 0 {
		cfg.Bot.PollTimeout = 60
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "ru"
	}
	if cfg.Bot.ReplyRetryBackoff <= 0 {
		cfg.Bot.ReplyRetryBackoff = time.Second
	}
	if cfg.Bot.ShutdownTimeout <= 0 {
		cfg.Bot.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Database.Retention <= 0 {
		cfg.Database.Retention = 30 * 24 * time.Hour
	}
	if cfg.Database.StatsInterval <= 0 {
		cfg.Database.StatsInterval = 15 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Staging.Dir == "" {
		cfg.Staging.Dir = "temp_files"
	}
	if cfg.Staging.SweepInterval <= 0 {
		cfg.Staging.SweepInterval = 10 * time.Minute
	}
	if cfg.Pipeline.MaxFileBytes <= 0 {
		// Bot API getFile limit.
		cfg.Pipeline.MaxFileBytes = 20 << 20
	}
	if cfg.Pipeline.MaxLineBytes <= 0 {
		cfg.Pipeline.MaxLineBytes = 1 << 20
	}
	if cfg.Pipeline.MaxFieldIndex <= 0 {
		cfg.Pipeline.MaxFieldIndex = 1000
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.RetryBackoff <= 0 {
		cfg.Pipeline.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Pipeline.AttemptTimeout <= 0 {
		cfg.Pipeline.AttemptTimeout = 2 * time.Minute
	}
}

// Validate checks the fields that have no sensible default.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Bot.Mode)
	if mode != "polling" && mode != "noop" {
		return fmt.Errorf("bot.mode %q is not supported", c.Bot.Mode)
	}
	if mode == "polling" && c.Bot.Token == "" {
		return errors.New("bot.token is required (or set BOT_TOKEN)")
	}
	if c.Bot.Language != "en" && c.Bot.Language != "ru" {
		return fmt.Errorf("bot.language %q is not supported", c.Bot.Language)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}
