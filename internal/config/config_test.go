package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("bot:\n  token: abc\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bot.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Bot.Workers)
	}
	if cfg.Bot.QueueSize != 32 {
		t.Errorf("queue size = %d, want 32", cfg.Bot.QueueSize)
	}
	if cfg.Staging.Dir != "temp_files" {
		t.Errorf("staging dir = %q, want temp_files", cfg.Staging.Dir)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Redis.TTL != 30*24*time.Hour {
		t.Errorf("redis ttl = %s", cfg.Redis.TTL)
	}
	if cfg.Staging.SweepInterval != 10*time.Minute {
		t.Errorf("sweep interval = %s", cfg.Staging.SweepInterval)
	}
	if cfg.Database.Retention != 30*24*time.Hour {
		t.Errorf("retention = %s", cfg.Database.Retention)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestParseRejectsMissingToken(t *testing.T) {
	if _, err := Parse([]byte("log:\n  level: debug\n")); err == nil {
		t.Fatal("expected error without bot token in polling mode")
	}
	if _, err := Parse([]byte("bot:\n  mode: noop\n")); err != nil {
		t.Fatalf("noop mode should not need a token: %v", err)
	}
}

func TestParseRejectsUnknownLanguage(t *testing.T) {
	if _, err := Parse([]byte("bot:\n  token: x\n  language: de\n")); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	cfg := &Config{}
	cfg.Bot.Token = "from-file"
	env := map[string]string{
		"BOT_TOKEN":   "from-env",
		"STAGING_DIR": " /tmp/stage ",
		"REDIS_URL":   "",
	}
	applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Bot.Token != "from-env" {
		t.Errorf("token = %q", cfg.Bot.Token)
	}
	if cfg.Staging.Dir != "/tmp/stage" {
		t.Errorf("staging dir = %q", cfg.Staging.Dir)
	}
	if cfg.Redis.URL != "" {
		t.Errorf("empty env value must not override, got %q", cfg.Redis.URL)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "bot:\n  token: file-token\n  workers: 2\npipeline:\n  retry_backoff: 10ms\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.Token != "file-token" || cfg.Bot.Workers != 2 {
		t.Errorf("unexpected bot config %+v", cfg.Bot)
	}
	if cfg.Pipeline.RetryBackoff != 10*time.Millisecond {
		t.Errorf("retry backoff = %s", cfg.Pipeline.RetryBackoff)
	}
	if !cfg.Runtime.Dev {
		t.Error("dev flag not propagated")
	}
}

func TestLoadConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.Token != "env-token" {
		t.Errorf("token = %q", cfg.Bot.Token)
	}
}
