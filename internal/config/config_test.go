package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
llm:
  model: gpt-4o
  timeout: 45s
chat:
  max_reply_words: 250
limits:
  free_messages_per_day: 25
  burst_per_minute: 5
retention:
  idle_ip_rows: 168h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Fatalf("unexpected llm model: %s", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout.String() != "45s" {
		t.Fatalf("unexpected llm timeout: %s", cfg.LLM.Timeout)
	}
	if cfg.Chat.MaxReplyWords != 250 {
		t.Fatalf("unexpected max reply words: %d", cfg.Chat.MaxReplyWords)
	}
	if cfg.Limits.FreeMessagesPerDay != 25 {
		t.Fatalf("unexpected free messages/day: %d", cfg.Limits.FreeMessagesPerDay)
	}
	if cfg.Limits.BurstPerMinute != 5 {
		t.Fatalf("unexpected burst/min: %d", cfg.Limits.BurstPerMinute)
	}
	if cfg.Retention.IdleIPRows.String() != "168h0m0s" {
		t.Fatalf("unexpected idle ip retention: %s", cfg.Retention.IdleIPRows)
	}

	if cfg.Limits.GlobalDailyCap != 1000 {
		t.Fatalf("global cap default should stay 1000: %d", cfg.Limits.GlobalDailyCap)
	}
	if cfg.Chat.MaxHistoryTurns != 6 {
		t.Fatalf("history turns default should stay 6: %d", cfg.Chat.MaxHistoryTurns)
	}
	if cfg.LLM.BaseURL == "" {
		t.Fatalf("llm base url default missing")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Limits.FreeMessagesPerDay != 10 {
		t.Fatalf("unexpected default free messages/day: %d", cfg.Limits.FreeMessagesPerDay)
	}
	if cfg.Limits.GlobalDailyCap != 1000 {
		t.Fatalf("unexpected default global cap: %d", cfg.Limits.GlobalDailyCap)
	}
	if cfg.Limits.BurstPerMinute != 20 {
		t.Fatalf("unexpected default burst/min: %d", cfg.Limits.BurstPerMinute)
	}
	if cfg.Auth.SessionTTL.String() != "24h0m0s" {
		t.Fatalf("unexpected default session ttl: %s", cfg.Auth.SessionTTL)
	}
	if len(cfg.Chat.DenylistPhrases) == 0 {
		t.Fatalf("denylist default missing")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("FREE_MESSAGES_PER_DAY", "3")
	t.Setenv("GLOBAL_DAILY_CAP", "50")
	t.Setenv("LLM_BASE_URL", "http://localhost:11434")
	t.Setenv("RETENTION_INTERVAL", "1h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Limits.FreeMessagesPerDay != 3 || cfg.Limits.GlobalDailyCap != 50 {
		t.Fatalf("env limit overrides not applied: %+v", cfg.Limits)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Fatalf("env llm override not applied: %s", cfg.LLM.BaseURL)
	}
	if cfg.Retention.Interval.String() != "1h0m0s" {
		t.Fatalf("env retention override not applied: %s", cfg.Retention.Interval)
	}
}

func TestLoadRejectsMalformedEnvValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("FREE_MESSAGES_PER_DAY", "ten")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for malformed int override")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"JWT_SECRET",
		"SESSION_TTL",
		"LLM_BASE_URL",
		"LLM_API_KEY",
		"LLM_MODEL",
		"LLM_MAX_TOKENS",
		"LLM_TIMEOUT",
		"FREE_MESSAGES_PER_DAY",
		"GLOBAL_DAILY_CAP",
		"BURST_PER_MINUTE",
		"RETENTION_IDLE_IP_ROWS",
		"RETENTION_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}
