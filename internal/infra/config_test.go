package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RenderBaseURL != "https://api.bannerbear.com/v2" {
		t.Errorf("RenderBaseURL = %q", cfg.RenderBaseURL)
	}
	if cfg.CaptionHistoryWindow != 10 {
		t.Errorf("CaptionHistoryWindow = %d, want 10", cfg.CaptionHistoryWindow)
	}
	if cfg.JobRetention != 24*time.Hour {
		t.Errorf("JobRetention = %s, want 24h", cfg.JobRetention)
	}
	if cfg.DBMaxConns != 10 || cfg.DBMinConns != 1 {
		t.Errorf("pool sizing = %d/%d, want 10/1", cfg.DBMaxConns, cfg.DBMinConns)
	}
}

func TestLoadConfigClampsPoolSizing(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "9")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DBMaxConns != 4 {
		t.Errorf("DBMaxConns = %d, want 4", cfg.DBMaxConns)
	}
	if cfg.DBMinConns != 1 {
		t.Errorf("DBMinConns = %d, want clamp to 1 when above max", cfg.DBMinConns)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing DATABASE_URL should be an error")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")
	t.Setenv("CAPTION_HISTORY_WINDOW", "5")
	t.Setenv("JOB_RETENTION_HOURS", "48")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CaptionHistoryWindow != 5 {
		t.Errorf("CaptionHistoryWindow = %d, want 5", cfg.CaptionHistoryWindow)
	}
	if cfg.JobRetention != 48*time.Hour {
		t.Errorf("JobRetention = %s, want 48h", cfg.JobRetention)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://staging.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigNonPositiveWindowFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")
	t.Setenv("CAPTION_HISTORY_WINDOW", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CaptionHistoryWindow != 10 {
		t.Errorf("CaptionHistoryWindow = %d, want fallback 10", cfg.CaptionHistoryWindow)
	}
}

func TestParseSessionTokens(t *testing.T) {
	t.Parallel()
	tokens := parseSessionTokens("tok-a:owner-1, tok-b:owner-2,malformed,:noowner,notoken:")
	if len(tokens) != 2 {
		t.Fatalf("tokens = %v, want 2 entries", tokens)
	}
	if tokens["tok-a"] != "owner-1" || tokens["tok-b"] != "owner-2" {
		t.Fatalf("tokens = %v", tokens)
	}
}
