package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "pmat" {
		t.Errorf("expected Name=pmat, got %s", cfg.Name)
	}
	if cfg.Complexity.CyclomaticWarn != 10 || cfg.Complexity.CyclomaticError != 20 {
		t.Errorf("unexpected cyclomatic thresholds: %+v", cfg.Complexity)
	}
	if cfg.MCP.ProtocolVersion != "2024-11-05" {
		t.Errorf("expected protocol 2024-11-05, got %s", cfg.MCP.ProtocolVersion)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PMAT_CHURN_DAYS", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Churn.PeriodDays = 90
	cfg.Discovery.IgnorePatterns = []string{"gen/**"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Churn.PeriodDays != 90 {
		t.Errorf("expected PeriodDays=90, got %d", loaded.Churn.PeriodDays)
	}
	if len(loaded.Discovery.IgnorePatterns) != 1 || loaded.Discovery.IgnorePatterns[0] != "gen/**" {
		t.Errorf("unexpected ignore patterns: %v", loaded.Discovery.IgnorePatterns)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Churn.PeriodDays != 30 {
		t.Errorf("expected default period, got %d", cfg.Churn.PeriodDays)
	}
	if cfg.GitHub.Token != "tok" {
		t.Errorf("env overrides should apply without a file, got %q", cfg.GitHub.Token)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("churn: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PMAT_CACHE", "false")
	t.Setenv("PMAT_WORKERS", "3")
	t.Setenv("PMAT_DEBUG", "true")
	t.Setenv("PMAT_CACHE_DB", "/tmp/x.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Cache.Enabled {
		t.Error("expected cache disabled")
	}
	if cfg.Discovery.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Discovery.Workers)
	}
	if !cfg.Logging.DebugMode {
		t.Error("expected debug mode")
	}
	if cfg.Cache.Path != "/tmp/x.db" {
		t.Errorf("unexpected cache path %s", cfg.Cache.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duplicates.NumBands = 7
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bands*rows != hashes")
	}

	cfg = DefaultConfig()
	cfg.TDG.ChurnWeight = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1")
	}

	cfg = DefaultConfig()
	cfg.Complexity.CyclomaticError = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for error threshold below warn")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTL = "bogus"
	cfg.GitHub.Timeout = ""
	if cfg.GetCacheTTL() == 0 {
		t.Error("GetCacheTTL should fall back to a non-zero duration")
	}
	if cfg.GetCloneTimeout() == 0 {
		t.Error("GetCloneTimeout should fall back to a non-zero duration")
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	if c.IsCategoryEnabled("mcp") {
		t.Error("disabled when debug mode off")
	}
	c.DebugMode = true
	c.Categories = map[string]bool{"mcp": false}
	if c.IsCategoryEnabled("mcp") {
		t.Error("explicitly disabled category")
	}
	if !c.IsCategoryEnabled("git") {
		t.Error("unlisted category defaults on")
	}
}
