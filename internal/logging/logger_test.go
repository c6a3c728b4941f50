package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState() {
	CloseAll()
	logsDir = ""
	workspace = ""
	config = Settings{}
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	cfgDir := filepath.Join(dir, ".pmat")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestInitialize_RequiresWorkspace(t *testing.T) {
	resetState()
	if err := Initialize(""); err == nil {
		t.Fatal("expected error for empty workspace")
	}
}

func TestInitialize_NoConfigIsSilent(t *testing.T) {
	resetState()
	dir := t.TempDir()

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("debug mode should default to false")
	}
	Get(CategoryAnalysis).Info("dropped")
	if _, err := os.Stat(filepath.Join(dir, ".pmat", "logs")); !os.IsNotExist(err) {
		t.Errorf("logs dir should not exist in production mode, stat err=%v", err)
	}
}

func TestDebugModeWritesCategoryFiles(t *testing.T) {
	resetState()
	dir := t.TempDir()
	writeConfig(t, dir, `
logging:
  debug_mode: true
  level: debug
  categories:
    cache: false
`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer resetState()

	Analysis("analyzing %d files", 3)
	AnalysisDebug("debug line")
	Cache("should not be written")
	CloseAll()

	data, err := os.ReadFile(filepath.Join(dir, ".pmat", "logs", "analysis.log"))
	if err != nil {
		t.Fatalf("expected analysis log: %v", err)
	}
	if !strings.Contains(string(data), "analyzing 3 files") {
		t.Errorf("analysis log missing message: %s", data)
	}
	if !strings.Contains(string(data), "debug line") {
		t.Errorf("debug message should be written at debug level: %s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, ".pmat", "logs", "cache.log")); !os.IsNotExist(err) {
		t.Error("disabled category should not create a log file")
	}
}

func TestInitializeWithIgnoresWorkspaceConfig(t *testing.T) {
	resetState()
	dir := t.TempDir()
	writeConfig(t, dir, "logging:\n  debug_mode: false\n")

	if err := InitializeWith(dir, Settings{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("InitializeWith failed: %v", err)
	}
	defer resetState()

	if !IsDebugMode() {
		t.Fatal("settings passed in should win over the workspace file")
	}
	Analysis("info is below warn")
	Get(CategoryAnalysis).Warn("kept")
	CloseAll()

	data, err := os.ReadFile(filepath.Join(dir, ".pmat", "logs", "analysis.log"))
	if err != nil {
		t.Fatalf("expected analysis log: %v", err)
	}
	if strings.Contains(string(data), "info is below warn") {
		t.Errorf("info should be filtered at warn level: %s", data)
	}
	if !strings.Contains(string(data), "kept") {
		t.Errorf("warn message missing: %s", data)
	}

	if err := InitializeWith("", Settings{}); err == nil {
		t.Error("expected error for empty workspace")
	}
}

func TestIsCategoryEnabled(t *testing.T) {
	resetState()
	config = Settings{DebugMode: true, Categories: map[string]bool{"git": false}}
	defer resetState()

	if IsCategoryEnabled(CategoryGit) {
		t.Error("git should be disabled")
	}
	if !IsCategoryEnabled(CategoryMCP) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestNoopLoggerIsSafe(t *testing.T) {
	resetState()
	l := Get(CategoryMCP)
	if l.Enabled() {
		t.Fatal("logger should be a no-op without initialization")
	}
	l.With("k", "v").Error("nothing %d", 1)
}

func TestTimer(t *testing.T) {
	resetState()
	timer := StartTimer(CategoryAnalysis, "op")
	time.Sleep(time.Millisecond)
	if elapsed := timer.Stop(); elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}
	if elapsed := StartTimer(CategoryAnalysis, "op").StopWithThreshold(time.Hour); elapsed < 0 {
		t.Error("negative duration")
	}
}
