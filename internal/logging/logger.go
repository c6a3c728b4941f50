// Package logging provides config-driven categorized file-based logging for pmat.
// Logs are written to .pmat/logs/ through a rotating zap core, one file per category.
// Logging is controlled by logging.debug_mode in .pmat/config.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config resolution
	CategoryPerformance Category = "performance" // Slow operations
	CategoryDiscovery   Category = "discovery"   // File walking, ignore rules
	CategoryParse       Category = "parse"       // Tree-sitter parsing
	CategoryAnalysis    Category = "analysis"    // Analyzer runs (complexity, satd, dag, ...)
	CategoryGit         Category = "git"         // Churn and clone operations
	CategoryMakefile    Category = "makefile"    // Makefile parsing and linting
	CategoryCache       Category = "cache"       // SQLite cache and watcher
	CategoryTemplates   Category = "templates"   // Template rendering
	CategoryMCP         Category = "mcp"         // MCP server requests
	CategoryContext     Category = "context"     // Deep context orchestration
)

// Settings mirrors config.LoggingConfig to avoid an import cycle.
type Settings struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	MaxSizeMB  int             `yaml:"max_size_mb"`
	MaxBackups int             `yaml:"max_backups"`
}

type configFile struct {
	Logging Settings `yaml:"logging"`
}

// Logger wraps a sugared zap logger bound to a category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	sink     *lumberjack.Logger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	config    Settings
	configMu  sync.RWMutex
	level     = zapcore.InfoLevel
)

// Initialize sets up the logging directory and loads config from
// <ws>/.pmat/config.yaml. Should be called once at startup.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}
	setWorkspace(ws)

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}
	return start()
}

// InitializeWith sets up logging under ws with settings already resolved by
// the caller, such as a config file given on the command line.
func InitializeWith(ws string, s Settings) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}
	setWorkspace(ws)

	configMu.Lock()
	config = s
	applyLevel()
	configMu.Unlock()
	return start()
}

func setWorkspace(ws string) {
	workspace = ws
	logsDir = filepath.Join(workspace, ".pmat", "logs")
}

func start() error {
	if !config.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== pmat logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", level)
	if len(config.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

// loadConfig reads the logging section of .pmat/config.yaml
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	data, err := os.ReadFile(filepath.Join(workspace, ".pmat", "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			config = Settings{}
			applyLevel()
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	config = cf.Logging
	applyLevel()
	return nil
}

// applyLevel sets level from config. Callers hold configMu.
func applyLevel() {
	switch config.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}
}

// ReloadConfig reloads the config from disk.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := newFileLogger(category)
	loggers[category] = l
	return l
}

func newFileLogger(category Category) *Logger {
	configMu.RLock()
	cfg := config
	configMu.RUnlock()

	sink := &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, fmt.Sprintf("%s.log", category)),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
	}
	if cfg.MaxSizeMB > 0 {
		sink.MaxSize = cfg.MaxSizeMB
	}
	if cfg.MaxBackups > 0 {
		sink.MaxBackups = cfg.MaxBackups
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(sink), zap.NewAtomicLevelAt(level))
	z := zap.New(core).With(zap.String("category", string(category)))
	return &Logger{category: category, sugar: z.Sugar(), sink: sink}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying extra structured fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...), sink: l.sink}
}

// Enabled reports whether this logger writes anywhere.
func (l *Logger) Enabled() bool {
	return l.sugar != nil
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.sink != nil {
			_ = l.sink.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Discovery logs to the discovery category
func Discovery(format string, args ...interface{}) {
	Get(CategoryDiscovery).Info(format, args...)
}

// DiscoveryDebug logs debug to the discovery category
func DiscoveryDebug(format string, args ...interface{}) {
	Get(CategoryDiscovery).Debug(format, args...)
}

// ParseDebug logs debug to the parse category
func ParseDebug(format string, args ...interface{}) {
	Get(CategoryParse).Debug(format, args...)
}

// Analysis logs to the analysis category
func Analysis(format string, args ...interface{}) {
	Get(CategoryAnalysis).Info(format, args...)
}

// AnalysisDebug logs debug to the analysis category
func AnalysisDebug(format string, args ...interface{}) {
	Get(CategoryAnalysis).Debug(format, args...)
}

// AnalysisWarn logs a warning to the analysis category
func AnalysisWarn(format string, args ...interface{}) {
	Get(CategoryAnalysis).Warn(format, args...)
}

// Git logs to the git category
func Git(format string, args ...interface{}) {
	Get(CategoryGit).Info(format, args...)
}

// GitDebug logs debug to the git category
func GitDebug(format string, args ...interface{}) {
	Get(CategoryGit).Debug(format, args...)
}

// MakefileDebug logs debug to the makefile category
func MakefileDebug(format string, args ...interface{}) {
	Get(CategoryMakefile).Debug(format, args...)
}

// Cache logs to the cache category
func Cache(format string, args ...interface{}) {
	Get(CategoryCache).Info(format, args...)
}

// CacheDebug logs debug to the cache category
func CacheDebug(format string, args ...interface{}) {
	Get(CategoryCache).Debug(format, args...)
}

// TemplatesDebug logs debug to the templates category
func TemplatesDebug(format string, args ...interface{}) {
	Get(CategoryTemplates).Debug(format, args...)
}

// MCP logs to the mcp category
func MCP(format string, args ...interface{}) {
	Get(CategoryMCP).Info(format, args...)
}

// MCPDebug logs debug to the mcp category
func MCPDebug(format string, args ...interface{}) {
	Get(CategoryMCP).Debug(format, args...)
}

// Context logs to the context category
func Context(format string, args ...interface{}) {
	Get(CategoryContext).Info(format, args...)
}

// ContextDebug logs debug to the context category
func ContextDebug(format string, args ...interface{}) {
	Get(CategoryContext).Debug(format, args...)
}

// =============================================================================
// TIMERS
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a performance warning if the duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(CategoryPerformance).Warn("%s/%s took %v (threshold: %v)", t.category, t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
