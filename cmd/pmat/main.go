package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pmat/internal/actions"
	"pmat/internal/config"
	"pmat/internal/logging"
	"pmat/internal/output"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

// app holds global flag values and the state built from them before a
// command runs.
type app struct {
	verbose    bool
	configPath string
	format     string
	outputPath string
	timeout    time.Duration
	noCache    bool

	logger *zap.Logger
	env    *actions.Env
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pmat",
		Short: "Pragmatic AI Labs MCP agent toolkit",
		Long: `pmat scaffolds Rust, Deno and Python projects from templates and
measures code quality: complexity, churn, technical debt, duplication,
dead code, dependency graphs and defect probability.

Run "pmat serve" to expose the same operations as an MCP server on stdio.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "Configuration file")
	flags.StringVarP(&a.format, "format", "f", "", "Output format: "+formatNames())
	flags.StringVarP(&a.outputPath, "output", "o", "", "Write output to a file instead of stdout")
	flags.DurationVar(&a.timeout, "timeout", 5*time.Minute, "Operation timeout")
	flags.BoolVar(&a.noCache, "no-cache", false, "Disable the analysis cache")

	root.AddCommand(
		a.analyzeCmd(),
		a.lintMakefileCmd(),
		a.generateCmd(),
		a.scaffoldCmd(),
		a.listCmd(),
		a.searchCmd(),
		a.validateCmd(),
		a.repoInfoCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

func formatNames() string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.format != "" {
		if _, err := output.ParseFormat(a.format); err != nil {
			return err
		}
	}

	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if version != "" {
		cfg.Version = version
	}

	if ws, err := os.Getwd(); err == nil {
		if err := logging.InitializeWith(ws, loggingSettings(cfg.Logging)); err != nil {
			a.logger.Warn("file logging disabled", zap.Error(err))
		}
	}
	logging.Boot("pmat %s: %s", cfg.Version, cmd.CommandPath())

	a.env = actions.NewEnv(cfg)
	if !a.noCache {
		if _, err := a.env.OpenCache(); err != nil {
			a.logger.Warn("analysis cache unavailable", zap.String("path", cfg.Cache.Path), zap.Error(err))
		}
	}
	a.logger.Debug("configured",
		zap.String("config", a.configPath),
		zap.Int("workers", a.env.Workers),
		zap.Bool("cache", a.env.Cache != nil),
	)
	return nil
}

func loggingSettings(c config.LoggingConfig) logging.Settings {
	return logging.Settings{
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
		Level:      c.Level,
		JSONFormat: c.JSONFormat,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
	}
}

func (a *app) teardown() {
	if a.env != nil && a.env.Cache != nil {
		if err := a.env.Cache.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing cache", zap.Error(err))
		}
	}
	logging.CloseAll()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// runContext bounds a command by --timeout and cancels it on SIGINT or SIGTERM.
func (a *app) runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	if a.timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// emit renders v in the --format value, or def when the flag is unset.
func (a *app) emit(cmd *cobra.Command, def output.Format, v any) error {
	f := def
	if a.format != "" {
		parsed, err := output.ParseFormat(a.format)
		if err != nil {
			return err
		}
		f = parsed
	}

	var w io.Writer = cmd.OutOrStdout()
	if a.outputPath != "" {
		out, err := output.Open(a.outputPath)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	if err := actions.Write(output.New(w), f, v); err != nil {
		return err
	}
	if a.outputPath != "" && a.outputPath != "-" {
		a.logger.Info("wrote output", zap.String("path", a.outputPath), zap.String("format", string(f)))
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
