package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmat/internal/actions"
	"pmat/internal/cache"
	"pmat/internal/mcpserver"
	"pmat/internal/output"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		watch bool
		root  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Serves templates and analyzers to MCP clients over stdio JSON-RPC.

With --watch and the cache enabled, file changes under --root invalidate
cached analysis results while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The server runs until the client disconnects, not until --timeout.
			ctx := cmd.Context()

			srv, err := mcpserver.New(a.env)
			if err != nil {
				return err
			}

			if watch {
				if a.env.Cache == nil {
					a.logger.Warn("--watch has no effect without the cache")
				} else {
					w, err := cache.NewWatcher(a.env.Cache, root, func(paths []string) {
						a.logger.Debug("invalidated cache entries", zap.Strings("paths", paths))
					})
					if err != nil {
						return fmt.Errorf("failed to create watcher: %w", err)
					}
					if err := w.Start(ctx); err != nil {
						return fmt.Errorf("failed to start watcher: %w", err)
					}
					defer w.Stop()
				}
			}

			a.logger.Info("serving MCP on stdio",
				zap.String("name", a.env.Config.MCP.ServerName),
				zap.String("protocol", a.env.Config.MCP.ProtocolVersion),
			)
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Invalidate cached results when files change")
	cmd.Flags().StringVar(&root, "root", ".", "Directory to watch")
	return cmd
}

func (a *app) lintMakefileCmd() *cobra.Command {
	var opts actions.LintOptions
	cmd := &cobra.Command{
		Use:   "lint-makefile [file]",
		Short: "Lint a Makefile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			if len(args) > 0 {
				opts.Path = args[0]
			}
			r, err := actions.LintMakefile(ctx, a.env, opts)
			if err != nil {
				return err
			}
			if err := a.emit(cmd, output.FormatTable, r); err != nil {
				return err
			}
			if r.HasErrors() {
				return fmt.Errorf("%s: %d errors", r.Path, r.ErrorCount())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.Disabled, "disable", nil, "Rules to skip")
	return cmd
}

func (a *app) repoInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repo-info <repository>",
		Short: "Show GitHub metadata for a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			m, err := actions.RepoInfo(ctx, a.env, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, m)
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "pmat %s\n", a.env.Config.Version)
			return err
		},
	}
}
