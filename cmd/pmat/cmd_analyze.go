package main

import (
	"strings"

	"github.com/spf13/cobra"

	"pmat/internal/actions"
	"pmat/internal/deepcontext"
	"pmat/internal/output"
)

// analyzeCmd groups the code quality analyzers. Every subcommand takes a
// local path or a GitHub repository as its optional argument.
func (a *app) analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run code quality analyses",
	}
	cmd.AddCommand(
		a.complexityCmd(),
		a.churnCmd(),
		a.satdCmd(),
		a.dagCmd(),
		a.duplicatesCmd(),
		a.deadCodeCmd(),
		a.tdgCmd(),
		a.defectsCmd(),
		a.deepContextCmd(),
		a.architectureCmd(),
	)
	return cmd
}

// target returns the positional path, falling back to --repo.
func target(args []string, repo string) string {
	if len(args) > 0 {
		return args[0]
	}
	return repo
}

func repoFlag(cmd *cobra.Command, repo *string) {
	cmd.Flags().StringVar(repo, "repo", "", "GitHub repository to clone and analyze (URL or owner/name)")
}

func (a *app) complexityCmd() *cobra.Command {
	var (
		repo string
		opts actions.ComplexityOptions
	)
	cmd := &cobra.Command{
		Use:   "complexity [path]",
		Short: "Cyclomatic and cognitive complexity per function",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.Complexity(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().IntVar(&opts.MaxCyclomatic, "max-cyclomatic", 0, "Cyclomatic complexity error threshold")
	cmd.Flags().IntVar(&opts.MaxCognitive, "max-cognitive", 0, "Cognitive complexity error threshold")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "Only analyze files matching these globs")
	return cmd
}

func (a *app) churnCmd() *cobra.Command {
	var (
		repo string
		opts actions.ChurnOptions
	)
	cmd := &cobra.Command{
		Use:   "churn [path]",
		Short: "Git change frequency per file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.Churn(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatSummary, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().IntVarP(&opts.PeriodDays, "days", "d", 0, "Days of history to analyze (default from config)")
	return cmd
}

func (a *app) satdCmd() *cobra.Command {
	var (
		repo string
		opts actions.SATDOptions
	)
	cmd := &cobra.Command{
		Use:   "satd [path]",
		Short: "Self-admitted technical debt in comments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.SATD(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().BoolVar(&opts.IncludeTests, "include-tests", false, "Scan test files too")
	cmd.Flags().BoolVar(&opts.CriticalOnly, "critical-only", false, "Only report critical items")
	return cmd
}

func (a *app) dagCmd() *cobra.Command {
	var (
		repo string
		opts actions.DAGOptions
	)
	cmd := &cobra.Command{
		Use:   "dag [path]",
		Short: "Dependency graph as Mermaid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.DAG(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatMermaid, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().StringVar(&opts.Mode, "dag-type", "call-graph", "Graph type: call-graph, import-graph, inheritance, full-dependency")
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 0, "Keep only the highest ranked nodes")
	cmd.Flags().BoolVar(&opts.ShowComplexity, "show-complexity", false, "Color nodes by complexity")
	return cmd
}

func (a *app) duplicatesCmd() *cobra.Command {
	var (
		repo string
		opts actions.DuplicatesOptions
	)
	cmd := &cobra.Command{
		Use:   "duplicates [path]",
		Short: "Type-2 clone detection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.Duplicates(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0, "Similarity threshold in (0,1]")
	cmd.Flags().IntVar(&opts.MinTokens, "min-tokens", 0, "Minimum fragment size in tokens")
	return cmd
}

func (a *app) deadCodeCmd() *cobra.Command {
	var (
		repo string
		opts actions.DeadCodeOptions
	)
	cmd := &cobra.Command{
		Use:     "dead-code [path]",
		Aliases: []string{"deadcode"},
		Short:   "Unreachable functions and types",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.DeadCode(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().BoolVar(&opts.IncludeTests, "include-tests", false, "Report findings in test files")
	cmd.Flags().IntVar(&opts.Top, "top-files", 0, "Limit the number of files reported")
	return cmd
}

func (a *app) tdgCmd() *cobra.Command {
	var (
		repo string
		opts actions.TDGOptions
	)
	cmd := &cobra.Command{
		Use:   "tdg [path]",
		Short: "Technical Debt Gradient per file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.TDG(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().IntVar(&opts.Top, "top", 0, "Limit the number of files reported")
	cmd.Flags().BoolVar(&opts.CriticalOnly, "critical-only", false, "Only report critical files")
	return cmd
}

func (a *app) defectsCmd() *cobra.Command {
	var (
		repo string
		opts actions.DefectOptions
	)
	cmd := &cobra.Command{
		Use:     "defects [path]",
		Aliases: []string{"defect-probability"},
		Short:   "Per-file defect probability",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.Defects(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().IntVarP(&opts.PeriodDays, "days", "d", 0, "Days of history for churn")
	cmd.Flags().Float64Var(&opts.MinConfidence, "min-confidence", 0, "Drop predictions below this confidence")
	cmd.Flags().BoolVar(&opts.HighRiskOnly, "high-risk-only", false, "Only report high risk files")
	return cmd
}

func (a *app) deepContextCmd() *cobra.Command {
	var (
		repo string
		opts actions.ContextOptions
	)
	names := make([]string, 0, len(deepcontext.AllAnalyses()))
	for _, an := range deepcontext.AllAnalyses() {
		names = append(names, string(an))
	}
	cmd := &cobra.Command{
		Use:     "deep-context [path]",
		Aliases: []string{"context"},
		Short:   "Combined report with a quality scorecard and recommendations",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			opts.Path = target(args, repo)
			r, err := actions.DeepContext(ctx, a.env, opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatMarkdown, r)
		},
	}
	repoFlag(cmd, &repo)
	cmd.Flags().StringSliceVar(&opts.Analyses, "analyses", nil, "Analyses to run (default all): "+strings.Join(names, ", "))
	return cmd
}

func (a *app) architectureCmd() *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "architecture [path]",
		Short: "Module dependencies and per-component metrics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.runContext(cmd)
			defer cancel()
			r, err := actions.SystemArchitecture(ctx, a.env, target(args, repo))
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatMarkdown, r)
		},
	}
	repoFlag(cmd, &repo)
	return cmd
}
