package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmat/internal/output"
	"pmat/internal/templates"
)

func paramsFlag(cmd *cobra.Command, params *map[string]string) {
	cmd.Flags().StringToStringVarP(params, "param", "p", nil, "Template parameter as key=value (repeatable)")
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (a *app) generateCmd() *cobra.Command {
	var (
		variant string
		params  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "generate <category> <toolchain>",
		Short: "Render one template (makefile, readme, gitignore)",
		Example: `  pmat generate makefile rust -p project_name=widget
  pmat generate readme deno -p project_name=tool -o README.md`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := templates.URI(args[0], args[1], variant)
			g, err := templates.Render(uri, toAny(params))
			if err != nil {
				return err
			}
			a.logger.Debug("rendered template", zap.String("uri", uri), zap.String("checksum", g.Checksum))
			return a.emit(cmd, output.FormatTable, g)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "cli", "Template variant")
	paramsFlag(cmd, &params)
	return cmd
}

func (a *app) scaffoldCmd() *cobra.Command {
	var (
		dir        string
		categories []string
		params     map[string]string
	)
	cmd := &cobra.Command{
		Use:   "scaffold <toolchain>",
		Short: "Write the Makefile, README.md and .gitignore of a toolchain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := templates.Scaffold(dir, args[0], categories, toAny(params))
			if err != nil {
				return err
			}
			if err := a.emit(cmd, output.FormatTable, r); err != nil {
				return err
			}
			if len(r.Errors) > 0 {
				return fmt.Errorf("%d of %d templates failed", len(r.Errors), len(r.Errors)+len(r.Files))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Project directory")
	cmd.Flags().StringSliceVar(&categories, "templates", templates.Categories, "Templates to generate")
	paramsFlag(cmd, &params)
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var filter templates.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := templates.List(filter)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, ts)
		},
	}
	cmd.Flags().StringVar(&filter.Toolchain, "toolchain", "", "Filter by toolchain")
	cmd.Flags().StringVar(&filter.Category, "category", "", "Filter by category")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var toolchain string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search templates by name, description and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := templates.Search(args[0], toolchain)
			if err != nil {
				return err
			}
			return a.emit(cmd, output.FormatTable, rs)
		},
	}
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "Filter by toolchain")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "validate <uri>",
		Short: "Check template parameters without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := templates.Validate(args[0], toAny(params))
			if err != nil {
				return err
			}
			if err := a.emit(cmd, output.FormatTable, r); err != nil {
				return err
			}
			if !r.Valid {
				return fmt.Errorf("%s: %d invalid parameters", args[0], len(r.Errors))
			}
			return nil
		},
	}
	paramsFlag(cmd, &params)
	return cmd
}
