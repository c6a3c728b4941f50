package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pmat/internal/actions"
	"pmat/internal/output"
	"pmat/internal/templates"
)

type toolEntry struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

func projectPath() mcp.ToolOption {
	return mcp.WithString("project_path", mcp.Description("Path or GitHub repository to analyze (defaults to the current directory)"))
}

func formatOption(def string, values ...string) mcp.ToolOption {
	return mcp.WithString("format", mcp.Enum(values...), mcp.Description(fmt.Sprintf("Output format (default: %s)", def)))
}

func (s *Server) tools() []toolEntry {
	return []toolEntry{
		{mcp.NewTool("get_server_info",
			mcp.WithDescription("Get information about the server, including version and capabilities"),
		), s.serverInfo},

		{mcp.NewTool("generate_template",
			mcp.WithDescription("Generate a project file (Makefile, README, .gitignore) from a template"),
			mcp.WithString("resource_uri", mcp.Required(), mcp.Description("Template URI (e.g., template://makefile/rust/cli)")),
			mcp.WithObject("parameters", mcp.Required(), mcp.Description("Template parameters as key-value pairs")),
		), s.generateTemplate},

		{mcp.NewTool("list_templates",
			mcp.WithDescription("List available templates, optionally filtered by toolchain or category"),
			mcp.WithString("toolchain", mcp.Description("Filter by toolchain (rust, deno, python-uv)")),
			mcp.WithString("category", mcp.Description("Filter by category (makefile, readme, gitignore)")),
		), s.listTemplates},

		{mcp.NewTool("validate_template",
			mcp.WithDescription("Validate template parameters before generation"),
			mcp.WithString("resource_uri", mcp.Required(), mcp.Description("Template URI to validate")),
			mcp.WithObject("parameters", mcp.Required(), mcp.Description("Parameters to validate")),
		), s.validateTemplate},

		{mcp.NewTool("scaffold_project",
			mcp.WithDescription("Render the Makefile, README.md and .gitignore of a toolchain into a project directory"),
			mcp.WithString("toolchain", mcp.Required(), mcp.Description("Toolchain to use (rust, deno, python-uv)")),
			mcp.WithArray("templates", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
				mcp.Description("Template categories to generate (makefile, readme, gitignore)")),
			mcp.WithObject("parameters", mcp.Required(), mcp.Description("Common parameters for all templates")),
			mcp.WithString("output_dir", mcp.Description("Directory to write files into; omit to only return the contents")),
		), s.scaffoldProject},

		{mcp.NewTool("search_templates",
			mcp.WithDescription("Search templates by name, description and parameter names"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
			mcp.WithString("toolchain", mcp.Description("Optional toolchain filter")),
		), s.searchTemplates},

		{mcp.NewTool("analyze_code_churn",
			mcp.WithDescription("Analyze git change frequency to find maintenance hotspots"),
			projectPath(),
			mcp.WithNumber("period_days", mcp.Description("Number of days to analyze (default: 30)")),
			formatOption("summary", "json", "markdown", "csv", "summary"),
		), s.analyzeChurn},

		{mcp.NewTool("analyze_complexity",
			mcp.WithDescription("Measure McCabe cyclomatic and cognitive complexity per function"),
			projectPath(),
			formatOption("summary", "summary", "markdown", "json", "csv"),
			mcp.WithNumber("max_cyclomatic", mcp.Description("Custom cyclomatic complexity threshold")),
			mcp.WithNumber("max_cognitive", mcp.Description("Custom cognitive complexity threshold")),
			mcp.WithArray("include", mcp.Items(map[string]any{"type": "string"}), mcp.Description("File glob patterns to include")),
		), s.analyzeComplexity},

		{mcp.NewTool("analyze_dag",
			mcp.WithDescription("Generate a Mermaid dependency graph of the code"),
			projectPath(),
			mcp.WithString("dag_type", mcp.Enum("call-graph", "import-graph", "inheritance", "full-dependency"),
				mcp.Description("Type of graph to generate (default: call-graph)")),
			mcp.WithNumber("max_nodes", mcp.Description("Keep only the highest ranked nodes")),
			mcp.WithBoolean("show_complexity", mcp.Description("Color nodes by complexity")),
			formatOption("mermaid", "mermaid", "markdown", "json"),
		), s.analyzeDAG},

		{mcp.NewTool("generate_context",
			mcp.WithDescription("Run every analyzer and compose a deep context report with a quality scorecard"),
			projectPath(),
			mcp.WithArray("analyses", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Analyses to include (default: all)")),
			formatOption("markdown", "markdown", "json"),
		), s.generateContext},

		{mcp.NewTool("analyze_system_architecture",
			mcp.WithDescription("Summarize module dependencies and per-component metrics"),
			projectPath(),
			formatOption("markdown", "markdown", "json", "mermaid"),
		), s.analyzeArchitecture},

		{mcp.NewTool("analyze_defect_probability",
			mcp.WithDescription("Predict per-file defect probability from churn, complexity, duplication and coupling"),
			projectPath(),
			mcp.WithNumber("period_days", mcp.Description("Churn period in days (default: 30)")),
			mcp.WithNumber("min_confidence", mcp.Description("Drop predictions below this confidence")),
			mcp.WithBoolean("high_risk_only", mcp.Description("Only report high risk files")),
			formatOption("summary", "summary", "json", "csv"),
		), s.analyzeDefects},

		{mcp.NewTool("analyze_dead_code",
			mcp.WithDescription("Find unreachable functions, types and statements"),
			projectPath(),
			mcp.WithBoolean("include_tests", mcp.Description("Report findings inside test files")),
			mcp.WithNumber("top_files", mcp.Description("Limit the number of files reported")),
			formatOption("summary", "summary", "markdown", "json"),
		), s.analyzeDeadCode},

		{mcp.NewTool("analyze_satd",
			mcp.WithDescription("Find self-admitted technical debt in comments"),
			projectPath(),
			mcp.WithBoolean("include_tests", mcp.Description("Scan test files too")),
			mcp.WithBoolean("critical_only", mcp.Description("Only report critical items")),
			formatOption("markdown", "markdown", "json", "csv"),
		), s.analyzeSATD},

		{mcp.NewTool("analyze_duplicates",
			mcp.WithDescription("Detect Type-2 code clones with MinHash and LSH"),
			projectPath(),
			mcp.WithNumber("threshold", mcp.Description("Similarity threshold in (0,1] (default: 0.7)")),
			mcp.WithNumber("min_tokens", mcp.Description("Minimum fragment size in tokens (default: 50)")),
			formatOption("markdown", "markdown", "json"),
		), s.analyzeDuplicates},

		{mcp.NewTool("analyze_tdg",
			mcp.WithDescription("Score files by Technical Debt Gradient"),
			projectPath(),
			mcp.WithNumber("top", mcp.Description("Limit the number of files reported")),
			mcp.WithBoolean("critical_only", mcp.Description("Only report critical files")),
			formatOption("markdown", "markdown", "json", "csv"),
		), s.analyzeTDG},

		{mcp.NewTool("lint_makefile",
			mcp.WithDescription("Lint a Makefile for missing .PHONY targets, undefined variables and portability issues"),
			mcp.WithString("path", mcp.Description("Makefile path or directory containing it (default: current directory)")),
			mcp.WithArray("disabled_rules", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Rule IDs to skip")),
			formatOption("markdown", "markdown", "json"),
		), s.lintMakefile},
	}
}

// ServerInfo describes the server for get_server_info.
type ServerInfo struct {
	Name                string   `json:"name"`
	Version             string   `json:"version"`
	ProtocolVersion     string   `json:"protocolVersion"`
	Description         string   `json:"description"`
	Capabilities        []string `json:"capabilities"`
	SupportedTemplates  []string `json:"supportedTemplates"`
	SupportedToolchains []string `json:"supportedToolchains"`
	Examples            []string `json:"examples"`
}

func (s *Server) serverInfo(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := s.env.Config
	return jsonResult(ServerInfo{
		Name:            cfg.MCP.ServerName,
		Version:         cfg.Version,
		ProtocolVersion: cfg.MCP.ProtocolVersion,
		Description:     "Project scaffolding and code quality analysis for Rust, Deno and Python projects",
		Capabilities: []string{
			"Generate individual project files (Makefile, README.md, .gitignore)",
			"Scaffold complete projects with all files at once",
			"Complexity, churn, dead code, duplication, SATD, TDG and defect analysis",
			"Dependency graphs in Mermaid format",
			"Deep context reports with a quality scorecard",
			"Makefile linting",
		},
		SupportedTemplates:  templates.Categories,
		SupportedToolchains: templates.Toolchains,
		Examples: []string{
			"Create a new Rust CLI project: scaffold_project with toolchain='rust'",
			"Generate just a Makefile: generate_template with resource_uri='template://makefile/rust/cli'",
			"Search for Python templates: search_templates with query='python'",
		},
	}), nil
}

// templateError maps template failures to tool errors.
func templateError(uri string, err error) *mcp.CallToolResult {
	if errors.Is(err, templates.ErrNotFound) {
		return mcp.NewToolResultError("Template not found: " + uri)
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) generateTemplate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	uri := a.str("resource_uri", "")
	if uri == "" {
		return mcp.NewToolResultError("missing required field: resource_uri"), nil
	}
	params, err := a.object("parameters")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := templates.Render(uri, params)
	if err != nil {
		return templateError(uri, err), nil
	}
	res := mcp.NewToolResultText(g.Content)
	meta := jsonResult(struct {
		Filename  string `json:"filename"`
		Checksum  string `json:"checksum"`
		Toolchain string `json:"toolchain"`
	}{g.Filename, g.Checksum, g.Toolchain})
	res.Content = append(res.Content, meta.Content...)
	return res, nil
}

func (s *Server) listTemplates(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	ts, err := templates.List(templates.Filter{Category: a.str("category", ""), Toolchain: a.str("toolchain", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		Templates []*templates.Template `json:"templates"`
		Count     int                   `json:"count"`
	}{ts, len(ts)}), nil
}

func (s *Server) validateTemplate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	uri := a.str("resource_uri", "")
	params, err := a.object("parameters")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := templates.Validate(uri, params)
	if err != nil {
		return templateError(uri, err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) scaffoldProject(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	params, err := a.object("parameters")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cats := a.strings("templates")
	if len(cats) == 0 {
		return mcp.NewToolResultError("missing required field: templates"), nil
	}
	res, err := templates.Scaffold(a.str("output_dir", ""), a.str("toolchain", ""), cats, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) searchTemplates(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	query := a.str("query", "")
	if query == "" {
		return mcp.NewToolResultError("missing required field: query"), nil
	}
	rs, err := templates.Search(query, a.str("toolchain", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		Results []templates.SearchResult `json:"results"`
		Count   int                      `json:"count"`
	}{rs, len(rs)}), nil
}

// analysis runs an action and renders its result; failures become tool
// errors so the client sees the message.
func analysis(a args, def output.Format, run func() (any, error)) (*mcp.CallToolResult, error) {
	v, err := run()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return render(a, def, v), nil
}

func (s *Server) analyzeChurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatSummary, func() (any, error) {
		return actions.Churn(ctx, s.env, actions.ChurnOptions{
			Path:       a.str("project_path", ""),
			PeriodDays: a.integer("period_days", 0),
		})
	})
}

func (s *Server) analyzeComplexity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatSummary, func() (any, error) {
		return actions.Complexity(ctx, s.env, actions.ComplexityOptions{
			Path:          a.str("project_path", ""),
			MaxCyclomatic: a.integer("max_cyclomatic", 0),
			MaxCognitive:  a.integer("max_cognitive", 0),
			Include:       a.strings("include"),
		})
	})
}

func (s *Server) analyzeDAG(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMermaid, func() (any, error) {
		return actions.DAG(ctx, s.env, actions.DAGOptions{
			Path:           a.str("project_path", ""),
			Mode:           a.str("dag_type", ""),
			MaxNodes:       a.integer("max_nodes", 0),
			ShowComplexity: a.boolean("show_complexity", false),
		})
	})
}

func (s *Server) generateContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMarkdown, func() (any, error) {
		return actions.DeepContext(ctx, s.env, actions.ContextOptions{
			Path:     a.str("project_path", ""),
			Analyses: a.strings("analyses"),
		})
	})
}

func (s *Server) analyzeArchitecture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMarkdown, func() (any, error) {
		return actions.SystemArchitecture(ctx, s.env, a.str("project_path", ""))
	})
}

func (s *Server) analyzeDefects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatSummary, func() (any, error) {
		return actions.Defects(ctx, s.env, actions.DefectOptions{
			Path:          a.str("project_path", ""),
			PeriodDays:    a.integer("period_days", 0),
			MinConfidence: a.number("min_confidence", 0),
			HighRiskOnly:  a.boolean("high_risk_only", false),
		})
	})
}

func (s *Server) analyzeDeadCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatSummary, func() (any, error) {
		return actions.DeadCode(ctx, s.env, actions.DeadCodeOptions{
			Path:         a.str("project_path", ""),
			IncludeTests: a.boolean("include_tests", false),
			Top:          a.integer("top_files", 0),
		})
	})
}

func (s *Server) analyzeSATD(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMarkdown, func() (any, error) {
		return actions.SATD(ctx, s.env, actions.SATDOptions{
			Path:         a.str("project_path", ""),
			IncludeTests: a.boolean("include_tests", false),
			CriticalOnly: a.boolean("critical_only", false),
		})
	})
}

func (s *Server) analyzeDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMarkdown, func() (any, error) {
		return actions.Duplicates(ctx, s.env, actions.DuplicatesOptions{
			Path:      a.str("project_path", ""),
			Threshold: a.number("threshold", 0),
			MinTokens: a.integer("min_tokens", 0),
		})
	})
}

func (s *Server) analyzeTDG(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMarkdown, func() (any, error) {
		return actions.TDG(ctx, s.env, actions.TDGOptions{
			Path:         a.str("project_path", ""),
			Top:          a.integer("top", 0),
			CriticalOnly: a.boolean("critical_only", false),
		})
	})
}

func (s *Server) lintMakefile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argsOf(req)
	return analysis(a, output.FormatMarkdown, func() (any, error) {
		return actions.LintMakefile(ctx, s.env, actions.LintOptions{
			Path:     a.str("path", ""),
			Disabled: a.strings("disabled_rules"),
		})
	})
}
