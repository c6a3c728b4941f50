package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"pmat/internal/churn"
	"pmat/internal/complexity"
	"pmat/internal/dag"
	"pmat/internal/deadcode"
	"pmat/internal/deepcontext"
	"pmat/internal/defect"
	"pmat/internal/discovery"
	"pmat/internal/duplicates"
	"pmat/internal/makefile"
	"pmat/internal/satd"
	"pmat/internal/tdg"
)

// ComplexityOptions contains options for complexity analysis.
type ComplexityOptions struct {
	Path string
	// MaxCyclomatic and MaxCognitive override the error thresholds; zero
	// keeps the configured value.
	MaxCyclomatic int
	MaxCognitive  int
	Include       []string
}

// Complexity measures every function under the target.
func Complexity(ctx context.Context, env *Env, opts ComplexityOptions) (*complexity.Report, error) {
	th := env.Config.Complexity
	if opts.MaxCyclomatic > 0 {
		th.CyclomaticError = opts.MaxCyclomatic
		th.CyclomaticWarn = min(th.CyclomaticWarn, opts.MaxCyclomatic)
	}
	if opts.MaxCognitive > 0 {
		th.CognitiveError = opts.MaxCognitive
		th.CognitiveWarn = min(th.CognitiveWarn, opts.MaxCognitive)
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	_, files, err := env.Discover(ctx, opts.Path, opts.Include...)
	if err != nil {
		return nil, err
	}
	var memo complexity.Memo
	if env.Cache != nil {
		memo = env.Cache
	}
	measured, err := complexity.AnalyzeFilesMemo(ctx, files, env.workers(), memo)
	if err != nil {
		return nil, err
	}
	return complexity.Aggregate(measured, th), nil
}

// ChurnOptions contains options for churn analysis.
type ChurnOptions struct {
	Path       string
	PeriodDays int
}

// Churn summarizes git history over the period.
func Churn(ctx context.Context, env *Env, opts ChurnOptions) (*churn.Analysis, error) {
	root, err := env.Resolve(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	days := opts.PeriodDays
	if days <= 0 {
		days = env.Config.Churn.PeriodDays
	}
	return churn.Analyze(ctx, root, days)
}

// SATDOptions contains options for self-admitted technical debt detection.
type SATDOptions struct {
	Path         string
	IncludeTests bool
	// CriticalOnly keeps only critical items in the result.
	CriticalOnly bool
}

// SATD scans comments for debt markers.
func SATD(ctx context.Context, env *Env, opts SATDOptions) (*satd.Result, error) {
	_, files, err := env.Discover(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	r, err := satd.AnalyzeFiles(ctx, files, satd.Options{IncludeTests: opts.IncludeTests, Workers: env.workers()})
	if err != nil {
		return nil, err
	}
	if opts.CriticalOnly {
		kept := r.Items[:0]
		for _, it := range r.Items {
			if it.Severity == satd.SeverityCritical {
				kept = append(kept, it)
			}
		}
		r.Items = kept
		r.Summary = satd.Summarize(kept)
	}
	return r, nil
}

// DAGOptions contains options for dependency graph generation.
type DAGOptions struct {
	Path           string
	Mode           string
	MaxNodes       int
	ShowComplexity bool
}

// DAG builds and renders a dependency graph.
func DAG(ctx context.Context, env *Env, opts DAGOptions) (*dag.Result, error) {
	mode, ok := dag.ParseMode(opts.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown graph type %q: use call-graph, import-graph, inheritance or full-dependency", opts.Mode)
	}
	_, files, err := env.Discover(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	return dag.Analyze(ctx, files, dag.Options{
		Mode:           mode,
		MaxNodes:       opts.MaxNodes,
		ShowComplexity: opts.ShowComplexity,
		Workers:        env.workers(),
	})
}

// Architecture is the module-level view of a project.
type Architecture struct {
	Modules      int                `json:"modules"`
	Dependencies int                `json:"dependencies"`
	Languages    map[string]int     `json:"languages"`
	Cycles       [][]string         `json:"cycles"`
	CoreModules  []dag.RankedNode   `json:"core_modules"`
	Mermaid      string             `json:"mermaid"`
	Components   []ComponentMetrics `json:"components"`
}

// ComponentMetrics describes one top-level directory.
type ComponentMetrics struct {
	Name       string `json:"name"`
	Files      int    `json:"files"`
	Functions  int    `json:"functions"`
	Cyclomatic int    `json:"total_cyclomatic"`
	FanIn      int    `json:"fan_in"`
	FanOut     int    `json:"fan_out"`
}

// SystemArchitecture renders the import graph between modules and rolls
// complexity and coupling up to top-level components.
func SystemArchitecture(ctx context.Context, env *Env, path string) (*Architecture, error) {
	_, files, err := env.Discover(ctx, path)
	if err != nil {
		return nil, err
	}
	res, err := dag.Analyze(ctx, files, dag.Options{Mode: dag.ModeImportGraph, MaxNodes: 50, Workers: env.workers()})
	if err != nil {
		return nil, err
	}
	measured, err := complexity.AnalyzeFiles(ctx, files, env.workers())
	if err != nil {
		return nil, err
	}

	arch := &Architecture{
		Modules:      res.TotalNodes,
		Dependencies: res.TotalEdges,
		Languages:    discovery.Languages(discovery.Filter(files, func(f discovery.File) bool { return discovery.IsSource(f.Language) })),
		Cycles:       res.Cycles,
		CoreModules:  res.TopRanked,
		Mermaid:      res.Mermaid,
	}

	comps := map[string]*ComponentMetrics{}
	component := func(rel string) *ComponentMetrics {
		name := componentOf(rel)
		c, ok := comps[name]
		if !ok {
			c = &ComponentMetrics{Name: name}
			comps[name] = c
		}
		return c
	}
	for _, fc := range measured {
		c := component(fc.Path)
		c.Files++
		c.Functions += len(fc.Functions)
		c.Cyclomatic += fc.Total.Cyclomatic
	}
	for _, e := range res.Graph.Edges {
		from, to := componentOf(e.From), componentOf(e.To)
		if from == to {
			continue
		}
		component(e.From).FanOut++
		component(e.To).FanIn++
	}
	for _, c := range comps {
		arch.Components = append(arch.Components, *c)
	}
	sort.Slice(arch.Components, func(i, j int) bool { return arch.Components[i].Name < arch.Components[j].Name })
	return arch, nil
}

// componentOf is the first path element, or "." for root files.
func componentOf(rel string) string {
	rel = filepath.ToSlash(rel)
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			return rel[:i]
		}
	}
	return "."
}

// DeadCodeOptions contains options for dead code detection.
type DeadCodeOptions struct {
	Path         string
	IncludeTests bool
	Top          int
}

// DeadCode reports unreachable functions, types and statements.
func DeadCode(ctx context.Context, env *Env, opts DeadCodeOptions) (*deadcode.Report, error) {
	_, files, err := env.Discover(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	return deadcode.Analyze(ctx, files, deadcode.Options{IncludeTests: opts.IncludeTests, Workers: env.workers(), Top: opts.Top})
}

// DuplicatesOptions contains options for clone detection.
type DuplicatesOptions struct {
	Path      string
	Threshold float64
	MinTokens int
}

// Duplicates finds Type-2 clones.
func Duplicates(ctx context.Context, env *Env, opts DuplicatesOptions) (*duplicates.Report, error) {
	cfg := env.Config.Duplicates
	if opts.Threshold > 0 {
		cfg.SimilarityThreshold = opts.Threshold
	}
	if opts.MinTokens > 0 {
		cfg.MinTokens = opts.MinTokens
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	_, files, err := env.Discover(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	return duplicates.Analyze(ctx, files, cfg, env.workers())
}

// TDGOptions contains options for Technical Debt Gradient scoring.
type TDGOptions struct {
	Path         string
	Top          int
	CriticalOnly bool
}

// TDG scores every source file, highest first.
func TDG(ctx context.Context, env *Env, opts TDGOptions) (*tdg.Analysis, error) {
	calc, err := tdg.NewCalculator(env.Config.TDG)
	if err != nil {
		return nil, err
	}
	_, files, err := env.Discover(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	a, err := calc.Analyze(ctx, files, env.workers())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(a.Scores, func(i, j int) bool { return a.Scores[i].Value > a.Scores[j].Value })
	if opts.CriticalOnly {
		kept := a.Scores[:0]
		for _, s := range a.Scores {
			if s.Severity == tdg.SeverityCritical {
				kept = append(kept, s)
			}
		}
		a.Scores = kept
	}
	if opts.Top > 0 && len(a.Scores) > opts.Top {
		a.Scores = a.Scores[:opts.Top]
	}
	return a, nil
}

// DefectOptions contains options for defect prediction.
type DefectOptions struct {
	Path          string
	PeriodDays    int
	MinConfidence float64
	HighRiskOnly  bool
}

// Defects predicts per-file defect probability.
func Defects(ctx context.Context, env *Env, opts DefectOptions) (*defect.Analysis, error) {
	root, files, err := env.Discover(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	days := opts.PeriodDays
	if days <= 0 {
		days = env.Config.Churn.PeriodDays
	}
	return defect.Analyze(ctx, root, files, defect.Options{
		Workers:       env.workers(),
		PeriodDays:    days,
		Duplicates:    env.Config.Duplicates,
		MinConfidence: opts.MinConfidence,
		HighRiskOnly:  opts.HighRiskOnly,
	})
}

// ContextOptions contains options for the deep context report.
type ContextOptions struct {
	Path     string
	Analyses []string
}

// DeepContext runs every selected analyzer and composes the report.
func DeepContext(ctx context.Context, env *Env, opts ContextOptions) (*deepcontext.Report, error) {
	analyses, err := deepcontext.ParseAnalyses(opts.Analyses)
	if err != nil {
		return nil, err
	}
	root, err := env.Resolve(ctx, opts.Path)
	if err != nil {
		return nil, err
	}
	return deepcontext.Generate(ctx, root, deepcontext.Options{
		Config:   env.Config,
		Analyses: analyses,
		Workers:  env.workers(),
		Cache:    env.Cache,
	})
}

// LintOptions contains options for Makefile linting.
type LintOptions struct {
	Path     string
	Disabled []string
}

// LintMakefile checks a Makefile. A directory path is searched for the
// file make would read.
func LintMakefile(_ context.Context, _ *Env, opts LintOptions) (*makefile.Result, error) {
	path := opts.Path
	if path == "" {
		path = "."
	}
	if found := deepcontext.FindMakefile(path); found != "" {
		path = found
	}
	return makefile.NewLinter(opts.Disabled...).Lint(path)
}
