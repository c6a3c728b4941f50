// Package deepcontext runs every analyzer over one discovery pass and
// composes the results into a single report with a quality scorecard and
// prioritized recommendations.
package deepcontext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pmat/internal/cache"
	"pmat/internal/churn"
	"pmat/internal/complexity"
	"pmat/internal/config"
	"pmat/internal/dag"
	"pmat/internal/deadcode"
	"pmat/internal/defect"
	"pmat/internal/discovery"
	"pmat/internal/duplicates"
	"pmat/internal/lang"
	"pmat/internal/logging"
	"pmat/internal/makefile"
	"pmat/internal/satd"
	"pmat/internal/tdg"
)

// Analysis names one section of the report.
type Analysis string

const (
	AnalysisComplexity Analysis = "complexity"
	AnalysisChurn      Analysis = "churn"
	AnalysisSATD       Analysis = "satd"
	AnalysisDAG        Analysis = "dag"
	AnalysisDeadCode   Analysis = "dead_code"
	AnalysisDuplicates Analysis = "duplicates"
	AnalysisTDG        Analysis = "tdg"
	AnalysisDefects    Analysis = "defect_probability"
	AnalysisMakefile   Analysis = "makefile"
)

// AllAnalyses lists every section in report order.
func AllAnalyses() []Analysis {
	return []Analysis{
		AnalysisComplexity, AnalysisChurn, AnalysisSATD, AnalysisDAG,
		AnalysisDeadCode, AnalysisDuplicates, AnalysisTDG, AnalysisDefects,
		AnalysisMakefile,
	}
}

// ParseAnalyses resolves names such as "complexity,dead-code". An empty
// list selects everything.
func ParseAnalyses(names []string) ([]Analysis, error) {
	if len(names) == 0 {
		return AllAnalyses(), nil
	}
	known := map[string]Analysis{}
	for _, a := range AllAnalyses() {
		known[string(a)] = a
	}
	known["defects"] = AnalysisDefects
	known["deadcode"] = AnalysisDeadCode

	var out []Analysis
	seen := map[Analysis]bool{}
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
			if name == "" {
				continue
			}
			a, ok := known[name]
			if !ok {
				return nil, fmt.Errorf("unknown analysis %q", name)
			}
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// Options controls a run.
type Options struct {
	Config *config.Config
	// Analyses restricts the report; empty runs everything.
	Analyses []Analysis
	Workers  int
	// Cache memoizes per-file complexity and contributes stats to the
	// metadata. May be nil.
	Cache *cache.Store
}

// Metadata describes how the report was produced.
type Metadata struct {
	GeneratedAt time.Time    `json:"generated_at"`
	ToolVersion string       `json:"tool_version"`
	ProjectRoot string       `json:"project_root"`
	DurationMS  int64        `json:"analysis_duration_ms"`
	CacheStats  *cache.Stats `json:"cache_stats,omitempty"`
}

// Duration is the wall time of the run.
func (m Metadata) Duration() time.Duration {
	return time.Duration(m.DurationMS) * time.Millisecond
}

// Overview summarizes the discovered files.
type Overview struct {
	TotalFiles int            `json:"total_files"`
	TestFiles  int            `json:"test_files"`
	TotalBytes int64          `json:"total_size_bytes"`
	Languages  map[string]int `json:"languages"`
}

// Results holds one entry per analysis that ran successfully.
type Results struct {
	Complexity *complexity.Report `json:"complexity,omitempty"`
	Churn      *churn.Analysis    `json:"churn,omitempty"`
	SATD       *satd.Result       `json:"satd,omitempty"`
	DAG        *dag.Result        `json:"dependency_graph,omitempty"`
	DeadCode   *deadcode.Report   `json:"dead_code,omitempty"`
	Duplicates *duplicates.Report `json:"duplicates,omitempty"`
	TDG        *tdg.Analysis      `json:"tdg,omitempty"`
	Defects    *defect.Analysis   `json:"defect_probability,omitempty"`
	Makefile   *makefile.Result   `json:"makefile,omitempty"`
}

// Failure records an analyzer that did not produce a section.
type Failure struct {
	Analysis Analysis `json:"analysis"`
	Error    string   `json:"error"`
}

// Report is the aggregated deep context.
type Report struct {
	ID              uuid.UUID        `json:"id"`
	Metadata        Metadata         `json:"metadata"`
	Overview        Overview         `json:"overview"`
	Analyses        Results          `json:"analyses"`
	Scorecard       Scorecard        `json:"quality_scorecard"`
	Recommendations []Recommendation `json:"recommendations"`
	Errors          []Failure        `json:"errors"`
}

// Failed reports whether analysis a recorded an error.
func (r *Report) Failed(a Analysis) bool {
	for _, f := range r.Errors {
		if f.Analysis == a {
			return true
		}
	}
	return false
}

// Makefile names looked up in the project root, in make's lookup order.
var makefileNames = []string{"GNUmakefile", "makefile", "Makefile"}

// FindMakefile returns the Makefile make would pick in root, or "".
func FindMakefile(root string) string {
	for _, name := range makefileNames {
		p := filepath.Join(root, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// run carries the shared state of one Generate call.
type run struct {
	opts    Options
	root    string
	files   []discovery.File
	enabled map[Analysis]bool
	report  *Report
	// calc is nil when the TDG config is invalid.
	calc *tdg.Calculator

	mu sync.Mutex
}

func (r *run) fail(a Analysis, err error) {
	logging.Get(logging.CategoryContext).Warn("%s failed: %v", a, err)
	r.mu.Lock()
	r.report.Errors = append(r.report.Errors, Failure{Analysis: a, Error: err.Error()})
	r.mu.Unlock()
}

func (r *run) set(fn func(res *Results)) {
	r.mu.Lock()
	fn(&r.report.Analyses)
	r.mu.Unlock()
}

// Generate discovers the files under root once and runs the selected
// analyzers concurrently. Analyzer failures are recorded in the report;
// only discovery failure or cancellation is returned as an error.
func Generate(ctx context.Context, root string, opts Options) (*Report, error) {
	start := time.Now()
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if len(opts.Analyses) == 0 {
		opts.Analyses = AllAnalyses()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	logging.Context("deep context for %s (%d analyses)", abs, len(opts.Analyses))

	walker, err := discovery.NewWalker(opts.Config.Discovery)
	if err != nil {
		return nil, err
	}
	files, err := walker.Discover(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	r := &run{
		opts:    opts,
		root:    abs,
		files:   files,
		enabled: map[Analysis]bool{},
		report: &Report{
			ID:              uuid.New(),
			Overview:        overview(files),
			Recommendations: []Recommendation{},
			Errors:          []Failure{},
		},
	}
	for _, a := range opts.Analyses {
		r.enabled[a] = true
	}
	if calc, err := tdg.NewCalculator(opts.Config.TDG); err != nil {
		r.fail(AnalysisTDG, err)
		delete(r.enabled, AnalysisTDG)
	} else {
		r.calc = calc
	}

	r.gather(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(r.report.Errors, func(i, j int) bool {
		return r.report.Errors[i].Analysis < r.report.Errors[j].Analysis
	})
	r.report.Scorecard = ComputeScorecard(&r.report.Analyses)
	r.report.Recommendations = Recommend(&r.report.Analyses, r.calc, opts.Config.Complexity)

	r.report.Metadata = Metadata{
		GeneratedAt: time.Now().UTC(),
		ToolVersion: opts.Config.Version,
		ProjectRoot: abs,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	if opts.Cache != nil {
		if st, err := opts.Cache.Stats(ctx); err == nil {
			r.report.Metadata.CacheStats = &st
		} else {
			logging.ContextDebug("cache stats unavailable: %v", err)
		}
	}

	logging.Context("deep context done: health %.1f, %d recommendations, %d errors (took %v)",
		r.report.Scorecard.OverallHealth, len(r.report.Recommendations), len(r.report.Errors), time.Since(start))
	return r.report, nil
}

func overview(files []discovery.File) Overview {
	o := Overview{TotalFiles: len(files), Languages: discovery.Languages(files)}
	for _, f := range files {
		o.TotalBytes += f.Size
		if f.IsTest {
			o.TestFiles++
		}
	}
	return o
}

// gather fans the analyzers out. Every goroutine returns nil so that one
// failure never cancels its siblings.
func (r *run) gather(ctx context.Context) {
	cfg := r.opts.Config
	eg, egCtx := errgroup.WithContext(ctx)

	if r.enabled[AnalysisComplexity] {
		eg.Go(func() error {
			var memo complexity.Memo
			if r.opts.Cache != nil {
				memo = r.opts.Cache
			}
			files, err := complexity.AnalyzeFilesMemo(egCtx, r.files, r.opts.Workers, memo)
			if err != nil {
				r.fail(AnalysisComplexity, err)
				return nil
			}
			rep := complexity.Aggregate(files, cfg.Complexity)
			r.set(func(res *Results) { res.Complexity = rep })
			return nil
		})
	}

	if r.enabled[AnalysisSATD] {
		eg.Go(func() error {
			res, err := satd.AnalyzeFiles(egCtx, r.files, satd.Options{Workers: r.opts.Workers})
			if err != nil {
				r.fail(AnalysisSATD, err)
				return nil
			}
			r.set(func(out *Results) { out.SATD = res })
			return nil
		})
	}

	if r.enabled[AnalysisTDG] {
		eg.Go(func() error {
			a, err := r.calc.Analyze(egCtx, r.files, r.opts.Workers)
			if err != nil {
				r.fail(AnalysisTDG, err)
				return nil
			}
			r.set(func(res *Results) { res.TDG = a })
			return nil
		})
	}

	if r.enabled[AnalysisMakefile] {
		if path := FindMakefile(r.root); path != "" {
			eg.Go(func() error {
				res, err := makefile.NewLinter().Lint(path)
				if err != nil {
					r.fail(AnalysisMakefile, err)
					return nil
				}
				res.Path = filepath.Base(path)
				r.set(func(out *Results) { out.Makefile = res })
				return nil
			})
		}
	}

	structural := r.enabled[AnalysisDAG] || r.enabled[AnalysisDeadCode] ||
		r.enabled[AnalysisDuplicates] || r.enabled[AnalysisDefects]
	if r.enabled[AnalysisChurn] || r.enabled[AnalysisDefects] || structural {
		eg.Go(func() error {
			r.history(egCtx, structural)
			return nil
		})
	}

	_ = eg.Wait()
}

// history computes churn and, when structural analyses are selected, the
// parse-dependent sections. Defect prediction consumes both, so they share a
// goroutine and a single parse of the project.
func (r *run) history(ctx context.Context, structural bool) {
	cfg := r.opts.Config

	var hist *churn.Analysis
	if r.enabled[AnalysisChurn] || r.enabled[AnalysisDefects] {
		a, err := churn.Analyze(ctx, r.root, cfg.Churn.PeriodDays)
		switch {
		case err != nil && r.enabled[AnalysisChurn]:
			r.fail(AnalysisChurn, err)
		case err != nil:
			logging.ContextDebug("churn unavailable for defects: %v", err)
		default:
			hist = a
			if r.enabled[AnalysisChurn] {
				r.set(func(res *Results) { res.Churn = a })
			}
		}
	}
	if !structural {
		return
	}

	units, err := lang.ParseFiles(ctx, r.files, r.opts.Workers)
	if err != nil {
		for _, a := range []Analysis{AnalysisDAG, AnalysisDeadCode, AnalysisDuplicates, AnalysisDefects} {
			if r.enabled[a] {
				r.fail(a, fmt.Errorf("parse failed: %w", err))
			}
		}
		return
	}
	defer lang.CloseAll(units)
	graph := dag.Build(units)

	if r.enabled[AnalysisDAG] {
		res := dag.FromGraph(graph, dag.Options{Mode: dag.ModeImportGraph, MaxNodes: 50, ShowComplexity: true})
		r.set(func(out *Results) { out.DAG = res })
	}
	if r.enabled[AnalysisDeadCode] {
		rep := deadcode.Detect(units, deadcode.Options{Top: 20})
		r.set(func(out *Results) { out.DeadCode = rep })
	}

	var dups *duplicates.Report
	if r.enabled[AnalysisDuplicates] || r.enabled[AnalysisDefects] {
		d, err := duplicates.NewDetector(cfg.Duplicates)
		if err != nil {
			if r.enabled[AnalysisDuplicates] {
				r.fail(AnalysisDuplicates, err)
			}
		} else {
			var frags []duplicates.Fragment
			for _, u := range units {
				frags = append(frags, d.FragmentsOf(u)...)
			}
			dups = d.Detect(frags)
			if r.enabled[AnalysisDuplicates] {
				r.set(func(out *Results) { out.Duplicates = dups })
			}
		}
	}

	if r.enabled[AnalysisDefects] {
		in := defect.Inputs{Units: units, Churn: hist, Duplicates: dups, Graph: graph}
		a := defect.NewCalculator(defect.DefaultWeights()).ScoreAll(defect.Collect(in))
		r.set(func(out *Results) { out.Defects = a })
	}
}
