package defect

import (
	"bytes"
	"context"

	"pmat/internal/churn"
	"pmat/internal/complexity"
	"pmat/internal/config"
	"pmat/internal/dag"
	"pmat/internal/discovery"
	"pmat/internal/duplicates"
	"pmat/internal/lang"
	"pmat/internal/logging"
)

// Options controls a project run.
type Options struct {
	Workers    int
	PeriodDays int
	Duplicates config.DuplicatesConfig
	// MinConfidence drops scores below it; zero keeps all.
	MinConfidence float64
	HighRiskOnly  bool
}

// Inputs are already computed analyses, keyed by relative path.
type Inputs struct {
	Units      []*lang.Unit
	Churn      *churn.Analysis
	Duplicates *duplicates.Report
	Graph      *dag.Graph
}

// Collect derives per-file metrics. Complexity is the highest function
// cyclomatic value; coupling counts import edges between project files.
func Collect(in Inputs) []Metrics {
	churnByPath := map[string]churn.FileMetrics{}
	if in.Churn != nil {
		churnByPath = in.Churn.ByPath()
	}
	dupLines := map[string]int{}
	if in.Duplicates != nil {
		dupLines = in.Duplicates.LinesByFile()
	}
	afferent, efferent := map[string]int{}, map[string]int{}
	if in.Graph != nil {
		afferent, efferent = in.Graph.FilterByEdgeType(dag.EdgeImports).Degrees()
	}

	out := make([]Metrics, 0, len(in.Units))
	for _, u := range in.Units {
		loc := bytes.Count(u.Source, []byte("\n"))
		if len(u.Source) > 0 && u.Source[len(u.Source)-1] != '\n' {
			loc++
		}
		m := Metrics{
			Path:             u.Path,
			ChurnScore:       churnByPath[u.Path].Score,
			AfferentCoupling: float64(afferent[u.Path]),
			EfferentCoupling: float64(efferent[u.Path]),
			LinesOfCode:      loc,
		}
		for _, fc := range complexity.AnalyzeUnit(u).Functions {
			m.Cyclomatic = max(m.Cyclomatic, fc.Metrics.Cyclomatic)
			m.Cognitive = max(m.Cognitive, fc.Metrics.Cognitive)
		}
		m.Complexity = float64(m.Cyclomatic)
		if loc > 0 {
			m.DuplicateRatio = float64(dupLines[u.Path]) / float64(loc)
		}
		out = append(out, m)
	}
	return out
}

// Analyze parses files, gathers churn, duplication and coupling, and scores
// every file. A missing git repository leaves churn at zero.
func Analyze(ctx context.Context, root string, files []discovery.File, opts Options) (*Analysis, error) {
	units, err := lang.ParseFiles(ctx, files, opts.Workers)
	if err != nil {
		return nil, err
	}
	defer lang.CloseAll(units)

	in := Inputs{Units: units, Graph: dag.Build(units)}
	if in.Churn, err = churn.Analyze(ctx, root, opts.PeriodDays); err != nil {
		logging.AnalysisWarn("defect: churn unavailable: %v", err)
		in.Churn = nil
	}
	if d, err := duplicates.NewDetector(opts.Duplicates); err == nil {
		var frags []duplicates.Fragment
		for _, u := range units {
			frags = append(frags, d.FragmentsOf(u)...)
		}
		in.Duplicates = d.Detect(frags)
	} else {
		logging.AnalysisWarn("defect: duplicates disabled: %v", err)
	}

	a := NewCalculator(DefaultWeights()).ScoreAll(Collect(in))
	a.Filter(opts.MinConfidence, opts.HighRiskOnly)
	logging.Analysis("defect: %d files, %d high risk", a.Summary.TotalFiles, len(a.Summary.HighRiskFiles))
	return a, nil
}

// Filter drops low-confidence scores and, when highOnly is set, anything
// not high risk. The summary keeps describing the whole project.
func (a *Analysis) Filter(minConfidence float64, highOnly bool) {
	kept := a.Scores[:0]
	for _, s := range a.Scores {
		if s.Confidence < minConfidence {
			continue
		}
		if highOnly && s.Risk != RiskHigh {
			continue
		}
		kept = append(kept, s)
	}
	a.Scores = kept
}
