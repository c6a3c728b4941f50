package deepcontext

import (
	"fmt"
	"sort"
	"strings"

	"pmat/internal/complexity"
	"pmat/internal/config"
	"pmat/internal/defect"
	"pmat/internal/makefile"
	"pmat/internal/satd"
	"pmat/internal/tdg"
)

// Priority orders recommendations.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 4,
	PriorityHigh:     3,
	PriorityMedium:   2,
	PriorityLow:      1,
}

// Rank is 4 for Critical down to 1 for Low.
func (p Priority) Rank() int { return priorityRank[p] }

// Emoji marks a priority in markdown.
func (p Priority) Emoji() string {
	switch p {
	case PriorityCritical:
		return "🔴"
	case PriorityHigh:
		return "🟡"
	case PriorityMedium:
		return "🔵"
	}
	return "⚪"
}

// Impact is the expected effect of acting on a recommendation.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// Recommendation is one prioritized action.
type Recommendation struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Priority      Priority `json:"priority"`
	EffortHours   float64  `json:"estimated_effort_hours"`
	Impact        Impact   `json:"impact"`
	Prerequisites []string `json:"prerequisites"`
	Source        Analysis `json:"source"`
}

// Per-source cap on file-level recommendations.
const perSource = 3

// Recommend derives actions from the analysis results, most urgent first.
// calc may be nil, in which case TDG findings carry no component detail.
func Recommend(res *Results, calc *tdg.Calculator, th config.ComplexityConfig) []Recommendation {
	var out []Recommendation
	out = append(out, fromComplexity(res.Complexity, th)...)
	out = append(out, fromTDG(res.TDG, calc)...)
	out = append(out, fromDefects(res.Defects)...)

	if res.DAG != nil && len(res.DAG.Cycles) > 0 {
		out = append(out, Recommendation{
			Title: "Break dependency cycles",
			Description: fmt.Sprintf("%d import cycle(s) found; the first involves %s",
				len(res.DAG.Cycles), strings.Join(res.DAG.Cycles[0], " -> ")),
			Priority:      PriorityHigh,
			EffortHours:   float64(2 * len(res.DAG.Cycles)),
			Impact:        ImpactHigh,
			Prerequisites: []string{"Identify the shared abstraction each cycle depends on"},
			Source:        AnalysisDAG,
		})
	}

	if res.DeadCode != nil && res.DeadCode.Summary.TotalDeadCodeLines > 0 {
		s := res.DeadCode.Summary
		out = append(out, Recommendation{
			Title: "Remove dead code",
			Description: fmt.Sprintf("%d unreachable lines across %d files (%.1f%% of the code base)",
				s.TotalDeadCodeLines, s.FilesWithDeadCode, s.PercentageDead),
			Priority:      PriorityMedium,
			EffortHours:   float64(s.TotalDeadCodeLines) / 50,
			Impact:        ImpactMedium,
			Prerequisites: []string{"Confirm no reflection or external callers reach the removed code"},
			Source:        AnalysisDeadCode,
		})
	}

	if res.Duplicates != nil && res.Duplicates.Summary.CloneGroups > 0 {
		s := res.Duplicates.Summary
		rec := Recommendation{
			Title: "Extract duplicated code",
			Description: fmt.Sprintf("%d clone groups cover %d lines (%.1f%% duplication)",
				s.CloneGroups, s.DuplicateLines, s.DuplicationRatio*100),
			Priority:      PriorityMedium,
			EffortHours:   float64(s.DuplicateLines) / 40,
			Impact:        ImpactMedium,
			Prerequisites: []string{"Ensure affected files have tests"},
			Source:        AnalysisDuplicates,
		}
		if s.DuplicationRatio > 0.2 {
			rec.Priority, rec.Impact = PriorityHigh, ImpactHigh
		}
		out = append(out, rec)
	}

	if rec, ok := fromSATD(res.SATD); ok {
		out = append(out, rec)
	}
	if rec, ok := fromMakefile(res.Makefile); ok {
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	for i := range out {
		out[i].EffortHours = round1(out[i].EffortHours)
		if out[i].Prerequisites == nil {
			out[i].Prerequisites = []string{}
		}
	}
	return out
}

func fromComplexity(r *complexity.Report, th config.ComplexityConfig) []Recommendation {
	if r == nil {
		return nil
	}
	var out []Recommendation
	seen := map[string]bool{}
	for _, v := range r.Violations {
		if v.Severity != complexity.SeverityError || len(out) == perSource {
			continue
		}
		key := v.File + "\x00" + v.Function
		if seen[key] {
			continue
		}
		seen[key] = true
		prio := PriorityHigh
		if v.Rule == "cyclomatic-complexity" && th.CyclomaticError > 0 && v.Value >= 2*th.CyclomaticError {
			prio = PriorityCritical
		}
		name := v.Function
		if name == "" {
			name = v.File
		}
		out = append(out, Recommendation{
			Title:       fmt.Sprintf("Reduce complexity of %s", name),
			Description: fmt.Sprintf("%s:%d %s", v.File, v.Line, v.Message),
			Priority:    prio,
			EffortHours: float64(v.Value-v.Threshold)*0.5 + 1,
			Impact:      ImpactHigh,
			Source:      AnalysisComplexity,
		})
	}
	return out
}

func fromTDG(a *tdg.Analysis, calc *tdg.Calculator) []Recommendation {
	if a == nil {
		return nil
	}
	ranked := append([]tdg.Score(nil), a.Scores...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })

	var out []Recommendation
	for _, s := range ranked {
		if s.Severity != tdg.SeverityCritical || len(out) == perSource {
			break
		}
		desc := fmt.Sprintf("TDG %.2f", s.Value)
		var prereq []string
		if calc != nil {
			desc = fmt.Sprintf("TDG %.2f, driven by %s", s.Value, calc.PrimaryFactor(s.Components))
			for _, r := range calc.Recommend(s) {
				prereq = append(prereq, r.Action)
			}
		}
		out = append(out, Recommendation{
			Title:         fmt.Sprintf("Pay down technical debt in %s", s.Path),
			Description:   desc,
			Priority:      PriorityCritical,
			EffortHours:   tdg.EstimatedHours(s.Value),
			Impact:        ImpactHigh,
			Prerequisites: prereq,
			Source:        AnalysisTDG,
		})
	}
	return out
}

func fromDefects(a *defect.Analysis) []Recommendation {
	if a == nil {
		return nil
	}
	var out []Recommendation
	for _, s := range a.Top(perSource) {
		if s.Risk != defect.RiskHigh {
			break
		}
		desc := fmt.Sprintf("Defect probability %.0f%%", s.Probability*100)
		if len(s.Recommendations) > 0 {
			desc += ": " + strings.Join(s.Recommendations, "; ")
		}
		out = append(out, Recommendation{
			Title:       fmt.Sprintf("Harden %s", s.Path),
			Description: desc,
			Priority:    PriorityHigh,
			EffortHours: 4,
			Impact:      ImpactHigh,
			Source:      AnalysisDefects,
		})
	}
	return out
}

func fromSATD(r *satd.Result) (Recommendation, bool) {
	if r == nil || len(r.Items) == 0 {
		return Recommendation{}, false
	}
	critical := r.Summary.BySeverity[string(satd.SeverityCritical)]
	high := r.Summary.BySeverity[string(satd.SeverityHigh)]
	rec := Recommendation{
		Title: "Resolve self-admitted technical debt",
		Description: fmt.Sprintf("%d debt comments in %d files (%d critical, %d high)",
			len(r.Items), r.FilesWithDebt, critical, high),
		Priority:    PriorityLow,
		EffortHours: float64(len(r.Items)) * 0.5,
		Impact:      ImpactLow,
		Source:      AnalysisSATD,
	}
	switch {
	case critical > 0:
		rec.Priority, rec.Impact = PriorityHigh, ImpactHigh
	case high > 0:
		rec.Priority, rec.Impact = PriorityMedium, ImpactMedium
	}
	return rec, true
}

func fromMakefile(r *makefile.Result) (Recommendation, bool) {
	if r == nil || len(r.Violations) == 0 {
		return Recommendation{}, false
	}
	rec := Recommendation{
		Title: fmt.Sprintf("Fix %s lint findings", r.Path),
		Description: fmt.Sprintf("%d violations, quality score %.0f%%",
			len(r.Violations), r.QualityScore*100),
		Priority:    PriorityLow,
		EffortHours: float64(len(r.Violations)) * 0.25,
		Impact:      ImpactLow,
		Source:      AnalysisMakefile,
	}
	if r.HasErrors() {
		rec.Priority, rec.Impact = PriorityHigh, ImpactMedium
	}
	return rec, true
}
