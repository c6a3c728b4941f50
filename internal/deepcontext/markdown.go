package deepcontext

import (
	"fmt"
	"sort"
	"strings"

	"pmat/internal/output"
)

// FormatMarkdown renders the report. Sections appear only for analyses that
// produced a result.
func FormatMarkdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Deep Context Analysis Report\n\n")
	fmt.Fprintf(&b, "**Report ID:** %s\n", r.ID)
	fmt.Fprintf(&b, "**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Project:** %s\n", r.Metadata.ProjectRoot)
	fmt.Fprintf(&b, "**Tool Version:** %s\n", r.Metadata.ToolVersion)
	fmt.Fprintf(&b, "**Analysis Duration:** %s\n\n", output.Duration(r.Metadata.Duration()))

	writeStructure(&b, r)
	writeScorecard(&b, r.Scorecard)

	a := r.Analyses
	if a.Complexity != nil {
		b.WriteString("## Complexity Hotspots\n\n")
		s := a.Complexity.Summary
		fmt.Fprintf(&b, "- Total functions: %d\n- Median cyclomatic: %.1f\n- Max cyclomatic: %d\n- Violations: %d errors, %d warnings\n\n",
			s.TotalFunctions, s.MedianCyclomatic, s.MaxCyclomatic, a.Complexity.ErrorCount(), a.Complexity.WarningCount())
		if len(a.Complexity.Hotspots) > 0 {
			b.WriteString("| File | Function | Complexity |\n|------|----------|------------|\n")
			for i, h := range a.Complexity.Hotspots {
				if i == 10 {
					break
				}
				fmt.Fprintf(&b, "| %s:%d | %s | %d |\n", h.File, h.Line, h.Function, h.Complexity)
			}
			b.WriteString("\n")
		}
	}

	if a.Churn != nil {
		b.WriteString("## Code Churn Analysis\n\n")
		fmt.Fprintf(&b, "- Period: %d days\n- Total commits: %d\n- Files changed: %d\n",
			a.Churn.PeriodDays, a.Churn.Summary.TotalCommits, a.Churn.Summary.TotalFilesChanged)
		if len(a.Churn.Summary.HotspotFiles) > 0 {
			fmt.Fprintf(&b, "- Hotspots: %s\n", strings.Join(headN(a.Churn.Summary.HotspotFiles, 5), ", "))
		}
		b.WriteString("\n")
	}

	if a.SATD != nil {
		b.WriteString("## Self-Admitted Technical Debt\n\n")
		fmt.Fprintf(&b, "- Items: %d in %d files\n", len(a.SATD.Items), a.SATD.FilesWithDebt)
		for _, sev := range sortedKeys(a.SATD.Summary.BySeverity) {
			fmt.Fprintf(&b, "- %s: %d\n", sev, a.SATD.Summary.BySeverity[sev])
		}
		b.WriteString("\n")
	}

	if a.TDG != nil {
		s := a.TDG.Summary
		b.WriteString("## Technical Debt Gradient\n\n")
		fmt.Fprintf(&b, "- Average TDG: %.2f (p95 %.2f)\n- Critical files: %d\n- Warning files: %d\n\n",
			s.AverageTDG, s.P95TDG, s.CriticalFiles, s.WarningFiles)
	}

	if a.DeadCode != nil {
		s := a.DeadCode.Summary
		b.WriteString("## Dead Code Analysis\n\n")
		fmt.Fprintf(&b, "- Dead lines: %d of %d (%.1f%%)\n- Files with dead code: %d\n\n",
			s.TotalDeadCodeLines, s.TotalLines, s.PercentageDead, s.FilesWithDeadCode)
	}

	if a.Duplicates != nil {
		s := a.Duplicates.Summary
		b.WriteString("## Duplicate Code\n\n")
		fmt.Fprintf(&b, "- Clone groups: %d\n- Duplicated lines: %d (%.1f%%)\n\n",
			s.CloneGroups, s.DuplicateLines, s.DuplicationRatio*100)
	}

	if a.DAG != nil {
		b.WriteString("## Dependency Graph\n\n")
		fmt.Fprintf(&b, "- Nodes: %d\n- Edges: %d\n- Cycles: %d\n\n", a.DAG.TotalNodes, a.DAG.TotalEdges, len(a.DAG.Cycles))
		if a.DAG.TotalNodes > 0 {
			fmt.Fprintf(&b, "```mermaid\n%s```\n\n", a.DAG.Mermaid)
		}
	}

	if a.Defects != nil {
		b.WriteString("## Defect Probability Analysis\n\n")
		fmt.Fprintf(&b, "- Files scored: %d\n- High risk: %d\n- Medium risk: %d\n- Average probability: %.2f\n\n",
			a.Defects.Summary.TotalFiles, len(a.Defects.Summary.HighRiskFiles),
			len(a.Defects.Summary.MediumRiskFiles), a.Defects.Summary.AverageProbability)
	}

	if a.Makefile != nil {
		b.WriteString("## Build System\n\n")
		fmt.Fprintf(&b, "- %s: %d violations, quality score %.0f%%\n\n",
			a.Makefile.Path, len(a.Makefile.Violations), a.Makefile.QualityScore*100)
	}

	if len(r.Errors) > 0 {
		b.WriteString("## Analysis Errors\n\n")
		for _, f := range r.Errors {
			fmt.Fprintf(&b, "- %s: %s\n", f.Analysis, f.Error)
		}
		b.WriteString("\n")
	}

	writeRecommendations(&b, r.Recommendations)
	return b.String()
}

func writeStructure(b *strings.Builder, r *Report) {
	o := r.Overview
	b.WriteString("## Project Structure\n\n")
	fmt.Fprintf(b, "- Total Files: %s (%d tests)\n", output.Count(o.TotalFiles), o.TestFiles)
	fmt.Fprintf(b, "- Total Size: %s\n", output.Bytes(o.TotalBytes))
	if len(o.Languages) > 0 {
		var parts []string
		for _, lang := range sortedKeys(o.Languages) {
			parts = append(parts, fmt.Sprintf("%s (%d)", lang, o.Languages[lang]))
		}
		fmt.Fprintf(b, "- Languages: %s\n", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

func writeScorecard(b *strings.Builder, s Scorecard) {
	b.WriteString("## Quality Scorecard\n\n")
	fmt.Fprintf(b, "- **Overall Health**: %s (%.1f/100)\n", s.Health(), s.OverallHealth)
	fmt.Fprintf(b, "- **Maintainability Index**: %.1f\n", s.MaintainabilityIndex)
	fmt.Fprintf(b, "- **Complexity Score**: %.1f\n", s.ComplexityScore)
	fmt.Fprintf(b, "- **Modularity Score**: %.1f\n", s.ModularityScore)
	fmt.Fprintf(b, "- **Hygiene Score**: %.1f\n", s.HygieneScore)
	fmt.Fprintf(b, "- **Refactoring Time**: %.1f hours estimated\n\n", s.TechnicalDebtHours)
}

func writeRecommendations(b *strings.Builder, recs []Recommendation) {
	if len(recs) == 0 {
		return
	}
	b.WriteString("## Prioritized Recommendations\n\n")
	for i, rec := range recs {
		fmt.Fprintf(b, "### %s %d %s\n", rec.Priority.Emoji(), i+1, rec.Title)
		fmt.Fprintf(b, "**Description:** %s\n", rec.Description)
		fmt.Fprintf(b, "**Effort:** %.1f hours\n", rec.EffortHours)
		fmt.Fprintf(b, "**Impact:** %s\n", rec.Impact)
		if len(rec.Prerequisites) > 0 {
			b.WriteString("**Prerequisites:**\n")
			for _, p := range rec.Prerequisites {
				fmt.Fprintf(b, "- %s\n", p)
			}
		}
		b.WriteString("\n")
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func headN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
