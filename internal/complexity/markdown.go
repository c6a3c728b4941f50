package complexity

import (
	"fmt"
	"sort"
	"strings"
)

// FormatSummary renders the report as markdown.
func FormatSummary(r *Report) string {
	var b strings.Builder

	b.WriteString("# Complexity Analysis Summary\n\n")
	fmt.Fprintf(&b, "**Files analyzed**: %d\n", r.Summary.TotalFiles)
	fmt.Fprintf(&b, "**Total functions**: %d\n\n", r.Summary.TotalFunctions)

	b.WriteString("## Complexity Metrics\n\n")
	fmt.Fprintf(&b, "- **Median Cyclomatic**: %.1f\n", r.Summary.MedianCyclomatic)
	fmt.Fprintf(&b, "- **Median Cognitive**: %.1f\n", r.Summary.MedianCognitive)
	fmt.Fprintf(&b, "- **Max Cyclomatic**: %d\n", r.Summary.MaxCyclomatic)
	fmt.Fprintf(&b, "- **Max Cognitive**: %d\n", r.Summary.MaxCognitive)
	fmt.Fprintf(&b, "- **90th Percentile Cyclomatic**: %d\n", r.Summary.P90Cyclomatic)
	fmt.Fprintf(&b, "- **90th Percentile Cognitive**: %d\n\n", r.Summary.P90Cognitive)

	if r.Summary.TechnicalDebtHours > 0 {
		fmt.Fprintf(&b, "**Estimated Refactoring Time**: %.1f hours\n\n", r.Summary.TechnicalDebtHours)
	}

	errs, warns := r.ErrorCount(), r.WarningCount()
	if errs > 0 || warns > 0 {
		b.WriteString("## Issues Found\n\n")
		if errs > 0 {
			fmt.Fprintf(&b, "**Errors**: %d\n", errs)
		}
		if warns > 0 {
			fmt.Fprintf(&b, "**Warnings**: %d\n", warns)
		}
		b.WriteString("\n")
	}

	if len(r.Hotspots) > 0 {
		b.WriteString("## Top Complexity Hotspots\n\n")
		for i, h := range r.Hotspots {
			fmt.Fprintf(&b, "%d. `%s` - cyclomatic complexity: %d\n", i+1, h.Function, h.Complexity)
			fmt.Fprintf(&b, "   %s:%d\n", h.File, h.Line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatFull renders the summary followed by per-file violations.
func FormatFull(r *Report) string {
	var b strings.Builder
	b.WriteString(FormatSummary(r))

	byFile := make(map[string][]Violation)
	for _, v := range r.Violations {
		byFile[v.File] = append(byFile[v.File], v)
	}
	if len(byFile) == 0 {
		return b.String()
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	b.WriteString("## Detailed Violations\n\n")
	for _, f := range files {
		fmt.Fprintf(&b, "### %s\n\n", f)
		for _, v := range byFile[f] {
			fmt.Fprintf(&b, "- **%d:%s** %s [%s] - %s\n", v.Line, v.Function, strings.ToUpper(string(v.Severity)), v.Rule, v.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}
