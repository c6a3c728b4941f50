package deadcode

import (
	"fmt"
	"sort"
	"strings"
)

// FormatMarkdown renders the summary and ranked files.
func FormatMarkdown(r *Report) string {
	var b strings.Builder
	s := r.Summary
	b.WriteString("# Dead Code Analysis\n\n")
	fmt.Fprintf(&b, "**Files analyzed**: %d\n", s.FilesAnalyzed)
	fmt.Fprintf(&b, "**Files with dead code**: %d\n", s.FilesWithDeadCode)
	fmt.Fprintf(&b, "**Dead lines**: %d (%.1f%%)\n", s.TotalDeadCodeLines, s.PercentageDead)
	fmt.Fprintf(&b, "**Confidence**: %.0f%%\n\n", s.ConfidenceLevel*100)

	if len(s.DeadByType) > 0 {
		kinds := make([]string, 0, len(s.DeadByType))
		for k := range s.DeadByType {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		b.WriteString("## By Type\n\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "- **%s**: %d\n", k, s.DeadByType[Kind(k)])
		}
		b.WriteString("\n")
	}

	for _, f := range r.Files {
		fmt.Fprintf(&b, "## %s (%d dead lines, %.1f%%)\n\n", f.Path, f.DeadLines, f.Percentage)
		for _, it := range f.Items {
			fmt.Fprintf(&b, "- `%s` %s lines %d-%d (confidence %.2f): %s\n",
				it.Name, it.Kind, it.StartLine, it.EndLine, it.Confidence, it.Reason)
		}
		b.WriteString("\n")
	}
	return b.String()
}
