package satd

import (
	"fmt"
	"sort"
	"strings"
)

// FormatMarkdown renders a scan with items grouped by severity.
func FormatMarkdown(r *Result) string {
	var b strings.Builder
	b.WriteString("# Self-Admitted Technical Debt Report\n\n")
	fmt.Fprintf(&b, "**Files analyzed**: %d\n", r.TotalFilesAnalyzed)
	fmt.Fprintf(&b, "**Files with debt**: %d\n", r.FilesWithDebt)
	fmt.Fprintf(&b, "**Total items**: %d\n\n", r.Summary.TotalItems)

	if len(r.Summary.ByCategory) > 0 {
		b.WriteString("## By Category\n\n")
		cats := make([]string, 0, len(r.Summary.ByCategory))
		for c := range r.Summary.ByCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(&b, "- **%s**: %d\n", c, r.Summary.ByCategory[c])
		}
		b.WriteString("\n")
	}

	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		var rows []Item
		for _, it := range r.Items {
			if it.Severity == sev {
				rows = append(rows, it)
			}
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", sev, len(rows))
		for _, it := range rows {
			fmt.Fprintf(&b, "- `%s:%d` [%s] %s\n", it.File, it.Line, it.Category, it.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}
