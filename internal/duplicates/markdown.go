package duplicates

import (
	"fmt"
	"strings"
)

// FormatMarkdown renders the report summary, groups and hotspots.
func FormatMarkdown(r *Report) string {
	var b strings.Builder
	s := r.Summary

	b.WriteString("# Duplicate Code Analysis\n\n")
	fmt.Fprintf(&b, "**Files with fragments**: %d\n", s.TotalFiles)
	fmt.Fprintf(&b, "**Fragments**: %d\n", s.TotalFragments)
	fmt.Fprintf(&b, "**Clone groups**: %d\n", s.CloneGroups)
	fmt.Fprintf(&b, "**Duplicate lines**: %d of %d (%.1f%%)\n\n", s.DuplicateLines, s.TotalLines, s.DuplicationRatio*100)

	if len(r.Groups) > 0 {
		b.WriteString("## Clone Groups\n\n")
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "### Group %d (%d fragments, %d lines, similarity %.2f)\n\n",
				g.ID, len(g.Fragments), g.TotalLines, g.AverageSimilarity)
			for _, in := range g.Fragments {
				fmt.Fprintf(&b, "- `%s:%d-%d`\n", in.File, in.StartLine, in.EndLine)
			}
			b.WriteString("\n")
		}
	}

	if len(r.Hotspots) > 0 {
		b.WriteString("## Hotspots\n\n")
		b.WriteString("| File | Duplicate Lines | Instances | Severity |\n")
		b.WriteString("|------|-----------------|-----------|----------|\n")
		for _, h := range r.Hotspots {
			fmt.Fprintf(&b, "| %s | %d | %d | %.2f |\n", h.File, h.DuplicateLines, h.CloneGroups, h.Severity)
		}
		b.WriteString("\n")
	}
	return b.String()
}
