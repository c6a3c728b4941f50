package tdg

import (
	"fmt"
	"strings"
)

// FormatMarkdown renders the project summary and hotspots.
func FormatMarkdown(a *Analysis) string {
	var b strings.Builder
	s := a.Summary
	b.WriteString("# Technical Debt Gradient Analysis\n\n")
	fmt.Fprintf(&b, "**Files analyzed**: %d\n", s.TotalFiles)
	fmt.Fprintf(&b, "**Average TDG**: %.2f\n", s.AverageTDG)
	fmt.Fprintf(&b, "**Median TDG**: %.2f\n", s.MedianTDG)
	fmt.Fprintf(&b, "**95th percentile**: %.2f\n", s.P95TDG)
	fmt.Fprintf(&b, "**99th percentile**: %.2f\n", s.P99TDG)
	fmt.Fprintf(&b, "**Critical files**: %d\n", s.CriticalFiles)
	fmt.Fprintf(&b, "**Warning files**: %d\n", s.WarningFiles)
	fmt.Fprintf(&b, "**Estimated debt**: %.1f hours\n\n", s.EstimatedDebtHours)

	if len(s.Hotspots) > 0 {
		b.WriteString("## Hotspots\n\n")
		b.WriteString("| File | TDG | Primary Factor | Est. Hours |\n")
		b.WriteString("|------|-----|----------------|------------|\n")
		for _, h := range s.Hotspots {
			fmt.Fprintf(&b, "| %s | %.2f | %s | %.1f |\n", h.Path, h.Score, h.PrimaryFactor, h.EstimatedHours)
		}
		b.WriteString("\n")
	}
	return b.String()
}
