package defect

import (
	"fmt"
	"strings"
)

// FormatSummary renders the risk distribution and top files.
func FormatSummary(a *Analysis) string {
	var b strings.Builder
	b.WriteString("# Defect Prediction Summary\n\n")
	fmt.Fprintf(&b, "**Total files analyzed**: %d\n", a.Summary.TotalFiles)
	fmt.Fprintf(&b, "**Average probability**: %.1f%%\n\n", a.Summary.AverageProbability*100)

	b.WriteString("## Risk Distribution\n\n")
	low := a.Summary.TotalFiles - len(a.Summary.HighRiskFiles) - len(a.Summary.MediumRiskFiles)
	fmt.Fprintf(&b, "- High Risk (>=70%%): %d files\n", len(a.Summary.HighRiskFiles))
	fmt.Fprintf(&b, "- Medium Risk (30-70%%): %d files\n", len(a.Summary.MediumRiskFiles))
	fmt.Fprintf(&b, "- Low Risk (<30%%): %d files\n\n", low)

	top := a.Top(10)
	if len(top) == 0 {
		return b.String()
	}
	b.WriteString("## Top Risk Files\n\n")
	for i, s := range top {
		fmt.Fprintf(&b, "%d. `%s` - %.1f%% (%s risk, confidence %.0f%%)\n",
			i+1, s.Path, s.Probability*100, s.Risk, s.Confidence*100)
		for _, r := range s.Recommendations {
			fmt.Fprintf(&b, "   - %s\n", r)
		}
	}
	b.WriteString("\n")
	return b.String()
}
