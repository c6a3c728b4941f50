// Package satd finds self-admitted technical debt in source comments.
package satd

import "regexp"

// Category groups debt by what it admits to.
type Category string

const (
	CategoryDesign      Category = "Design"
	CategoryDefect      Category = "Defect"
	CategoryRequirement Category = "Requirement"
	CategoryTest        Category = "Test"
	CategoryPerformance Category = "Performance"
	CategorySecurity    Category = "Security"
)

// Severity of a debt item, ordered Low < Medium < High < Critical.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank is 1 for Low through 4 for Critical.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Escalate raises severity one level, saturating at Critical.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Reduce lowers severity one level, saturating at Low.
func (s Severity) Reduce() Severity {
	switch s {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type pattern struct {
	re          *regexp.Regexp
	category    Category
	severity    Severity
	description string
}

// patterns are tried in order; the first match classifies the comment.
var patterns = []pattern{
	{regexp.MustCompile(`(?i)\b(hack|kludge|smell)\b`), CategoryDesign, SeverityMedium, "Architectural compromise"},
	{regexp.MustCompile(`(?i)\b(fixme|broken|bug)\b`), CategoryDefect, SeverityHigh, "Known defect"},
	{regexp.MustCompile(`(?i)\btodo\b`), CategoryRequirement, SeverityLow, "Missing feature"},
	{regexp.MustCompile(`(?i)\b(security|vuln|cve)\b`), CategorySecurity, SeverityCritical, "Security concern"},
	{regexp.MustCompile(`(?i)\bperformance\s+(issue|problem)\b`), CategoryPerformance, SeverityMedium, "Performance issue"},
	{regexp.MustCompile(`(?i)\btest.*\b(disabled|skipped|failing)\b`), CategoryTest, SeverityMedium, "Test debt"},
	{regexp.MustCompile(`(?i)\btechnical\s+debt\b`), CategoryDesign, SeverityMedium, "Explicit technical debt"},
	{regexp.MustCompile(`(?i)\bcode\s+smell\b`), CategoryDesign, SeverityMedium, "Code smell"},
	{regexp.MustCompile(`(?i)\b(workaround|temp|temporary)\b`), CategoryDesign, SeverityLow, "Temporary solution"},
	{regexp.MustCompile(`(?i)\b(optimize|slow)\b`), CategoryPerformance, SeverityLow, "Performance optimization needed"},
}

// Classify returns the category and severity of the first matching pattern.
func Classify(text string) (Category, Severity, bool) {
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return p.category, p.severity, true
		}
	}
	return "", "", false
}
