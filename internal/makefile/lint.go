package makefile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"pmat/internal/logging"
)

// Result is the outcome of linting one Makefile.
type Result struct {
	Path         string      `json:"path"`
	Violations   []Violation `json:"violations"`
	QualityScore float64     `json:"quality_score"`
}

// HasErrors reports whether any violation is an error.
func (r *Result) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount counts error-level violations.
func (r *Result) ErrorCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			n++
		}
	}
	return n
}

// MaxSeverity returns the worst severity found, or "" when clean.
func (r *Result) MaxSeverity() Severity {
	var worst Severity
	for _, v := range r.Violations {
		if worst == "" || v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
	}
	return worst
}

// Linter runs a rule set.
type Linter struct {
	rules []Checker
}

// NewLinter returns a linter with the default rules minus any disabled IDs.
func NewLinter(disabled ...string) *Linter {
	off := map[string]bool{}
	for _, id := range disabled {
		off[id] = true
	}
	l := &Linter{}
	for _, r := range DefaultRules() {
		if !off[r.ID()] {
			l.rules = append(l.rules, r)
		}
	}
	return l
}

// Rules lists the enabled rule IDs.
func (l *Linter) Rules() []string {
	out := make([]string, len(l.rules))
	for i, r := range l.rules {
		out[i] = r.ID()
	}
	return out
}

// Check runs every rule. Errors sort first, then by line.
func (l *Linter) Check(m *Makefile) []Violation {
	out := []Violation{}
	for _, r := range l.rules {
		out = append(out, r.Check(m)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].Severity == SeverityError, out[j].Severity == SeverityError
		if ei != ej {
			return ei
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// LintContent parses and checks content. Parse errors abort the run.
func (l *Linter) LintContent(path, content string) (*Result, error) {
	m, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	vs := l.Check(m)
	logging.MakefileDebug("%s: %d targets, %d violations", path, m.Metadata.TargetCount, len(vs))
	return &Result{Path: path, Violations: vs, QualityScore: QualityScore(vs)}, nil
}

// Lint reads and checks the Makefile at path.
func (l *Linter) Lint(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read makefile: %w", err)
	}
	return l.LintContent(path, string(data))
}

// QualityScore is 1 minus 0.3 per error, 0.1 per warning and 0.02 per info
// or performance finding, floored at 0.
func QualityScore(vs []Violation) float64 {
	score := 1.0
	for _, v := range vs {
		switch v.Severity {
		case SeverityError:
			score -= 0.3
		case SeverityWarning:
			score -= 0.1
		default:
			score -= 0.02
		}
	}
	return max(score, 0)
}

// FormatMarkdown renders a lint result.
func FormatMarkdown(r *Result) string {
	var b strings.Builder
	b.WriteString("# Makefile Lint Report\n\n")
	fmt.Fprintf(&b, "**File**: %s\n", r.Path)
	fmt.Fprintf(&b, "**Quality score**: %.0f%%\n", r.QualityScore*100)
	fmt.Fprintf(&b, "**Violations**: %d\n\n", len(r.Violations))
	if len(r.Violations) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}
	b.WriteString("| Line | Severity | Rule | Message |\n")
	b.WriteString("|------|----------|------|---------|\n")
	for _, v := range r.Violations {
		line := "-"
		if v.Line > 0 {
			line = fmt.Sprint(v.Line)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", line, v.Severity, v.Rule, v.Message)
	}
	b.WriteString("\n")
	for _, v := range r.Violations {
		if v.FixHint != "" {
			fmt.Fprintf(&b, "- **%s**: %s\n", v.Rule, v.FixHint)
		}
	}
	return b.String()
}
