// Package tdg computes the Technical Debt Gradient, a 0..5 score per file
// blended from complexity, churn, coupling, domain risk and duplication.
package tdg

import (
	"regexp"
	"strings"
	"time"

	"pmat/internal/config"
)

// MaxScore bounds every factor and the final value.
const MaxScore = 5.0

// Severity buckets a TDG value.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Components are the per-factor values, each in 0..5.
type Components struct {
	Complexity  float64 `json:"complexity"`
	Churn       float64 `json:"churn"`
	Coupling    float64 `json:"coupling"`
	DomainRisk  float64 `json:"domain_risk"`
	Duplication float64 `json:"duplication"`
}

// Score is one file's result.
type Score struct {
	Path       string     `json:"path"`
	Value      float64    `json:"value"`
	Components Components `json:"components"`
	Severity   Severity   `json:"severity"`
	Percentile float64    `json:"percentile"`
	Confidence float64    `json:"confidence"`
}

// Calculator scores file contents.
type Calculator struct {
	cfg config.TDGConfig
	now func() time.Time
}

// NewCalculator returns a calculator with the given weights.
func NewCalculator(cfg config.TDGConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg, now: time.Now}, nil
}

// Score computes the TDG for one file.
func (c *Calculator) Score(path string, content []byte, modTime time.Time) Score {
	text := string(content)
	comp := Components{
		Complexity:  ComplexityFactor(text),
		Churn:       ChurnFactor(c.now().Sub(modTime)),
		Coupling:    CouplingFactor(text),
		DomainRisk:  DomainRisk(path),
		Duplication: DuplicationFactor(text),
	}
	value := c.weighted(comp)
	return Score{
		Path:       path,
		Value:      value,
		Components: comp,
		Severity:   c.severity(value),
		Confidence: confidence(comp),
	}
}

func (c *Calculator) weighted(comp Components) float64 {
	v := comp.Complexity*c.cfg.ComplexityWeight +
		comp.Churn*c.cfg.ChurnWeight +
		comp.Coupling*c.cfg.CouplingWeight +
		comp.DomainRisk*c.cfg.DomainRiskWeight +
		comp.Duplication*c.cfg.DuplicationWeight
	return clamp(v, 0, MaxScore)
}

func (c *Calculator) severity(v float64) Severity {
	switch {
	case v > c.cfg.CriticalThreshold:
		return SeverityCritical
	case v > c.cfg.WarningThreshold:
		return SeverityWarning
	}
	return SeverityNormal
}

// confidence drops when a factor is zero, which usually means missing data.
func confidence(comp Components) float64 {
	conf := 1.0
	if comp.Churn == 0 {
		conf *= 0.8
	}
	if comp.Coupling == 0 {
		conf *= 0.9
	}
	if comp.Duplication == 0 {
		conf *= 0.95
	}
	return conf
}

var branchPrefixes = []string{"if ", "elif ", "while ", "for ", "match ", "case "}

// ComplexityFactor weights each branch line by its brace nesting depth and
// scales by 25.
func ComplexityFactor(text string) float64 {
	score, nesting := 0, 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, p := range branchPrefixes {
			if strings.HasPrefix(trimmed, p) {
				score += 1 + nesting
				break
			}
		}
		nesting += strings.Count(trimmed, "{")
		nesting -= strings.Count(trimmed, "}")
		if nesting < 0 {
			nesting = 0
		}
	}
	return min(float64(score)/25.0, MaxScore)
}

// ChurnFactor approximates change frequency from the time since the file
// was last modified.
func ChurnFactor(age time.Duration) float64 {
	days := age.Hours() / 24
	switch {
	case days < 7:
		return 3.0
	case days < 30:
		return 2.0
	case days < 90:
		return 1.0
	}
	return 0.5
}

var importLine = regexp.MustCompile(`^(use\s+|import\s+|from\s+.*\s+import|require\()`)

// CouplingFactor counts import lines; 15 imports score 1.
func CouplingFactor(text string) float64 {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if importLine.MatchString(strings.TrimSpace(line)) {
			n++
		}
	}
	return min(float64(n)/15.0, MaxScore)
}

// DomainRisk scores security, persistence and integration paths.
func DomainRisk(path string) float64 {
	risk := 0.0
	if containsAny(path, "auth", "crypto", "security") {
		risk += 2.0
	}
	if containsAny(path, "database", "migration") {
		risk += 1.5
	}
	if containsAny(path, "api", "integration") {
		risk += 1.0
	}
	return min(risk, MaxScore)
}

// DuplicationFactor measures repeated substantial lines. Files with fewer
// than 10 code lines score 0; 30% duplication scores 1.
func DuplicationFactor(text string) float64 {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "//") || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) < 10 {
		return 0
	}
	counts := map[string]int{}
	for _, l := range lines {
		if len(l) > 10 {
			counts[l]++
		}
	}
	dup := 0
	for _, n := range counts {
		if n > 1 {
			dup += n - 1
		}
	}
	pct := float64(dup) / float64(len(lines)) * 100
	return min(pct/30.0, MaxScore)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
