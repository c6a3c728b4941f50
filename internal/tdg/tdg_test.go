package tdg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmat/internal/config"
	"pmat/internal/discovery"
)

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(config.DefaultTDGConfig())
	require.NoError(t, err)
	return c
}

func TestComplexityFactor(t *testing.T) {
	src := `fn f(x: i32) -> i32 {
    if x > 0 {
        if x > 10 {
            x
        } else { 0 }
    } else { 1 }
}`
	// depth 1 and depth 2 branches: (1+1) + (1+2)
	assert.InDelta(t, 5.0/25.0, ComplexityFactor(src), 1e-9)
	assert.Equal(t, 0.0, ComplexityFactor("x := 1\n"))
}

func TestChurnFactor(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, 3.0, ChurnFactor(2*day))
	assert.Equal(t, 2.0, ChurnFactor(10*day))
	assert.Equal(t, 1.0, ChurnFactor(60*day))
	assert.Equal(t, 0.5, ChurnFactor(365*day))
}

func TestCouplingAndDomainRisk(t *testing.T) {
	src := "import os\nfrom a import b\nuse std::io;\nrequire('x')\nx = 1\n"
	assert.InDelta(t, 4.0/15.0, CouplingFactor(src), 1e-9)

	assert.Equal(t, 2.0, DomainRisk("src/auth/login.rs"))
	assert.Equal(t, 4.5, DomainRisk("api/auth/database.go"))
	assert.Equal(t, 0.0, DomainRisk("src/lib.rs"))
}

func TestDuplicationFactor(t *testing.T) {
	assert.Equal(t, 0.0, DuplicationFactor("a\nb\n"))

	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, "unique_statement_"+strings.Repeat("x", i))
	}
	for i := 0; i < 3; i++ {
		lines = append(lines, "repeated_statement();")
	}
	// 2 duplicates over 10 lines = 20%
	assert.InDelta(t, 20.0/30.0, DuplicationFactor(strings.Join(lines, "\n")), 1e-9)
}

func TestScoreWeightsAndSeverity(t *testing.T) {
	c := newCalc(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	s := c.Score("src/security/keys.go", []byte("package keys\n"), now)
	// churn 3*.35 + domain 2*.10
	assert.InDelta(t, 1.25, s.Value, 1e-9)
	assert.Equal(t, SeverityNormal, s.Severity)
	assert.InDelta(t, 0.9*0.95, s.Confidence, 1e-9)
	assert.Equal(t, "Frequent Changes", c.PrimaryFactor(s.Components))

	assert.Equal(t, SeverityCritical, c.severity(2.6))
	assert.Equal(t, SeverityWarning, c.severity(2.5))
	assert.Equal(t, SeverityNormal, c.severity(1.5))
}

func TestSummarizeAndDistribution(t *testing.T) {
	c := newCalc(t)
	scores := []Score{
		{Path: "a", Value: 0.5, Severity: SeverityNormal},
		{Path: "b", Value: 1.8, Severity: SeverityWarning, Components: Components{Duplication: 4}},
		{Path: "c", Value: 3.2, Severity: SeverityCritical, Components: Components{Complexity: 4}},
	}
	s := c.Summarize(scores)
	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, 1, s.CriticalFiles)
	assert.Equal(t, 1, s.WarningFiles)
	assert.InDelta(t, 5.5/3, s.AverageTDG, 1e-9)
	assert.Equal(t, 1.8, s.MedianTDG)
	assert.Equal(t, 3.2, s.P95TDG)
	require.Len(t, s.Hotspots, 3)
	assert.Equal(t, "c", s.Hotspots[0].Path)
	assert.Equal(t, "High Complexity", s.Hotspots[0].PrimaryFactor)
	assert.InDelta(t, EstimatedHours(3.2), s.Hotspots[0].EstimatedHours, 1e-9)

	d := Distribution(scores)
	require.Len(t, d, 10)
	total := 0.0
	for _, b := range d {
		total += b.Percentage
	}
	assert.InDelta(t, 100.0, total, 0.01)
	assert.Equal(t, 1, d[1].Count)
}

func TestRecommendAndExplain(t *testing.T) {
	c := newCalc(t)
	s := Score{Value: 2.7, Severity: SeverityCritical, Confidence: 1,
		Components: Components{Complexity: 4, Duplication: 3, Churn: 1}}
	recs := c.Recommend(s)
	require.Len(t, recs, 2)
	assert.Equal(t, "reduce_complexity", recs[0].Type)
	assert.Equal(t, "remove_duplication", recs[1].Type)

	text := c.Explain(s)
	assert.Contains(t, text, "Technical Debt Gradient: 2.70 (critical)")
	assert.Contains(t, text, "- Complexity: 4.00 (contributes 1.20 to total)")
	assert.True(t, strings.HasSuffix(text, "Confidence: 100%"))
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	vals := []float64{1, 2, 3, 4}
	assert.Equal(t, 3.0, Percentile(vals, 0.5))
	assert.Equal(t, 4.0, Percentile(vals, 0.99))
}

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "auth"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth", "token.py"), []byte("import os\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# hi\n"), 0644))

	w, err := discovery.NewWalker(config.DefaultDiscoveryConfig())
	require.NoError(t, err)
	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)

	a, err := newCalc(t).Analyze(context.Background(), files, 2)
	require.NoError(t, err)
	require.Len(t, a.Scores, 2)
	assert.Equal(t, "auth/token.py", a.Scores[0].Path)
	assert.Equal(t, "auth/token.py", a.Summary.Hotspots[0].Path)
	assert.Equal(t, 50.0, a.Scores[0].Percentile)
	assert.Equal(t, 0.0, a.Scores[1].Percentile)
	assert.Contains(t, FormatMarkdown(a), "| auth/token.py |")
}
