package deepcontext

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pmat/internal/complexity"
	"pmat/internal/config"
	"pmat/internal/dag"
	"pmat/internal/deadcode"
	"pmat/internal/duplicates"
	"pmat/internal/makefile"
	"pmat/internal/satd"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

const mainGo = `package main

import "fmt"

func main() {
	// TODO: read the limit from flags
	classify(3)
}

func classify(n int) string {
	if n > 10 {
		return "big"
	} else if n > 5 {
		return "medium"
	}
	for i := 0; i < n; i++ {
		fmt.Println(i)
	}
	return "small"
}

func unused() {}
`

func TestParseAnalyses(t *testing.T) {
	all, err := ParseAnalyses(nil)
	require.NoError(t, err)
	assert.Equal(t, AllAnalyses(), all)

	got, err := ParseAnalyses([]string{"complexity,dead-code", "defects", "complexity"})
	require.NoError(t, err)
	assert.Equal(t, []Analysis{AnalysisComplexity, AnalysisDeadCode, AnalysisDefects}, got)

	_, err = ParseAnalyses([]string{"coverage"})
	assert.ErrorContains(t, err, `unknown analysis "coverage"`)
}

func TestGenerateFullReport(t *testing.T) {
	root := writeProject(t, map[string]string{
		"main.go":  mainGo,
		"Makefile": "build:\n\tgo build ./...\n",
	})

	r, err := Generate(context.Background(), root, Options{Workers: 2})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, config.DefaultConfig().Version, r.Metadata.ToolVersion)
	assert.Empty(t, r.Errors)
	assert.Equal(t, 1, r.Overview.Languages["go"])

	a := r.Analyses
	require.NotNil(t, a.Complexity)
	assert.Equal(t, 3, a.Complexity.Summary.TotalFunctions)
	require.NotNil(t, a.Churn)
	assert.Equal(t, 0, a.Churn.Summary.TotalCommits)
	require.NotNil(t, a.SATD)
	assert.Len(t, a.SATD.Items, 1)
	assert.NotNil(t, a.DAG)
	assert.NotNil(t, a.DeadCode)
	assert.NotNil(t, a.Duplicates)
	assert.NotNil(t, a.TDG)
	assert.NotNil(t, a.Defects)
	require.NotNil(t, a.Makefile)
	assert.Equal(t, "Makefile", a.Makefile.Path)

	assert.GreaterOrEqual(t, r.Scorecard.OverallHealth, 0.0)
	assert.LessOrEqual(t, r.Scorecard.OverallHealth, 100.0)

	var sources []Analysis
	for _, rec := range r.Recommendations {
		sources = append(sources, rec.Source)
	}
	assert.Contains(t, sources, AnalysisMakefile)
	assert.Contains(t, sources, AnalysisSATD)

	md := FormatMarkdown(r)
	for _, want := range []string{
		"# Deep Context Analysis Report",
		"## Quality Scorecard",
		"## Complexity Hotspots",
		"## Self-Admitted Technical Debt",
		"## Build System",
		"## Prioritized Recommendations",
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "## Analysis Errors")
}

func TestGenerateSubset(t *testing.T) {
	root := writeProject(t, map[string]string{"main.go": mainGo})

	r, err := Generate(context.Background(), root, Options{Analyses: []Analysis{AnalysisComplexity}})
	require.NoError(t, err)
	assert.NotNil(t, r.Analyses.Complexity)
	assert.Nil(t, r.Analyses.Churn)
	assert.Nil(t, r.Analyses.DAG)
	assert.Nil(t, r.Analyses.Defects)
	assert.Nil(t, r.Analyses.Makefile)
	assert.Equal(t, 100.0, r.Scorecard.ModularityScore)
}

func TestGenerateRecordsInvalidTDGConfig(t *testing.T) {
	root := writeProject(t, map[string]string{"main.go": mainGo})
	cfg := config.DefaultConfig()
	cfg.TDG.ComplexityWeight = 0.9

	r, err := Generate(context.Background(), root, Options{
		Config:   cfg,
		Analyses: []Analysis{AnalysisComplexity, AnalysisTDG},
	})
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, AnalysisTDG, r.Errors[0].Analysis)
	assert.Contains(t, r.Errors[0].Error, "tdg weights must sum to 1.0")
	assert.Nil(t, r.Analyses.TDG)
	assert.NotNil(t, r.Analyses.Complexity)
	assert.Contains(t, FormatMarkdown(r), "## Analysis Errors")
}

func TestGenerateCancelled(t *testing.T) {
	root := writeProject(t, map[string]string{"main.go": mainGo})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, root, Options{})
	assert.Error(t, err)
}

func TestFindMakefile(t *testing.T) {
	root := writeProject(t, map[string]string{"makefile": "all:\n"})
	assert.Equal(t, filepath.Join(root, "makefile"), FindMakefile(root))
	assert.Empty(t, FindMakefile(t.TempDir()))
}

func sampleResults() *Results {
	return &Results{
		Complexity: &complexity.Report{
			Summary: complexity.Summary{TotalFunctions: 4, TechnicalDebtHours: 2},
			Violations: []complexity.Violation{
				{Severity: complexity.SeverityError, Rule: "cyclomatic-complexity", File: "a.go", Function: "f", Line: 3, Value: 25, Threshold: 20, Message: "Cyclomatic complexity 25 exceeds 20"},
				{Severity: complexity.SeverityWarning, Rule: "cognitive-complexity", File: "a.go", Function: "f", Line: 3, Value: 16, Threshold: 15},
			},
			Files: []complexity.FileComplexity{{Path: "a.go", Total: complexity.Metrics{Lines: 1}}},
		},
		DAG:        &dag.Result{TotalNodes: 4, Cycles: [][]string{{"a", "b"}}},
		DeadCode:   &deadcode.Report{Summary: deadcode.Summary{PercentageDead: 10, TotalDeadCodeLines: 20, FilesWithDeadCode: 2}},
		Duplicates: &duplicates.Report{Summary: duplicates.Summary{DuplicationRatio: 0.1, CloneGroups: 1, DuplicateLines: 40}},
	}
}

func TestComputeScorecard(t *testing.T) {
	got := ComputeScorecard(sampleResults())
	want := Scorecard{
		OverallHealth:        77.9,
		ComplexityScore:      73,
		MaintainabilityIndex: 100,
		ModularityScore:      50,
		HygieneScore:         80,
		TechnicalDebtHours:   2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scorecard mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "⚠️", got.Health())
}

func TestComputeScorecardEmpty(t *testing.T) {
	s := ComputeScorecard(&Results{})
	assert.Equal(t, 100.0, s.OverallHealth)
	assert.Equal(t, "✅", s.Health())
	assert.Equal(t, "❌", Scorecard{OverallHealth: 42}.Health())
}

func TestRecommendOrdering(t *testing.T) {
	res := sampleResults()
	res.SATD = &satd.Result{
		Items:         []satd.Item{{Severity: satd.SeverityLow}},
		Summary:       satd.Summary{BySeverity: map[string]int{"Low": 1}},
		FilesWithDebt: 1,
	}
	res.Makefile = &makefile.Result{
		Path:         "Makefile",
		Violations:   []makefile.Violation{{Rule: "minphony", Severity: makefile.SeverityError}},
		QualityScore: 0.7,
	}

	recs := Recommend(res, nil, config.DefaultComplexityConfig())
	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
	}
	want := []string{
		"Reduce complexity of f",
		"Break dependency cycles",
		"Fix Makefile lint findings",
		"Remove dead code",
		"Extract duplicated code",
		"Resolve self-admitted technical debt",
	}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3.5, recs[0].EffortHours)
	assert.Equal(t, PriorityHigh, recs[0].Priority)
	assert.Equal(t, PriorityLow, recs[len(recs)-1].Priority)
	for _, r := range recs {
		assert.NotNil(t, r.Prerequisites)
	}
}

func TestFormatMarkdownScorecard(t *testing.T) {
	res := sampleResults()
	r := &Report{
		ID: uuid.MustParse("6f1c1a52-8d2b-4c41-9c3e-3b7d8f0a1e22"),
		Metadata: Metadata{
			GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			ToolVersion: "0.21.0",
			ProjectRoot: "/src/app",
			DurationMS:  1500,
		},
		Overview:        Overview{TotalFiles: 2, TotalBytes: 2048, Languages: map[string]int{"go": 2}},
		Analyses:        *res,
		Scorecard:       ComputeScorecard(res),
		Recommendations: Recommend(res, nil, config.DefaultComplexityConfig()),
		Errors:          []Failure{{Analysis: AnalysisChurn, Error: "boom"}},
	}
	md := FormatMarkdown(r)

	assert.True(t, strings.HasPrefix(md, "# Deep Context Analysis Report\n\n**Report ID:** 6f1c1a52-8d2b-4c41-9c3e-3b7d8f0a1e22\n"))
	assert.Contains(t, md, "**Generated:** 2025-03-01 12:00:00 UTC\n")
	assert.Contains(t, md, "- Languages: go (2)\n")
	assert.Contains(t, md, "- **Overall Health**: ⚠️ (77.9/100)\n")
	assert.Contains(t, md, "- **Refactoring Time**: 2.0 hours estimated\n")
	assert.Contains(t, md, "## Analysis Errors\n\n- churn: boom\n")
	assert.Contains(t, md, "### 🟡 1 Reduce complexity of f\n**Description:** a.go:3 Cyclomatic complexity 25 exceeds 20\n")
	assert.NotContains(t, md, "## Code Churn Analysis")
}
