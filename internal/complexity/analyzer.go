package complexity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pmat/internal/config"
	"pmat/internal/discovery"
	"pmat/internal/lang"
	"pmat/internal/logging"
)

// FunctionComplexity is one measured function.
type FunctionComplexity struct {
	Name      string  `json:"name"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Metrics   Metrics `json:"metrics"`
}

// FileComplexity aggregates the functions of one file.
type FileComplexity struct {
	Path      string               `json:"path"`
	Language  string               `json:"language"`
	Total     Metrics              `json:"total_complexity"`
	Functions []FunctionComplexity `json:"functions"`
}

// Severity of a threshold violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is a function exceeding a threshold.
type Violation struct {
	Severity  Severity `json:"severity"`
	Rule      string   `json:"rule"`
	Message   string   `json:"message"`
	Value     int      `json:"value"`
	Threshold int      `json:"threshold"`
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Function  string   `json:"function,omitempty"`
}

// Hotspot is a function above the cyclomatic warning threshold.
type Hotspot struct {
	File       string `json:"file"`
	Function   string `json:"function,omitempty"`
	Line       int    `json:"line"`
	Complexity int    `json:"complexity"`
	Type       string `json:"complexity_type"`
}

// Summary holds distribution statistics over all functions.
type Summary struct {
	TotalFiles         int     `json:"total_files"`
	TotalFunctions     int     `json:"total_functions"`
	MedianCyclomatic   float64 `json:"median_cyclomatic"`
	MedianCognitive    float64 `json:"median_cognitive"`
	MaxCyclomatic      int     `json:"max_cyclomatic"`
	MaxCognitive       int     `json:"max_cognitive"`
	P90Cyclomatic      int     `json:"p90_cyclomatic"`
	P90Cognitive       int     `json:"p90_cognitive"`
	TechnicalDebtHours float64 `json:"technical_debt_hours"`
}

// Report is the result of a project complexity run.
type Report struct {
	Summary    Summary          `json:"summary"`
	Violations []Violation      `json:"violations"`
	Hotspots   []Hotspot        `json:"hotspots"`
	Files      []FileComplexity `json:"files"`
}

// AnalyzeUnit measures every function in a parsed unit.
func AnalyzeUnit(u *lang.Unit) FileComplexity {
	fc := FileComplexity{Path: u.Path, Language: u.Language}
	for _, fn := range u.Functions {
		m := Measure(u, fn)
		fc.Functions = append(fc.Functions, FunctionComplexity{
			Name:      fn.QualifiedName,
			LineStart: fn.StartLine,
			LineEnd:   fn.EndLine,
			Metrics:   m,
		})
		fc.Total.Cyclomatic += m.Cyclomatic
		fc.Total.Cognitive += m.Cognitive
		if m.NestingMax > fc.Total.NestingMax {
			fc.Total.NestingMax = m.NestingMax
		}
	}
	fc.Total.Lines = lineCount(u.Source)
	return fc
}

// Memo stores per-file results keyed by content. A miss returns false.
type Memo interface {
	Load(ctx context.Context, analyzer, path string, content []byte, out any) bool
	Save(ctx context.Context, analyzer, path string, content []byte, v any)
}

const memoKey = "complexity"

// AnalyzeFiles parses and measures files concurrently. Files in unsupported
// languages are skipped; parse failures are logged and skipped.
func AnalyzeFiles(ctx context.Context, files []discovery.File, workers int) ([]FileComplexity, error) {
	return AnalyzeFilesMemo(ctx, files, workers, nil)
}

// AnalyzeFilesMemo is AnalyzeFiles with results reused from memo when the
// file content is unchanged. memo may be nil.
func AnalyzeFilesMemo(ctx context.Context, files []discovery.File, workers int, memo Memo) ([]FileComplexity, error) {
	var mu sync.Mutex
	var out []FileComplexity

	supported := discovery.Filter(files, func(f discovery.File) bool { return lang.Supported(f.Language) })
	err := discovery.ReadAll(ctx, supported, workers, func(ctx context.Context, f discovery.File, content []byte) error {
		var fc FileComplexity
		if memo == nil || !memo.Load(ctx, memoKey, f.RelPath, content, &fc) {
			u, err := lang.ParseFile(ctx, f, content)
			if err != nil {
				logging.AnalysisWarn("complexity: skipping %s: %v", f.RelPath, err)
				return nil
			}
			fc = AnalyzeUnit(u)
			u.Close()
			if memo != nil {
				memo.Save(ctx, memoKey, f.RelPath, content, fc)
			}
		}

		mu.Lock()
		out = append(out, fc)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Aggregate builds the project report from per-file metrics.
func Aggregate(files []FileComplexity, th config.ComplexityConfig) *Report {
	r := &Report{Files: files, Violations: []Violation{}, Hotspots: []Hotspot{}}

	var cyc, cog []int
	for _, f := range files {
		for _, fn := range f.Functions {
			cyc = append(cyc, fn.Metrics.Cyclomatic)
			cog = append(cog, fn.Metrics.Cognitive)

			if v, ok := evaluate("cyclomatic-complexity", "Cyclomatic", fn.Metrics.Cyclomatic,
				th.CyclomaticWarn, th.CyclomaticError, f.Path, fn); ok {
				r.Violations = append(r.Violations, v)
			}
			if v, ok := evaluate("cognitive-complexity", "Cognitive", fn.Metrics.Cognitive,
				th.CognitiveWarn, th.CognitiveError, f.Path, fn); ok {
				r.Violations = append(r.Violations, v)
			}

			if fn.Metrics.Cyclomatic > th.CyclomaticWarn {
				r.Hotspots = append(r.Hotspots, Hotspot{
					File:       f.Path,
					Function:   fn.Name,
					Line:       fn.LineStart,
					Complexity: fn.Metrics.Cyclomatic,
					Type:       "cyclomatic",
				})
			}
		}
	}

	sort.Ints(cyc)
	sort.Ints(cog)
	r.Summary = Summary{
		TotalFiles:       len(files),
		TotalFunctions:   len(cyc),
		MedianCyclomatic: Median(cyc),
		MedianCognitive:  Median(cog),
		MaxCyclomatic:    last(cyc),
		MaxCognitive:     last(cog),
		P90Cyclomatic:    Percentile(cyc, 0.9),
		P90Cognitive:     Percentile(cog, 0.9),
	}

	sort.SliceStable(r.Hotspots, func(i, j int) bool { return r.Hotspots[i].Complexity > r.Hotspots[j].Complexity })
	if len(r.Hotspots) > 10 {
		r.Hotspots = r.Hotspots[:10]
	}

	var debtMinutes float64
	for _, v := range r.Violations {
		over := float64(v.Value - v.Threshold)
		if v.Severity == SeverityError {
			debtMinutes += over * 30
		} else {
			debtMinutes += over * 15
		}
	}
	r.Summary.TechnicalDebtHours = debtMinutes / 60
	return r
}

func evaluate(rule, label string, value, warn, errTh int, file string, fn FunctionComplexity) (Violation, bool) {
	v := Violation{
		Rule:     rule,
		Value:    value,
		File:     file,
		Line:     fn.LineStart,
		Function: fn.Name,
	}
	switch {
	case value > errTh:
		v.Severity = SeverityError
		v.Threshold = errTh
		v.Message = fmt.Sprintf("%s complexity of %d exceeds maximum allowed complexity of %d", label, value, errTh)
	case value > warn:
		v.Severity = SeverityWarning
		v.Threshold = warn
		v.Message = fmt.Sprintf("%s complexity of %d exceeds recommended complexity of %d", label, value, warn)
	default:
		return Violation{}, false
	}
	return v, true
}

// ErrorCount counts error-severity violations.
func (r *Report) ErrorCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			n++
		}
	}
	return n
}

// WarningCount counts warning-severity violations.
func (r *Report) WarningCount() int {
	return len(r.Violations) - r.ErrorCount()
}

// Median of sorted values.
func Median(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}

// Percentile returns sorted[floor(n*p)], clamped to the last element.
func Percentile(sorted []int, p float64) int {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func last(sorted []int) int {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1]
}

func lineCount(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := 0
	for _, b := range src {
		if b == '\n' {
			n++
		}
	}
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}
