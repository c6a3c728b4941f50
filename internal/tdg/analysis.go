package tdg

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"pmat/internal/discovery"
	"pmat/internal/logging"
)

// Hotspot is a high-TDG file with its dominant factor.
type Hotspot struct {
	Path           string  `json:"path"`
	Score          float64 `json:"tdg_score"`
	PrimaryFactor  string  `json:"primary_factor"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// Summary aggregates a project.
type Summary struct {
	TotalFiles         int       `json:"total_files"`
	CriticalFiles      int       `json:"critical_files"`
	WarningFiles       int       `json:"warning_files"`
	AverageTDG         float64   `json:"average_tdg"`
	MedianTDG          float64   `json:"median_tdg"`
	P95TDG             float64   `json:"p95_tdg"`
	P99TDG             float64   `json:"p99_tdg"`
	EstimatedDebtHours float64   `json:"estimated_debt_hours"`
	Hotspots           []Hotspot `json:"hotspots"`
}

// Bucket is one histogram bin [Min, Max).
type Bucket struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Recommendation is an action for one file.
type Recommendation struct {
	Type              string  `json:"type"`
	Action            string  `json:"action"`
	ExpectedReduction float64 `json:"expected_reduction"`
	EstimatedHours    float64 `json:"estimated_hours"`
	Priority          int     `json:"priority"`
}

// Analysis is a project run.
type Analysis struct {
	Scores       []Score  `json:"scores"`
	Summary      Summary  `json:"summary"`
	Distribution []Bucket `json:"distribution"`
}

// Analyze scores every source file concurrently.
func (c *Calculator) Analyze(ctx context.Context, files []discovery.File, workers int) (*Analysis, error) {
	timer := logging.StartTimer(logging.CategoryAnalysis, "tdg")
	defer timer.Stop()

	files = discovery.Filter(files, func(f discovery.File) bool {
		return discovery.IsSource(f.Language) && !discovery.IsGeneratedArtifact(f.RelPath)
	})

	var mu sync.Mutex
	scores := make([]Score, 0, len(files))
	err := discovery.ReadAll(ctx, files, workers, func(_ context.Context, f discovery.File, content []byte) error {
		s := c.Score(f.RelPath, content, f.ModTime)
		mu.Lock()
		scores = append(scores, s)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score files: %w", err)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Path < scores[j].Path })
	setPercentiles(scores)

	a := &Analysis{Scores: scores, Summary: c.Summarize(scores), Distribution: Distribution(scores)}
	logging.Analysis("tdg: %d files, average %.2f, %d critical", a.Summary.TotalFiles, a.Summary.AverageTDG, a.Summary.CriticalFiles)
	return a, nil
}

// setPercentiles stores each score's rank position as a percentage.
func setPercentiles(scores []Score) {
	values := sortedValues(scores)
	for i := range scores {
		pos := sort.SearchFloat64s(values, scores[i].Value)
		scores[i].Percentile = float64(pos) / float64(len(values)) * 100
	}
}

func sortedValues(scores []Score) []float64 {
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = s.Value
	}
	sort.Float64s(values)
	return values
}

// Percentile indexes floor(n*p) into sorted, clamped to the last element.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Summarize computes project statistics and the top 10 hotspots.
func (c *Calculator) Summarize(scores []Score) Summary {
	s := Summary{TotalFiles: len(scores), Hotspots: []Hotspot{}}
	values := sortedValues(scores)
	var total float64
	for _, sc := range scores {
		total += sc.Value
		s.EstimatedDebtHours += EstimatedHours(sc.Value)
		switch sc.Severity {
		case SeverityCritical:
			s.CriticalFiles++
		case SeverityWarning:
			s.WarningFiles++
		}
	}
	if len(scores) > 0 {
		s.AverageTDG = total / float64(len(scores))
	}
	s.MedianTDG = median(values)
	s.P95TDG = Percentile(values, 0.95)
	s.P99TDG = Percentile(values, 0.99)

	ranked := append([]Score(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
	for i := 0; i < len(ranked) && i < 10; i++ {
		s.Hotspots = append(s.Hotspots, Hotspot{
			Path:           ranked[i].Path,
			Score:          ranked[i].Value,
			PrimaryFactor:  c.PrimaryFactor(ranked[i].Components),
			EstimatedHours: EstimatedHours(ranked[i].Value),
		})
	}
	return s
}

// EstimatedHours is 2 * 1.8^tdg.
func EstimatedHours(tdg float64) float64 {
	return 2.0 * math.Pow(1.8, tdg)
}

type factor struct {
	name   string
	value  float64
	weight float64
}

func (c *Calculator) factors(comp Components) []factor {
	return []factor{
		{"Complexity", comp.Complexity, c.cfg.ComplexityWeight},
		{"Code Churn", comp.Churn, c.cfg.ChurnWeight},
		{"Coupling", comp.Coupling, c.cfg.CouplingWeight},
		{"Domain Risk", comp.DomainRisk, c.cfg.DomainRiskWeight},
		{"Duplication", comp.Duplication, c.cfg.DuplicationWeight},
	}
}

var primaryLabels = map[string]string{
	"Complexity":  "High Complexity",
	"Code Churn":  "Frequent Changes",
	"Coupling":    "High Coupling",
	"Domain Risk": "Domain Risk",
	"Duplication": "Code Duplication",
}

// PrimaryFactor names the largest weighted contribution. Ties keep the
// earlier factor.
func (c *Calculator) PrimaryFactor(comp Components) string {
	fs := c.factors(comp)
	best := fs[0]
	for _, f := range fs[1:] {
		if f.value*f.weight > best.value*best.weight {
			best = f
		}
	}
	return primaryLabels[best.name]
}

// Explain renders a component breakdown.
func (c *Calculator) Explain(s Score) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Technical Debt Gradient: %.2f (%s)\n\n", s.Value, s.Severity)
	b.WriteString("Component Breakdown:\n")
	for _, f := range c.factors(s.Components) {
		fmt.Fprintf(&b, "- %s: %.2f (contributes %.2f to total)\n", f.name, f.value, f.value*f.weight)
	}
	fmt.Fprintf(&b, "\nConfidence: %.0f%%", s.Confidence*100)
	return b.String()
}

// Recommend returns actions for factors above their trigger, highest
// priority first.
func (c *Calculator) Recommend(s Score) []Recommendation {
	comp := s.Components
	var out []Recommendation
	if comp.Complexity > 3.0 {
		out = append(out, Recommendation{
			Type:              "reduce_complexity",
			Action:            "Extract complex logic into smaller, focused functions",
			ExpectedReduction: comp.Complexity * 0.3 * c.cfg.ComplexityWeight,
			EstimatedHours:    4,
			Priority:          5,
		})
	}
	if comp.Churn > 3.0 {
		out = append(out, Recommendation{
			Type:              "stabilize_churn",
			Action:            "Add comprehensive tests to stabilize frequently changing code",
			ExpectedReduction: comp.Churn * 0.4 * c.cfg.ChurnWeight,
			EstimatedHours:    8,
			Priority:          4,
		})
	}
	if comp.Coupling > 3.0 {
		out = append(out, Recommendation{
			Type:              "reduce_coupling",
			Action:            "Introduce abstractions to reduce direct dependencies",
			ExpectedReduction: comp.Coupling * 0.35 * c.cfg.CouplingWeight,
			EstimatedHours:    6,
			Priority:          3,
		})
	}
	if comp.Duplication > 2.0 {
		out = append(out, Recommendation{
			Type:              "remove_duplication",
			Action:            "Extract duplicated code into shared utilities",
			ExpectedReduction: comp.Duplication * 0.5 * c.cfg.DuplicationWeight,
			EstimatedHours:    3,
			Priority:          2,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Distribution bins values into ten 0.5-wide buckets over 0..5. A value of
// exactly 5 falls outside every bucket.
func Distribution(scores []Score) []Bucket {
	const width = 0.5
	out := make([]Bucket, 0, 10)
	for i := 0; i < 10; i++ {
		b := Bucket{Min: float64(i) * width, Max: float64(i+1) * width}
		for _, s := range scores {
			if s.Value >= b.Min && s.Value < b.Max {
				b.Count++
			}
		}
		if len(scores) > 0 {
			b.Percentage = float64(b.Count) / float64(len(scores)) * 100
		}
		out = append(out, b)
	}
	return out
}
