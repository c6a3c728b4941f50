// Package defect estimates per-file defect probability from churn,
// complexity, duplication and coupling.
package defect

import (
	"math"
	"sort"
)

// Weights of the ensemble; they sum to 1.
type Weights struct {
	Churn       float64 `json:"churn"`
	Complexity  float64 `json:"complexity"`
	Duplication float64 `json:"duplication"`
	Coupling    float64 `json:"coupling"`
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{Churn: 0.35, Complexity: 0.30, Duplication: 0.25, Coupling: 0.10}
}

// Metrics are the raw inputs for one file.
type Metrics struct {
	Path             string  `json:"file_path"`
	ChurnScore       float64 `json:"churn_score"`
	Complexity       float64 `json:"complexity"`
	DuplicateRatio   float64 `json:"duplicate_ratio"`
	AfferentCoupling float64 `json:"afferent_coupling"`
	EfferentCoupling float64 `json:"efferent_coupling"`
	LinesOfCode      int     `json:"lines_of_code"`
	Cyclomatic       int     `json:"cyclomatic_complexity"`
	Cognitive        int     `json:"cognitive_complexity"`
}

// Risk buckets a probability.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Factor is a weighted, normalized contribution.
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// Score is one file's prediction.
type Score struct {
	Path            string   `json:"file"`
	Probability     float64  `json:"probability"`
	Factors         []Factor `json:"contributing_factors"`
	Confidence      float64  `json:"confidence"`
	Risk            Risk     `json:"risk_level"`
	Recommendations []string `json:"recommendations"`
}

type point struct{ x, y float64 }

// Empirical CDFs; values outside the tables clamp to the end points.
var (
	churnCDF = []point{
		{0.0, 0.0}, {0.1, 0.05}, {0.2, 0.15}, {0.3, 0.30}, {0.4, 0.50},
		{0.5, 0.70}, {0.6, 0.85}, {0.7, 0.93}, {0.8, 0.97}, {1.0, 1.0},
	}
	complexityCDF = []point{
		{1, 0.1}, {2, 0.2}, {3, 0.3}, {5, 0.5}, {7, 0.7},
		{10, 0.8}, {15, 0.9}, {20, 0.95}, {30, 0.98}, {50, 1.0},
	}
	couplingCDF = []point{
		{0, 0.1}, {1, 0.3}, {2, 0.5}, {3, 0.7}, {5, 0.8}, {8, 0.9}, {12, 0.95}, {20, 1.0},
	}
)

func interpolate(cdf []point, v float64) float64 {
	if v <= cdf[0].x {
		return cdf[0].y
	}
	last := cdf[len(cdf)-1]
	if v >= last.x {
		return last.y
	}
	for i := 0; i < len(cdf)-1; i++ {
		a, b := cdf[i], cdf[i+1]
		if v >= a.x && v <= b.x {
			t := (v - a.x) / (b.x - a.x)
			return a.y + t*(b.y-a.y)
		}
	}
	return 0
}

// Calculator scores metrics with fixed weights.
type Calculator struct {
	w Weights
}

// NewCalculator returns a calculator using w.
func NewCalculator(w Weights) *Calculator {
	return &Calculator{w: w}
}

// Score computes the probability for m. The weighted sum passes through a
// logistic centered on 0.5.
func (c *Calculator) Score(m Metrics) Score {
	churn := interpolate(churnCDF, m.ChurnScore)
	cx := interpolate(complexityCDF, m.Complexity)
	dup := math.Max(0, math.Min(m.DuplicateRatio, 1))
	coup := interpolate(couplingCDF, m.AfferentCoupling)

	raw := c.w.Churn*churn + c.w.Complexity*cx + c.w.Duplication*dup + c.w.Coupling*coup
	p := 1 / (1 + math.Exp(-10*(raw-0.5)))

	factors := []Factor{
		{"churn", churn * c.w.Churn},
		{"complexity", cx * c.w.Complexity},
		{"duplication", dup * c.w.Duplication},
		{"coupling", coup * c.w.Coupling},
	}
	return Score{
		Path:            m.Path,
		Probability:     p,
		Factors:         factors,
		Confidence:      confidence(m),
		Risk:            riskOf(p),
		Recommendations: recommend(m, factors),
	}
}

func riskOf(p float64) Risk {
	switch {
	case p >= 0.7:
		return RiskHigh
	case p >= 0.3:
		return RiskMedium
	}
	return RiskLow
}

func confidence(m Metrics) float64 {
	conf := 1.0
	switch {
	case m.LinesOfCode < 10:
		conf *= 0.5
	case m.LinesOfCode < 50:
		conf *= 0.8
	}
	if m.AfferentCoupling == 0 && m.EfferentCoupling == 0 {
		conf *= 0.9
	}
	if m.ChurnScore == 0 {
		conf *= 0.85
	}
	return conf
}

func recommend(m Metrics, factors []Factor) []string {
	out := []string{}
	top := factors[0]
	total := 0.0
	for _, f := range factors {
		total += f.Contribution
		if f.Contribution > top.Contribution {
			top = f
		}
	}
	if top.Contribution > 0.2 {
		switch top.Name {
		case "complexity":
			out = append(out, "Consider breaking down complex functions into smaller, more focused units")
			if m.Cyclomatic > 15 {
				out = append(out, "Cyclomatic complexity is high - reduce conditional logic and nested structures")
			}
			if m.Cognitive > 20 {
				out = append(out, "Cognitive complexity is high - simplify control flow and reduce nesting")
			}
		case "churn":
			out = append(out,
				"High change frequency detected - consider stabilizing the interface",
				"Review recent changes for potential design issues")
		case "duplication":
			out = append(out,
				"Code duplication detected - extract common functionality into shared modules",
				"Consider using inheritance, composition, or higher-order functions to reduce duplication")
		case "coupling":
			out = append(out,
				"High coupling detected - reduce dependencies between modules",
				"Consider using dependency injection or interfaces to decouple components")
		}
	}
	if total > 0.7 {
		out = append(out,
			"This file has multiple risk factors - prioritize for refactoring",
			"Consider increasing test coverage for this file",
			"Add comprehensive documentation for complex sections")
	}
	return out
}

// Summary aggregates a project.
type Summary struct {
	TotalFiles         int      `json:"total_files"`
	HighRiskFiles      []string `json:"high_risk_files"`
	MediumRiskFiles    []string `json:"medium_risk_files"`
	AverageProbability float64  `json:"average_probability"`
}

// Analysis is the project result; Scores are sorted by probability.
type Analysis struct {
	Scores  []Score `json:"file_scores"`
	Summary Summary `json:"summary"`
}

// ScoreAll scores and ranks every file.
func (c *Calculator) ScoreAll(metrics []Metrics) *Analysis {
	a := &Analysis{Scores: make([]Score, 0, len(metrics))}
	for _, m := range metrics {
		a.Scores = append(a.Scores, c.Score(m))
	}
	sort.SliceStable(a.Scores, func(i, j int) bool {
		if a.Scores[i].Probability != a.Scores[j].Probability {
			return a.Scores[i].Probability > a.Scores[j].Probability
		}
		return a.Scores[i].Path < a.Scores[j].Path
	})

	s := Summary{TotalFiles: len(a.Scores), HighRiskFiles: []string{}, MediumRiskFiles: []string{}}
	var total float64
	for _, sc := range a.Scores {
		total += sc.Probability
		switch sc.Risk {
		case RiskHigh:
			s.HighRiskFiles = append(s.HighRiskFiles, sc.Path)
		case RiskMedium:
			s.MediumRiskFiles = append(s.MediumRiskFiles, sc.Path)
		}
	}
	if len(a.Scores) > 0 {
		s.AverageProbability = total / float64(len(a.Scores))
	}
	a.Summary = s
	return a
}

// Top returns the n most likely defective files.
func (a *Analysis) Top(n int) []Score {
	if n <= 0 || n >= len(a.Scores) {
		return a.Scores
	}
	return a.Scores[:n]
}
