package deepcontext

import (
	"math"
)

// Scorecard grades the project on a 0..100 scale per dimension.
type Scorecard struct {
	OverallHealth        float64 `json:"overall_health"`
	ComplexityScore      float64 `json:"complexity_score"`
	MaintainabilityIndex float64 `json:"maintainability_index"`
	ModularityScore      float64 `json:"modularity_score"`
	HygieneScore         float64 `json:"hygiene_score"`
	TechnicalDebtHours   float64 `json:"technical_debt_hours"`
}

// Health buckets the overall score.
func (s Scorecard) Health() string {
	switch {
	case s.OverallHealth >= 80:
		return "✅"
	case s.OverallHealth >= 60:
		return "⚠️"
	}
	return "❌"
}

type dimension struct {
	score  float64
	weight float64
	ok     bool
}

// ComputeScorecard derives the scorecard from whatever sections are present.
// Missing sections drop out of the weighted overall score; a report with no
// sections at all scores 100.
func ComputeScorecard(res *Results) Scorecard {
	var s Scorecard
	complexityOK, maintOK := false, false
	if res.Complexity != nil && res.Complexity.Summary.TotalFunctions > 0 {
		s.ComplexityScore = complexityScore(res)
		s.MaintainabilityIndex = maintainability(res)
		complexityOK, maintOK = true, true
	} else {
		s.ComplexityScore, s.MaintainabilityIndex = 100, 100
	}

	s.ModularityScore = 100
	modularityOK := false
	if res.DAG != nil && res.DAG.TotalNodes > 0 {
		inCycles := 0
		for _, c := range res.DAG.Cycles {
			inCycles += len(c)
		}
		s.ModularityScore = clamp(100 * (1 - float64(inCycles)/float64(res.DAG.TotalNodes)))
		modularityOK = true
	}

	s.HygieneScore = 100
	hygieneOK := false
	var waste float64
	if res.DeadCode != nil {
		waste += res.DeadCode.Summary.PercentageDead / 100
		hygieneOK = true
	}
	if res.Duplicates != nil {
		waste += res.Duplicates.Summary.DuplicationRatio
		hygieneOK = true
	}
	if hygieneOK {
		s.HygieneScore = clamp(100 * (1 - math.Min(waste, 1)))
	}

	switch {
	case res.TDG != nil:
		s.TechnicalDebtHours = res.TDG.Summary.EstimatedDebtHours
	case res.Complexity != nil:
		s.TechnicalDebtHours = res.Complexity.Summary.TechnicalDebtHours
	}

	dims := []dimension{
		{s.ComplexityScore, 0.3, complexityOK},
		{s.MaintainabilityIndex, 0.3, maintOK},
		{s.ModularityScore, 0.2, modularityOK},
		{s.HygieneScore, 0.2, hygieneOK},
	}
	var sum, weights float64
	for _, d := range dims {
		if d.ok {
			sum += d.score * d.weight
			weights += d.weight
		}
	}
	s.OverallHealth = 100
	if weights > 0 {
		s.OverallHealth = round1(sum / weights)
	}
	s.ComplexityScore = round1(s.ComplexityScore)
	s.MaintainabilityIndex = round1(s.MaintainabilityIndex)
	s.ModularityScore = round1(s.ModularityScore)
	s.HygieneScore = round1(s.HygieneScore)
	s.TechnicalDebtHours = round1(s.TechnicalDebtHours)
	return s
}

// complexityScore is the share of functions without any threshold
// violation, less two points per error-level violation.
func complexityScore(res *Results) float64 {
	r := res.Complexity
	flagged := map[string]bool{}
	for _, v := range r.Violations {
		flagged[v.File+"\x00"+v.Function] = true
	}
	total := float64(r.Summary.TotalFunctions)
	score := 100 * (1 - math.Min(float64(len(flagged))/total, 1))
	return clamp(score - 2*float64(r.ErrorCount()))
}

// maintainability is the normalized maintainability index without the
// Halstead volume term, averaged over files:
// (171 - 0.23*CC - 16.2*ln(LOC)) * 100 / 171.
func maintainability(res *Results) float64 {
	var sum float64
	n := 0
	for _, f := range res.Complexity.Files {
		if f.Total.Lines == 0 {
			continue
		}
		loc := math.Max(float64(f.Total.Lines), 1)
		mi := (171 - 0.23*float64(f.Total.Cyclomatic) - 16.2*math.Log(loc)) * 100 / 171
		sum += clamp(mi)
		n++
	}
	if n == 0 {
		return 100
	}
	return sum / float64(n)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
