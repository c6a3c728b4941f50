package config

import (
	"fmt"
	"math"
)

// ComplexityConfig holds complexity thresholds.
type ComplexityConfig struct {
	CyclomaticWarn  int `yaml:"cyclomatic_warn"`
	CyclomaticError int `yaml:"cyclomatic_error"`
	CognitiveWarn   int `yaml:"cognitive_warn"`
	CognitiveError  int `yaml:"cognitive_error"`
	NestingMax      int `yaml:"nesting_max"`
	MethodLength    int `yaml:"method_length"`
}

// DefaultComplexityConfig returns the standard thresholds.
func DefaultComplexityConfig() ComplexityConfig {
	return ComplexityConfig{
		CyclomaticWarn:  10,
		CyclomaticError: 20,
		CognitiveWarn:   15,
		CognitiveError:  30,
		NestingMax:      5,
		MethodLength:    50,
	}
}

// Validate checks warn/error ordering.
func (c ComplexityConfig) Validate() error {
	if c.CyclomaticWarn <= 0 || c.CyclomaticError < c.CyclomaticWarn {
		return fmt.Errorf("invalid cyclomatic thresholds: warn=%d error=%d", c.CyclomaticWarn, c.CyclomaticError)
	}
	if c.CognitiveWarn <= 0 || c.CognitiveError < c.CognitiveWarn {
		return fmt.Errorf("invalid cognitive thresholds: warn=%d error=%d", c.CognitiveWarn, c.CognitiveError)
	}
	return nil
}

// DuplicatesConfig holds MinHash/LSH parameters.
type DuplicatesConfig struct {
	MinTokens           int     `yaml:"min_tokens"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ShingleSize         int     `yaml:"shingle_size"`
	NumHashes           int     `yaml:"num_hashes"`
	NumBands            int     `yaml:"num_bands"`
	RowsPerBand         int     `yaml:"rows_per_band"`
	NormalizeIdents     bool    `yaml:"normalize_identifiers"`
	NormalizeLiterals   bool    `yaml:"normalize_literals"`
	MinGroupSize        int     `yaml:"min_group_size"`
}

// DefaultDuplicatesConfig returns the standard LSH setup (20 bands x 10 rows).
func DefaultDuplicatesConfig() DuplicatesConfig {
	return DuplicatesConfig{
		MinTokens:           50,
		SimilarityThreshold: 0.70,
		ShingleSize:         5,
		NumHashes:           200,
		NumBands:            20,
		RowsPerBand:         10,
		NormalizeIdents:     true,
		NormalizeLiterals:   true,
		MinGroupSize:        2,
	}
}

// Validate requires bands*rows to cover the signature exactly.
func (c DuplicatesConfig) Validate() error {
	if c.NumBands*c.RowsPerBand != c.NumHashes {
		return fmt.Errorf("duplicates: num_bands*rows_per_band (%d*%d) must equal num_hashes (%d)",
			c.NumBands, c.RowsPerBand, c.NumHashes)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("duplicates: similarity_threshold must be in (0,1], got %v", c.SimilarityThreshold)
	}
	if c.ShingleSize <= 0 {
		return fmt.Errorf("duplicates: shingle_size must be positive")
	}
	if c.MinGroupSize < 2 {
		return fmt.Errorf("duplicates: min_group_size must be at least 2")
	}
	return nil
}

// TDGConfig holds Technical Debt Gradient weights and thresholds.
type TDGConfig struct {
	ComplexityWeight  float64 `yaml:"complexity_weight"`
	ChurnWeight       float64 `yaml:"churn_weight"`
	CouplingWeight    float64 `yaml:"coupling_weight"`
	DomainRiskWeight  float64 `yaml:"domain_risk_weight"`
	DuplicationWeight float64 `yaml:"duplication_weight"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	WarningThreshold  float64 `yaml:"warning_threshold"`
}

// DefaultTDGConfig returns the standard weights.
func DefaultTDGConfig() TDGConfig {
	return TDGConfig{
		ComplexityWeight:  0.30,
		ChurnWeight:       0.35,
		CouplingWeight:    0.15,
		DomainRiskWeight:  0.10,
		DuplicationWeight: 0.10,
		CriticalThreshold: 2.5,
		WarningThreshold:  1.5,
	}
}

// Validate requires weights summing to 1.
func (c TDGConfig) Validate() error {
	sum := c.ComplexityWeight + c.ChurnWeight + c.CouplingWeight + c.DomainRiskWeight + c.DuplicationWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("tdg weights must sum to 1.0, got %.3f", sum)
	}
	if c.WarningThreshold >= c.CriticalThreshold {
		return fmt.Errorf("tdg warning_threshold (%.2f) must be below critical_threshold (%.2f)",
			c.WarningThreshold, c.CriticalThreshold)
	}
	return nil
}
