package config

import "runtime"

// DiscoveryConfig controls file discovery and parse concurrency.
type DiscoveryConfig struct {
	// Workers caps concurrent file readers and parsers.
	Workers int `yaml:"workers" json:"workers,omitempty"`
	// IgnorePatterns are glob patterns matched against slash-separated relative paths.
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns,omitempty"`
	// RespectGitignore applies .gitignore files found under the root.
	RespectGitignore bool `yaml:"respect_gitignore" json:"respect_gitignore"`
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size,omitempty"`
	// IncludeTests keeps test files in analyzer input.
	IncludeTests bool `yaml:"include_tests" json:"include_tests"`
}

// DefaultDiscoveryConfig returns defaults for file discovery.
func DefaultDiscoveryConfig() DiscoveryConfig {
	workers := runtime.NumCPU()
	if workers > 16 {
		workers = 16
	}
	if workers < 2 {
		workers = 2
	}
	return DiscoveryConfig{
		Workers: workers,
		IgnorePatterns: []string{
			"**/*.min.js",
			"**/*.bundle.js",
			"**/*.pb.go",
		},
		RespectGitignore: true,
		MaxFileSize:      10 * 1024 * 1024,
		IncludeTests:     true,
	}
}
