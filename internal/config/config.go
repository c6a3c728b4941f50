package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config location relative to the analyzed workspace.
const DefaultPath = ".pmat/config.yaml"

// Config holds all pmat configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Logging    LoggingConfig    `yaml:"logging"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Complexity ComplexityConfig `yaml:"complexity"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
	TDG        TDGConfig        `yaml:"tdg"`
	Churn      ChurnConfig      `yaml:"churn"`
	Cache      CacheConfig      `yaml:"cache"`
	GitHub     GitHubConfig     `yaml:"github"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// ChurnConfig configures git history analysis.
type ChurnConfig struct {
	PeriodDays int `yaml:"period_days"`
	TopFiles   int `yaml:"top_files"`
}

// CacheConfig configures the SQLite analysis cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	TTL     string `yaml:"ttl"`
}

// GitHubConfig configures remote repository analysis.
type GitHubConfig struct {
	Token    string `yaml:"token"`
	CloneDir string `yaml:"clone_dir"`
	Timeout  string `yaml:"timeout"`
	// APIURL overrides the REST endpoint, e.g. for GitHub Enterprise.
	APIURL string `yaml:"api_url"`
}

// MCPConfig configures the MCP stdio server.
type MCPConfig struct {
	ServerName      string `yaml:"server_name"`
	ProtocolVersion string `yaml:"protocol_version"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "pmat",
		Version: "0.21.0",

		Logging: LoggingConfig{
			Level: "info",
		},
		Discovery:  DefaultDiscoveryConfig(),
		Complexity: DefaultComplexityConfig(),
		Duplicates: DefaultDuplicatesConfig(),
		TDG:        DefaultTDGConfig(),
		Churn: ChurnConfig{
			PeriodDays: 30,
			TopFiles:   10,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    ".pmat/cache.db",
			TTL:     "168h",
		},
		GitHub: GitHubConfig{
			CloneDir: filepath.Join(os.TempDir(), "pmat-repos"),
			Timeout:  "5m",
		},
		MCP: MCPConfig{
			ServerName:      "paiml-mcp-agent-toolkit",
			ProtocolVersion: "2024-11-05",
		},
	}
}

// Load reads configuration from a YAML file.
// A missing file yields defaults; env overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies PMAT_* and GITHUB_TOKEN environment variables.
func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}
	if dir := os.Getenv("PMAT_CLONE_DIR"); dir != "" {
		c.GitHub.CloneDir = dir
	}
	if path := os.Getenv("PMAT_CACHE_DB"); path != "" {
		c.Cache.Path = path
	}
	if v := os.Getenv("PMAT_CACHE"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Cache.Enabled = enabled
		}
	}
	if v := os.Getenv("PMAT_DEBUG"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = enabled
		}
	}
	if v := os.Getenv("PMAT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Discovery.Workers = n
		}
	}
	if v := os.Getenv("PMAT_CHURN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Churn.PeriodDays = n
		}
	}
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetCloneTimeout returns the remote clone timeout as a duration.
func (c *Config) GetCloneTimeout() time.Duration {
	d, err := time.ParseDuration(c.GitHub.Timeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Complexity.Validate(); err != nil {
		return err
	}
	if err := c.Duplicates.Validate(); err != nil {
		return err
	}
	if err := c.TDG.Validate(); err != nil {
		return err
	}
	if c.Churn.PeriodDays <= 0 {
		return fmt.Errorf("churn.period_days must be positive, got %d", c.Churn.PeriodDays)
	}
	if c.Discovery.MaxFileSize <= 0 {
		return fmt.Errorf("discovery.max_file_size must be positive, got %d", c.Discovery.MaxFileSize)
	}
	return nil
}
