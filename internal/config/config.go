package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "CQL_CONFIG"

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Templates TemplatesConfig `yaml:"templates"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Cache     CacheConfig     `yaml:"cache"`
	Security  SecurityConfig  `yaml:"security"`
	History   HistoryConfig   `yaml:"history"`
	Audit     AuditConfig     `yaml:"audit"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type TemplatesConfig struct {
	// Dir overrides the default template directory.
	Dir string `yaml:"dir,omitempty"`
}

type OptimizerConfig struct {
	Mode              string  `yaml:"mode"`
	Goal              string  `yaml:"goal"`
	Domain            string  `yaml:"domain"`
	Model             string  `yaml:"model,omitempty"`
	Temperature       float64 `yaml:"temperature"`
	ValidateSemantics bool    `yaml:"validate_semantics"`
	DailyBudget       float64 `yaml:"daily_budget"`
	MonthlyBudget     float64 `yaml:"monthly_budget"`
}

type CacheConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MaxEntries     int    `yaml:"max_entries"`
	MaxMemoryMB    int    `yaml:"max_memory_mb"`
	TTLHours       int    `yaml:"ttl_hours"`
	EvictionPolicy string `yaml:"eviction_policy"` // "lru", "lfu", "ttl" or "mixed"
}

type SecurityConfig struct {
	// AllowedPaths restricts where compiled output may be written.
	// Empty means no restriction.
	AllowedPaths []string `yaml:"allowed_paths"`
	// BlockedPatterns are rejected in template variable values in
	// addition to the built-in injection tables.
	BlockedPatterns []string `yaml:"blocked_patterns,omitempty"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir,omitempty"`
	RetentionDays int    `yaml:"retention_days"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Optimizer: OptimizerConfig{
			Mode:              "cached_llm",
			Goal:              "balanced",
			Domain:            "general",
			Temperature:       0.1,
			ValidateSemantics: true,
			DailyBudget:       1.0,
			MonthlyBudget:     25.0,
		},
		Cache: CacheConfig{
			Enabled:        true,
			MaxEntries:     1000,
			MaxMemoryMB:    64,
			TTLHours:       24,
			EvictionPolicy: "mixed",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled:       false,
			RetentionDays: 30,
		},
	}
}

// ConfigDir returns the directory holding CQL state: config, history,
// audit files and the provider catalog.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cql"
	}
	return filepath.Join(home, ".cql")
}

// ConfigPath returns the config file location, honoring CQL_CONFIG.
func ConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ProvidersPath returns the provider catalog location.
func ProvidersPath() string {
	return filepath.Join(ConfigDir(), "providers.yaml")
}

// HistoryPath returns the run history database location, honoring the
// configured override.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(ConfigDir(), "history.db")
}

// AuditDir returns the audit trail directory, honoring the configured
// override. Empty when auditing is disabled.
func (c *Config) AuditDir() string {
	if !c.Audit.Enabled {
		return ""
	}
	if c.Audit.Dir != "" {
		return c.Audit.Dir
	}
	return filepath.Join(ConfigDir(), "audit")
}

// Load reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, or the default location when path
// is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadEnvFile reads KEY=VALUE lines from a .env style file and sets
// any variable not already present in the environment. Lines starting
// with # and blank lines are skipped.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
