package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the examharvest run configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Key        KeyConfig        `yaml:"key"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Bound      BoundConfig      `yaml:"bound"`
	Harvest    HarvestConfig    `yaml:"harvest"`
	Export     ExportConfig     `yaml:"export"`
	Database   DatabaseConfig   `yaml:"database"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServiceConfig describes the upstream lookup endpoint.
type ServiceConfig struct {
	BaseURL     string `yaml:"base_url"`
	ComponentID string `yaml:"component_id"`
	PageID      string `yaml:"page_id"`
	KeyParam    string `yaml:"key_param"`
	Year        string `yaml:"year"`
	Type        string `yaml:"type"`
	UserAgent   string `yaml:"user_agent"`
}

// FetchConfig holds concurrency, rate and retry settings.
type FetchConfig struct {
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	TimeoutSec        int     `yaml:"timeout_sec"`
	Retries           *int    `yaml:"retries"` // additional attempts after the first (default 2)
	BackoffBaseMs     int     `yaml:"backoff_base_ms"`
	UnhealthyAfter    int     `yaml:"unhealthy_after"` // consecutive transport failures
}

// KeyConfig holds identifier widths.
type KeyConfig struct {
	PrefixWidth int `yaml:"prefix_width"`
	SuffixWidth int `yaml:"suffix_width"`
}

// DiscoveryConfig holds the candidate prefix range and probe suffix.
type DiscoveryConfig struct {
	FirstPrefix int `yaml:"first_prefix"`
	LastPrefix  int `yaml:"last_prefix"`
	ProbeSuffix int `yaml:"probe_suffix"`
}

// BoundConfig holds the suffix search range.
type BoundConfig struct {
	Low          int    `yaml:"low"`
	High         int    `yaml:"high"`
	Strategy     string `yaml:"strategy"`      // binary (default) | exponential
	VerifyWindow int    `yaml:"verify_window"` // 0 = off
}

// HarvestConfig holds harvest batching settings.
type HarvestConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// ExportConfig holds exporter settings. Empty values disable an exporter.
type ExportConfig struct {
	XLSXPath      string `yaml:"xlsx_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table"`
}

// DatabaseConfig holds checkpoint store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"` // Valkey or Redis; empty = checkpointing disabled
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CheckpointConfig holds checkpoint settings.
type CheckpointConfig struct {
	TTLHours int  `yaml:"ttl_hours"`
	Reset    bool `yaml:"reset"` // ignore and clear saved progress before the run
}

// MetricsConfig holds the status listener settings.
type MetricsConfig struct {
	Port    int      `yaml:"port"`     // 0 = disabled
	APIKeys []string `yaml:"api_keys"` // protect /progress; empty = open
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Timeout returns the per-request timeout.
func (c FetchConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// RetryBudget returns the number of additional attempts after the first.
func (c FetchConfig) RetryBudget() int {
	if c.Retries == nil {
		return 0
	}
	return *c.Retries
}

// BackoffBase returns the retry backoff base.
func (c FetchConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// TTL returns the checkpoint TTL.
func (c CheckpointConfig) TTL() time.Duration { return time.Duration(c.TTLHours) * time.Hour }

// CheckpointEnabled reports whether a checkpoint store is configured.
func (c *Config) CheckpointEnabled() bool { return len(c.Database.Addrs) > 0 }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = "https://vietnamnet.vn/newsapi-edu/EducationStudentScore/CheckCandidateNumber"
	}
	if c.Service.ComponentID == "" {
		c.Service.ComponentID = "COMPONENT002298"
	}
	if c.Service.PageID == "" {
		c.Service.PageID = "fa4119c27edb45558886cde08459bb1b"
	}
	if c.Service.KeyParam == "" {
		c.Service.KeyParam = "sbd"
	}
	if c.Service.Year == "" {
		c.Service.Year = "2024"
	}
	if c.Service.Type == "" {
		c.Service.Type = "2"
	}
	if c.Service.UserAgent == "" {
		c.Service.UserAgent = "Mozilla/5.0"
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 5
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 10
	}
	if c.Fetch.Retries == nil {
		retries := 2
		c.Fetch.Retries = &retries
	}
	if c.Fetch.BackoffBaseMs <= 0 {
		c.Fetch.BackoffBaseMs = 500
	}
	if c.Fetch.UnhealthyAfter <= 0 {
		c.Fetch.UnhealthyAfter = 50
	}
	if c.Key.PrefixWidth <= 0 {
		c.Key.PrefixWidth = 2
	}
	if c.Key.SuffixWidth <= 0 {
		c.Key.SuffixWidth = 6
	}
	if c.Discovery.FirstPrefix <= 0 {
		c.Discovery.FirstPrefix = 1
	}
	if c.Discovery.LastPrefix <= 0 {
		c.Discovery.LastPrefix = 64
	}
	if c.Discovery.ProbeSuffix <= 0 {
		c.Discovery.ProbeSuffix = 1
	}
	if c.Bound.Low <= 0 {
		c.Bound.Low = 1
	}
	if c.Bound.High <= 0 {
		c.Bound.High = 150_000
	}
	if c.Bound.Strategy == "" {
		c.Bound.Strategy = "binary"
	}
	if c.Harvest.BatchSize <= 0 {
		c.Harvest.BatchSize = 1000
	}
	if c.Export.XLSXPath == "" {
		c.Export.XLSXPath = fmt.Sprintf("national_exam_%s.xlsx", c.Service.Year)
	}
	if c.Export.PostgresTable == "" {
		c.Export.PostgresTable = "exam_scores"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Checkpoint.TTLHours <= 0 {
		c.Checkpoint.TTLHours = 72
	}
	// unset ${VAR} references expand to empty entries
	keys := c.Metrics.APIKeys[:0]
	for _, k := range c.Metrics.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	c.Metrics.APIKeys = keys
}

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Discovery.FirstPrefix > c.Discovery.LastPrefix {
		return fmt.Errorf("discovery.first_prefix %d exceeds discovery.last_prefix %d",
			c.Discovery.FirstPrefix, c.Discovery.LastPrefix)
	}
	if c.Bound.Low > c.Bound.High {
		return fmt.Errorf("bound.low %d exceeds bound.high %d", c.Bound.Low, c.Bound.High)
	}
	switch c.Bound.Strategy {
	case "binary", "exponential":
		// ok
	default:
		return fmt.Errorf("bound.strategy must be \"binary\" or \"exponential\", got %q", c.Bound.Strategy)
	}
	if c.Fetch.RetryBudget() < 0 || c.Fetch.RetryBudget() > 10 {
		return fmt.Errorf("fetch.retries must be between 0 and 10, got %d", c.Fetch.RetryBudget())
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must be >= 0, got %v", c.Fetch.RequestsPerSecond)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}
	switch strings.ToLower(filepath.Ext(c.Export.XLSXPath)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		// ok
	default:
		return fmt.Errorf("export.xlsx_path %q must end in .xlsx, .xlsm, .xltx or .xltm", c.Export.XLSXPath)
	}
	if !tableNameRegex.MatchString(c.Export.PostgresTable) {
		return fmt.Errorf("export.postgres_table %q is not a plain lowercase identifier", c.Export.PostgresTable)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
