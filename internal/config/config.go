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

	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
)

// Config holds the carscore API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Cache    CacheConfig    `yaml:"cache"`
	Quota    QuotaConfig    `yaml:"quota"`
	Auth     AuthConfig     `yaml:"auth"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig maps API keys to identity keys.
type AuthConfig struct {
	APIKeys map[string]string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Supported record store drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds record store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres, sqlite (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DSN              string   `yaml:"dsn"` // postgres and sqlite only
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IsSQL reports whether the driver is backed by database/sql.
func (d DatabaseConfig) IsSQL() bool {
	return d.Driver == DriverPostgres || d.Driver == DriverSQLite
}

// OracleConfig holds the scoring oracle settings.
type OracleConfig struct {
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	Models       []string `yaml:"models"` // primary first, then fallbacks
	Attempts     int      `yaml:"attempts"`
	BackoffMs    int      `yaml:"backoff_ms"`
	TimeoutSec   int      `yaml:"timeout_sec"`
	Language     string   `yaml:"language"`
	Temperature  float32  `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	JSONMode     bool     `yaml:"json_mode"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// Backoff returns the pause between attempts on one model.
func (o OracleConfig) Backoff() time.Duration {
	return time.Duration(o.BackoffMs) * time.Millisecond
}

// Timeout returns the whole-invocation deadline, zero when unbounded.
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSec) * time.Second
}

// CacheConfig tunes the record lookup.
type CacheConfig struct {
	MaxAgeDays       int     `yaml:"max_age_days"`
	StrictThreshold  float64 `yaml:"strict_threshold"`
	LooseThreshold   float64 `yaml:"loose_threshold"`
	MileageThreshold float64 `yaml:"mileage_threshold"`
}

// MaxAge returns the cache window.
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// QuotaConfig holds daily fresh-analysis limits. An explicit zero disables a limit.
type QuotaConfig struct {
	GlobalDaily      *int   `yaml:"global_daily"`
	PerIdentityDaily *int   `yaml:"per_identity_daily"`
	Timezone         string `yaml:"timezone"` // IANA name, day boundaries (default: UTC)
}

// Limits returns the global and per-identity caps.
func (q QuotaConfig) Limits() (global, perIdentity int) {
	if q.GlobalDaily != nil {
		global = *q.GlobalDaily
	}
	if q.PerIdentityDaily != nil {
		perIdentity = *q.PerIdentityDaily
	}
	return global, perIdentity
}

// Location resolves the quota time zone.
func (q QuotaConfig) Location() (*time.Location, error) {
	if q.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(q.Timezone)
}

// CatalogConfig points at the vehicle catalog.
type CatalogConfig struct {
	Path   string `yaml:"path"`   // empty uses the built-in catalog
	Strict bool   `yaml:"strict"` // reject years outside a model's production range
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // empty disables export
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// above the worst-case oracle loop (2 models x 2 attempts + backoff)
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if len(c.Oracle.Models) == 0 {
		c.Oracle.Models = []string{"gemini-2.5-flash", "gemini-1.5-flash-latest"}
	}
	if c.Oracle.Attempts <= 0 {
		c.Oracle.Attempts = 2
	}
	if c.Oracle.BackoffMs <= 0 {
		c.Oracle.BackoffMs = 1500
	}
	if c.Oracle.TimeoutSec <= 0 {
		c.Oracle.TimeoutSec = 90
	}
	if c.Oracle.Language == "" {
		c.Oracle.Language = "Hebrew"
	}
	if c.Cache.MaxAgeDays <= 0 {
		c.Cache.MaxAgeDays = 45
	}
	if c.Cache.StrictThreshold <= 0 {
		c.Cache.StrictThreshold = 0.97
	}
	if c.Cache.LooseThreshold <= 0 {
		c.Cache.LooseThreshold = 0.93
	}
	if c.Cache.MileageThreshold <= 0 {
		c.Cache.MileageThreshold = 0.92
	}
	if c.Quota.GlobalDaily == nil {
		c.Quota.GlobalDaily = intPtr(1000)
	}
	if c.Quota.PerIdentityDaily == nil {
		c.Quota.PerIdentityDaily = intPtr(5)
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "carscore:"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "carscore"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf(
			"database.driver must be one of valkey, redis, postgres, sqlite, got %q",
			c.Database.Driver,
		)
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle.api_key is required")
	}
	for _, th := range []struct {
		name string
		val  float64
	}{
		{"cache.strict_threshold", c.Cache.StrictThreshold},
		{"cache.loose_threshold", c.Cache.LooseThreshold},
		{"cache.mileage_threshold", c.Cache.MileageThreshold},
	} {
		if th.val > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", th.name, th.val)
		}
	}
	if c.Cache.LooseThreshold > c.Cache.StrictThreshold {
		return fmt.Errorf("cache.loose_threshold (%v) must not exceed cache.strict_threshold (%v)",
			c.Cache.LooseThreshold, c.Cache.StrictThreshold)
	}
	if c.Cache.MaxAgeDays > lookup.MaxWindowDays {
		return fmt.Errorf("cache.max_age_days must not exceed %d, got %d", lookup.MaxWindowDays, c.Cache.MaxAgeDays)
	}
	if g, p := c.Quota.Limits(); g < 0 || p < 0 {
		return fmt.Errorf("quota limits must not be negative")
	}
	if _, err := c.Quota.Location(); err != nil {
		return fmt.Errorf("quota.timezone: %w", err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests and go run from subdirectories
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func intPtr(v int) *int { return &v }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
