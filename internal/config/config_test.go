package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Oracle:   OracleConfig{APIKey: "test-key"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing addrs")
	}
	if err.Error() != `database.addrs is required for driver "valkey"` {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestValidate_SQLDriversNeedDSN(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := validConfig()
			cfg.Database.Driver = driver
			cfg.Database.Addrs = nil

			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error without dsn")
			}

			cfg.Database.DSN = "file:carscore.db"
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error with dsn: %v", err)
			}
			if !cfg.Database.IsSQL() {
				t.Error("expected IsSQL")
			}
		})
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mongo"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), `got "mongo"`) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestValidate_MissingOracleKey(t *testing.T) {
	cfg := validConfig()
	cfg.Oracle.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing oracle key")
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.StrictThreshold = 1.2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for threshold above 1")
	}

	cfg = validConfig()
	cfg.Cache.StrictThreshold = 0.9
	cfg.Cache.LooseThreshold = 0.95
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for loose above strict")
	}
}

func TestValidate_NegativeQuota(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.PerIdentityDaily = intPtr(-1)

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative quota")
	}
}

func TestValidate_CacheWindowTooLong(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.MaxAgeDays = 1 << 40

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "cache.max_age_days") {
		t.Fatalf("expected cache.max_age_days error, got %v", err)
	}
}

func TestValidate_BadTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.Timezone = "Mars/Olympus"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != DriverValkey {
		t.Errorf("expected driver valkey, got %q", cfg.Database.Driver)
	}
	if len(cfg.Oracle.Models) != 2 || cfg.Oracle.Models[0] != "gemini-2.5-flash" {
		t.Errorf("unexpected models: %v", cfg.Oracle.Models)
	}
	if cfg.Oracle.Attempts != 2 {
		t.Errorf("expected Attempts=2, got %d", cfg.Oracle.Attempts)
	}
	if cfg.Oracle.Backoff().Milliseconds() != 1500 {
		t.Errorf("expected 1500ms backoff, got %v", cfg.Oracle.Backoff())
	}
	if cfg.Cache.MaxAge().Hours() != 45*24 {
		t.Errorf("expected 45 day cache window, got %v", cfg.Cache.MaxAge())
	}
	if cfg.Cache.StrictThreshold != 0.97 || cfg.Cache.LooseThreshold != 0.93 || cfg.Cache.MileageThreshold != 0.92 {
		t.Errorf("unexpected thresholds: %+v", cfg.Cache)
	}
	if g, p := cfg.Quota.Limits(); g != 1000 || p != 5 {
		t.Errorf("expected limits 1000/5, got %d/%d", g, p)
	}
	if cfg.Storage.KeyPrefix != "carscore:" {
		t.Errorf("expected KeyPrefix='carscore:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Oracle:  OracleConfig{Models: []string{"gpt-4o-mini"}, Attempts: 3},
		Quota:   QuotaConfig{GlobalDaily: intPtr(0), PerIdentityDaily: intPtr(20)},
		Storage: StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if len(cfg.Oracle.Models) != 1 || cfg.Oracle.Attempts != 3 {
		t.Errorf("oracle settings overridden: %+v", cfg.Oracle)
	}
	// an explicit zero disables the global cap
	if g, p := cfg.Quota.Limits(); g != 0 || p != 20 {
		t.Errorf("expected limits 0/20, got %d/%d", g, p)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CARSCORE_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${CARSCORE_TEST_KEY}\nb: ${CARSCORE_TEST_UNSET:-fallback}\nc: ${CARSCORE_TEST_UNSET}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("CARSCORE_TEST_ORACLE_KEY", "k-123")
	path := filepath.Join(t.TempDir(), "test.yaml")
	data := `
http:
  port: 9090
database:
  driver: sqlite
  dsn: "file:records.db"
oracle:
  api_key: ${CARSCORE_TEST_ORACLE_KEY}
quota:
  per_identity_daily: 3
  timezone: Asia/Jerusalem
auth:
  api_keys:
    key-a: alice
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.Database.Driver != DriverSQLite {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Oracle.APIKey != "k-123" {
		t.Errorf("env not expanded: %q", cfg.Oracle.APIKey)
	}
	if g, p := cfg.Quota.Limits(); g != 1000 || p != 3 {
		t.Errorf("expected limits 1000/3, got %d/%d", g, p)
	}
	loc, err := cfg.Quota.Location()
	if err != nil || loc.String() != "Asia/Jerusalem" {
		t.Errorf("unexpected location %v (%v)", loc, err)
	}
	if cfg.Auth.APIKeys["key-a"] != "alice" {
		t.Errorf("unexpected auth keys: %v", cfg.Auth.APIKeys)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if err == nil || !strings.HasPrefix(err.Error(), "invalid config:") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local, got %q", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}
