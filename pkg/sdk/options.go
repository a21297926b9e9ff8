package carscore

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint, for use with WithOracle.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // valkey, redis, postgres, sqlite
	addrs      []string
	password   string
	standalone bool
	dsn        string
	keyPrefix  string

	oracleKey     string
	oracleBaseURL string
	models        []string
	generator     Generator
	attempts      int
	backoff       time.Duration
	oracleTimeout time.Duration
	language      string
	jsonMode      bool

	globalDaily      *int
	perIdentityDaily *int
	location         *time.Location

	cacheMaxAge   time.Duration
	thresholds    [3]float64 // strict, loose, mileage
	catalogPath   string
	strictCatalog bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores records in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores records in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithStandalone disables cluster topology discovery for Valkey/Redis.
func WithStandalone() Option {
	return optionFunc(func(c *clientConfig) {
		c.standalone = true
	})
}

// WithPostgres stores records in PostgreSQL. The table is created on connect.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithSQLite stores records in a SQLite database file (or any modernc.org/sqlite DSN).
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.dsn = dsn
	})
}

// WithKeyPrefix namespaces Valkey/Redis keys. Default: "carscore:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithOracle uses an OpenAI-compatible chat endpoint as the scoring oracle.
// models are tried in order; empty uses the default Gemini pair.
func WithOracle(apiKey, baseURL string, models ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.oracleKey = apiKey
		c.oracleBaseURL = baseURL
		if len(models) > 0 {
			c.models = models
		}
	})
}

// WithModels overrides the model variants, primary first.
func WithModels(models ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.models = models
	})
}

// WithGenerator plugs in a custom text generator instead of WithOracle.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithJSONMode asks the endpoint for a JSON object response format.
func WithJSONMode() Option {
	return optionFunc(func(c *clientConfig) {
		c.jsonMode = true
	})
}

// WithRetry sets attempts per model and the pause between them.
// Defaults: 2 attempts, 1.5s.
func WithRetry(attempts int, backoff time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.attempts = attempts
		c.backoff = backoff
	})
}

// WithOracleTimeout bounds a whole oracle invocation, retries included.
func WithOracleTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.oracleTimeout = d
	})
}

// WithLanguage sets the language of free-text answer fields. Default: Hebrew.
func WithLanguage(lang string) Option {
	return optionFunc(func(c *clientConfig) {
		c.language = lang
	})
}

// WithQuota sets the daily fresh-analysis caps. Zero disables a cap.
// Defaults: 1000 global, 5 per identity.
func WithQuota(globalDaily, perIdentityDaily int) Option {
	return optionFunc(func(c *clientConfig) {
		c.globalDaily = &globalDaily
		c.perIdentityDaily = &perIdentityDaily
	})
}

// WithQuotaLocation sets where quota days start. Default: UTC.
func WithQuotaLocation(loc *time.Location) Option {
	return optionFunc(func(c *clientConfig) {
		c.location = loc
	})
}

// WithCacheMaxAge sets how old a stored answer may be and still be reused. Default: 45 days.
func WithCacheMaxAge(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheMaxAge = d
	})
}

// WithCacheThresholds sets the similarity a stored answer needs to be reused:
// strict with the sub-model, loose without it, and the mileage-band match.
// Zero keeps a default (0.97, 0.93, 0.92).
func WithCacheThresholds(strict, loose, mileage float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.thresholds = [3]float64{strict, loose, mileage}
	})
}

// WithCatalog loads the vehicle catalog from a YAML file.
func WithCatalog(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.catalogPath = path
	})
}

// WithStrictCatalog rejects years outside a known model's production range.
func WithStrictCatalog() Option {
	return optionFunc(func(c *clientConfig) {
		c.strictCatalog = true
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
