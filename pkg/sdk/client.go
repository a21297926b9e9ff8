package carscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/carscore/internal/db/redis"
	"github.com/kailas-cloud/carscore/internal/db/sqldb"
	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	domusage "github.com/kailas-cloud/carscore/internal/domain/usage"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
	recordrepo "github.com/kailas-cloud/carscore/internal/repository/record"
	"github.com/kailas-cloud/carscore/internal/repository/recordsql"
	openaiGen "github.com/kailas-cloud/carscore/internal/transport/openai"
	"github.com/kailas-cloud/carscore/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/carscore/internal/usecase/health"
	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
	"github.com/kailas-cloud/carscore/internal/usecase/oracle"
	"github.com/kailas-cloud/carscore/internal/usecase/quota"
	usageuc "github.com/kailas-cloud/carscore/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "carscore:"
)

// Internal interfaces, swapped for mocks in tests.
type analysisUseCase interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error)
}

type usageUseCase interface {
	GetReport(ctx context.Context, identity string) (domusage.Report, error)
}

// recordStore is everything the services need from the record backend.
type recordStore interface {
	lookup.Repository
	quota.Counter
	analysis.RecordWriter
	healthuc.StorePinger
	Close()
}

type redisRecords struct {
	*recordrepo.Repo
	*dbRedis.Store
}

type sqlRecords struct {
	*recordsql.Repo
	*sqldb.DB
}

// Client is the carscore SDK entry point.
type Client struct {
	store       recordStore
	analysisSvc analysisUseCase
	usageSvc    usageUseCase
	healthSvc   healthUseCase
	catalog     catalog.Catalog
	obs         *observer
}

// New creates a Client, connects to the record store and prepares it.
// The provided context is used for the readiness check and migrations.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix, location: time.UTC}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("carscore: record store required (use WithValkey, WithRedis, WithPostgres or WithSQLite)")
	}
	if cfg.generator == nil && cfg.oracleKey == "" {
		return nil, errors.New("carscore: oracle required (use WithOracle or WithGenerator)")
	}

	cat := catalog.Default()
	if cfg.catalogPath != "" {
		var err error
		if cat, err = catalog.Load(cfg.catalogPath); err != nil {
			return nil, fmt.Errorf("carscore: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return wireClient(store, cfg, cat, obs), nil
}

func openStore(ctx context.Context, cfg *clientConfig) (recordStore, error) {
	switch cfg.driver {
	case "valkey", "redis":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, fmt.Errorf("carscore: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			Standalone: cfg.standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("carscore: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("carscore: database not ready: %w", err)
		}
		return redisRecords{Repo: recordrepo.New(s, cfg.keyPrefix), Store: s}, nil

	case "postgres", "sqlite":
		d, err := sqldb.Open(sqldb.Config{Driver: cfg.driver, DSN: cfg.dsn})
		if err != nil {
			return nil, fmt.Errorf("carscore: %w", err)
		}
		if err := d.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			d.Close()
			return nil, fmt.Errorf("carscore: database not ready: %w", err)
		}
		repo := recordsql.New(d)
		if err := repo.Migrate(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("carscore: %w", err)
		}
		return sqlRecords{Repo: repo, DB: d}, nil

	default:
		return nil, fmt.Errorf("carscore: unknown driver %q", cfg.driver)
	}
}

func wireClient(store recordStore, cfg *clientConfig, cat catalog.Catalog, obs *observer) *Client {
	var (
		gen     oracle.Generator = cfg.generator
		checker healthuc.OracleChecker
	)
	if gen == nil {
		og := openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:   cfg.oracleKey,
			BaseURL:  cfg.oracleBaseURL,
			JSONMode: cfg.jsonMode,
		})
		gen, checker = og, og
	} else if hc, ok := cfg.generator.(healthuc.OracleChecker); ok {
		checker = hc
	}

	policy := oracle.DefaultPolicy()
	if len(cfg.models) > 0 {
		policy.Variants = cfg.models
	}
	if cfg.attempts > 0 {
		policy.Attempts = cfg.attempts
	}
	if cfg.backoff > 0 {
		policy.Backoff = cfg.backoff
	}
	invoker := oracle.NewInvoker(gen, policy, cfg.oracleTimeout, zap.NewNop())

	qcfg := quota.Config{
		GlobalDaily:      quota.DefaultGlobalDaily,
		PerIdentityDaily: quota.DefaultPerIdentityDaily,
		Location:         cfg.location,
	}
	if cfg.globalDaily != nil {
		qcfg.GlobalDaily = *cfg.globalDaily
	}
	if cfg.perIdentityDaily != nil {
		qcfg.PerIdentityDaily = *cfg.perIdentityDaily
	}
	enforcer := quota.New(store, qcfg)

	engine := lookup.New(store, lookup.Config{
		StrictThreshold:  cfg.thresholds[0],
		LooseThreshold:   cfg.thresholds[1],
		MileageThreshold: cfg.thresholds[2],
		MaxAge:           cfg.cacheMaxAge,
	})

	analysisSvc := analysis.New(engine, enforcer, invoker, store, cat, analysis.Config{
		Language:      cfg.language,
		StrictCatalog: cfg.strictCatalog,
	}, zap.NewNop())

	return &Client{
		store:       store,
		analysisSvc: analysisSvc,
		usageSvc:    usageuc.New(enforcer),
		healthSvc:   healthuc.New(store, checker),
		catalog:     cat,
		obs:         obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Analyze answers a reliability request from the cache or a fresh oracle call.
// Errors wrap ErrValidation, ErrQuotaExceeded, ErrStoreUnavailable or
// ErrOracleExhausted inside a *StageError.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (res Result, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("analyze", start, err, "requester", req.Requester, "source", string(res.Provenance.Source))
	}()

	resp, err := c.analysisSvc.Analyze(ctx, analysis.Request{
		Requester: req.Requester,
		Vehicle:   vehicle.Fields(req.Vehicle),
		MaxAge:    req.MaxAge,
	})
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}

	res, err = resultFrom(resp)
	if err != nil {
		return Result{}, err
	}
	c.obs.answered(res.Provenance.Source)
	return res, nil
}

func resultFrom(resp analysis.Response) (Result, error) {
	payload, err := json.Marshal(resp.Assessment)
	if err != nil {
		return Result{}, fmt.Errorf("encode assessment: %w", err)
	}

	p := resp.Provenance
	res := Result{
		RecordID:     resp.RecordID,
		Vehicle:      Vehicle(resp.Identity.Fields()),
		Breakdown:    resp.Assessment.Breakdown(),
		Summary:      resp.Assessment.Summary(),
		Issues:       resp.Assessment.Issues(),
		Assessment:   payload,
		MileageDelta: resp.Mileage.Delta,
		MileageNote:  resp.Mileage.Note,
		Provenance: Provenance{
			Source:          Source(p.Source),
			Tag:             p.Tag(),
			CachedAt:        p.CachedAt,
			UsedFallback:    p.UsedFallback,
			MileageMismatch: p.MileageMismatch,
			Corroborating:   p.Corroborating,
			Model:           p.Model,
			Attempts:        p.Attempts,
			Repaired:        p.Repaired,
		},
	}
	if score, ok := resp.Assessment.BaseScore(); ok {
		res.BaseScore = &score
	}
	if p.Usage != nil {
		res.Provenance.UsageCount = p.Usage.Count
		res.Provenance.UsageLimit = max(p.Usage.Limit, 0)
	}
	return res, nil
}

// Makes lists the catalog makes in alphabetical order.
func (c *Client) Makes() []string {
	return c.catalog.Makes()
}

// Models lists the catalog models of a make; nil for an unknown make.
func (c *Client) Models(mk string) []CatalogModel {
	models := c.catalog.Models(mk)
	if models == nil {
		return nil
	}
	out := make([]CatalogModel, len(models))
	for i, m := range models {
		out[i] = CatalogModel{Label: m.Label, Name: m.Name, FromYear: m.FromYear, ToYear: m.ToYear}
	}
	return out
}
