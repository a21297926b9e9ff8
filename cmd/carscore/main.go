package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/carscore/internal/config"
	dbRedis "github.com/kailas-cloud/carscore/internal/db/redis"
	"github.com/kailas-cloud/carscore/internal/db/sqldb"
	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/carscore/internal/logger"
	"github.com/kailas-cloud/carscore/internal/metrics"
	recordrepo "github.com/kailas-cloud/carscore/internal/repository/record"
	"github.com/kailas-cloud/carscore/internal/repository/recordsql"
	"github.com/kailas-cloud/carscore/internal/tracing"
	chiTransport "github.com/kailas-cloud/carscore/internal/transport/chi"
	openaiGen "github.com/kailas-cloud/carscore/internal/transport/openai"
	"github.com/kailas-cloud/carscore/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/carscore/internal/usecase/health"
	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
	"github.com/kailas-cloud/carscore/internal/usecase/oracle"
	"github.com/kailas-cloud/carscore/internal/usecase/quota"
	usageuc "github.com/kailas-cloud/carscore/internal/usecase/usage"
	"github.com/kailas-cloud/carscore/internal/version"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting carscore API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("oracle_models", cfg.Oracle.Models),
	)

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.OTLPEndpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.Version,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	store, err := openRecordStore(ctx, cfg.Database, cfg.Storage.KeyPrefix)
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Connected to record store")

	metrics.RegisterHTTPMetrics()
	metrics.RegisterOracleMetrics()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			logger.Fatal("Failed to load catalog", zap.Error(err))
		}
	}
	logger.Info("Catalog loaded", zap.Int("makes", cat.Len()), zap.Bool("strict", cfg.Catalog.Strict))

	loc, _ := cfg.Quota.Location() // checked by Validate
	globalDaily, perIdentityDaily := cfg.Quota.Limits()
	enforcer := quota.New(store, quota.Config{
		GlobalDaily:      globalDaily,
		PerIdentityDaily: perIdentityDaily,
		Location:         loc,
	})

	engine := lookup.New(store, lookup.Config{
		StrictThreshold:  cfg.Cache.StrictThreshold,
		LooseThreshold:   cfg.Cache.LooseThreshold,
		MileageThreshold: cfg.Cache.MileageThreshold,
		MaxAge:           cfg.Cache.MaxAge(),
	})

	generator := openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:       cfg.Oracle.APIKey,
		BaseURL:      cfg.Oracle.BaseURL,
		Temperature:  cfg.Oracle.Temperature,
		MaxTokens:    cfg.Oracle.MaxTokens,
		SystemPrompt: cfg.Oracle.SystemPrompt,
		JSONMode:     cfg.Oracle.JSONMode,
		Logger:       logger,
	})
	invoker := oracle.NewInvoker(generator, oracle.Policy{
		Variants: cfg.Oracle.Models,
		Attempts: cfg.Oracle.Attempts,
		Backoff:  cfg.Oracle.Backoff(),
	}, cfg.Oracle.Timeout(), logger)

	analysisSvc := analysis.New(engine, enforcer, invoker, store, cat, analysis.Config{
		Language:      cfg.Oracle.Language,
		StrictCatalog: cfg.Catalog.Strict,
	}, logger)
	usageSvc := usageuc.New(enforcer)
	healthSvc := healthuc.New(store, generator)

	server := chiTransport.NewServer(analysisSvc, usageSvc, healthSvc, cat, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(tracing.Middleware)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.IdentityMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	if worst := invoker.Policy().WorstCase(); srv.WriteTimeout > 0 && srv.WriteTimeout < worst {
		logger.Warn("HTTP write timeout is below the worst-case oracle retry time",
			zap.Duration("write_timeout", srv.WriteTimeout),
			zap.Duration("oracle_worst_case", worst),
		)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
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

// openRecordStore connects the configured backend, waits for it and runs migrations.
func openRecordStore(ctx context.Context, cfg config.DatabaseConfig, prefix string) (recordStore, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		st, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		if err := st.WaitForReady(ctx, readiness); err != nil {
			st.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		return redisRecords{Repo: recordrepo.New(st, prefix), Store: st}, nil

	case config.DriverPostgres, config.DriverSQLite:
		d, err := sqldb.Open(sqldb.Config{Driver: cfg.Driver, DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		if err := d.WaitForReady(ctx, readiness); err != nil {
			d.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		repo := recordsql.New(d)
		if err := repo.Migrate(ctx); err != nil {
			d.Close()
			return nil, err
		}
		return sqlRecords{Repo: repo, DB: d}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"code":      "internal_error",
						"message":   "internal error",
						"retriable": false,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
