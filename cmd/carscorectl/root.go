package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/carscore/internal/config"
	"github.com/kailas-cloud/carscore/internal/version"
	carscore "github.com/kailas-cloud/carscore/pkg/sdk"
)

// Exit codes.
const (
	exitFailure  = 1
	exitRejected = 2 // validation or quota
)

type rootOptions struct {
	configPath string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "carscorectl",
		Short:         "Vehicle reliability scoring from the command line",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.output != outputText && opts.output != outputJSON {
				return fmt.Errorf("--output must be %q or %q, got %q", outputText, outputJSON, opts.output)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: config/<ENV>.yaml)")
	pf.StringVarP(&opts.output, "output", "o", outputText, "Output format: text or json")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log SDK operations to stderr")

	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newUsageCmd(opts))
	root.AddCommand(newHealthCmd(opts))
	root.AddCommand(newCatalogCmd(opts))
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(config.GetEnv())
}

// openClient connects to the configured record store.
func (o *rootOptions) openClient(ctx context.Context) (*carscore.Client, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	opts, err := clientOptions(&cfg)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		opts = append(opts, carscore.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	return carscore.New(ctx, opts...)
}

// clientOptions maps the service config onto SDK options.
func clientOptions(cfg *config.Config) ([]carscore.Option, error) {
	var opts []carscore.Option

	db := cfg.Database
	switch db.Driver {
	case config.DriverValkey:
		opts = append(opts, carscore.WithValkey(db.Addrs[0], db.Password))
	case config.DriverRedis:
		opts = append(opts, carscore.WithRedis(db.Addrs[0], db.Password))
	case config.DriverPostgres:
		opts = append(opts, carscore.WithPostgres(db.DSN))
	case config.DriverSQLite:
		opts = append(opts, carscore.WithSQLite(db.DSN))
	default:
		return nil, fmt.Errorf("unsupported driver %q", db.Driver)
	}
	if !db.IsSQL() && len(db.Addrs) == 1 {
		opts = append(opts, carscore.WithStandalone())
	}

	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, err
	}
	global, perIdentity := cfg.Quota.Limits()

	o := cfg.Oracle
	opts = append(opts,
		carscore.WithKeyPrefix(cfg.Storage.KeyPrefix),
		carscore.WithOracle(o.APIKey, o.BaseURL, o.Models...),
		carscore.WithRetry(o.Attempts, o.Backoff()),
		carscore.WithOracleTimeout(o.Timeout()),
		carscore.WithLanguage(o.Language),
		carscore.WithQuota(global, perIdentity),
		carscore.WithQuotaLocation(loc),
		carscore.WithCacheMaxAge(cfg.Cache.MaxAge()),
		carscore.WithCacheThresholds(cfg.Cache.StrictThreshold, cfg.Cache.LooseThreshold, cfg.Cache.MileageThreshold),
	)
	if o.JSONMode {
		opts = append(opts, carscore.WithJSONMode())
	}
	if cfg.Catalog.Path != "" {
		opts = append(opts, carscore.WithCatalog(cfg.Catalog.Path))
	}
	if cfg.Catalog.Strict {
		opts = append(opts, carscore.WithStrictCatalog())
	}
	return opts, nil
}

func exitCode(err error) int {
	if errors.Is(err, carscore.ErrValidation) || errors.Is(err, carscore.ErrQuotaExceeded) {
		return exitRejected
	}
	return exitFailure
}
