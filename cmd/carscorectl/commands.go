package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
	carscore "github.com/kailas-cloud/carscore/pkg/sdk"
)

const anonymous = "anonymous"

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		v          carscore.Vehicle
		requester  string
		maxAgeDays int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score a vehicle, reusing a stored answer when one is recent enough",
		Example: `  carscorectl analyze --make Mazda --model Mazda3 --year 2017 --mileage 100-150k
  carscorectl analyze --make Toyota --model Corolla --year 2014 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxAgeDays < 0 || maxAgeDays > lookup.MaxWindowDays {
				return fmt.Errorf("%w: --max-age-days must be in [0, %d]", carscore.ErrValidation, lookup.MaxWindowDays)
			}
			client, err := root.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Analyze(cmd.Context(), carscore.AnalyzeRequest{
				Requester: requester,
				Vehicle:   v,
				MaxAge:    time.Duration(maxAgeDays) * 24 * time.Hour,
			})
			if err != nil {
				return describe(err)
			}
			return render(cmd.OutOrStdout(), root.output, res, func(w *textWriter) { writeResult(w, res) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&v.Make, "make", "", "Manufacturer (required)")
	f.StringVar(&v.Model, "model", "", "Model (required)")
	f.StringVar(&v.SubModel, "sub-model", "", "Trim or sub-model")
	f.IntVar(&v.Year, "year", 0, "Model year (required)")
	f.StringVar(&v.Fuel, "fuel", "", "Fuel type")
	f.StringVar(&v.Transmission, "transmission", "", "Transmission")
	f.StringVar(&v.MileageRange, "mileage", "", `Mileage band, e.g. "100-150k" or "200k+"`)
	f.StringVar(&requester, "requester", anonymous, "Identity charged for a fresh analysis")
	f.IntVar(&maxAgeDays, "max-age-days", 0, "Reuse stored answers up to this age (default from config)")
	_ = cmd.MarkFlagRequired("make")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newUsageCmd(root *rootOptions) *cobra.Command {
	var requester string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's fresh-analysis usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := root.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			rep, err := client.Usage(cmd.Context(), requester)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), root.output, rep, func(w *textWriter) { writeUsage(w, rep) })
		},
	}
	cmd.Flags().StringVar(&requester, "requester", anonymous, "Identity to report on")
	return cmd
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the record store and the oracle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := root.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			h := client.Health(cmd.Context())
			if err := render(cmd.OutOrStdout(), root.output, h, func(w *textWriter) { writeHealth(w, h) }); err != nil {
				return err
			}
			if !h.Serving() {
				return errors.New("record store unavailable")
			}
			return nil
		},
	}
}

type catalogMake struct {
	Make   string                  `json:"make"`
	Models []carscore.CatalogModel `json:"models"`
}

func newCatalogCmd(root *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "catalog [make]",
		Short: "List known makes and models",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			if path != "" {
				var err error
				if cat, err = catalog.Load(path); err != nil {
					return err
				}
			}

			var out []catalogMake
			for _, mk := range cat.Makes() {
				if len(args) == 1 && !strings.EqualFold(mk, strings.TrimSpace(args[0])) {
					continue
				}
				m := catalogMake{Make: mk}
				for _, model := range cat.Models(mk) {
					m.Models = append(m.Models, carscore.CatalogModel{
						Label: model.Label, Name: model.Name, FromYear: model.FromYear, ToYear: model.ToYear,
					})
				}
				out = append(out, m)
			}
			if len(args) == 1 && len(out) == 0 {
				return fmt.Errorf("unknown make %q", args[0])
			}
			return render(cmd.OutOrStdout(), root.output, out, func(w *textWriter) { writeCatalog(w, out) })
		},
	}
	cmd.Flags().StringVar(&path, "file", os.Getenv("CARSCORE_CATALOG"), "Catalog YAML (default: built-in)")
	return cmd
}

// describe adds the retry hint of a quota rejection to the message.
func describe(err error) error {
	var qe *carscore.QuotaExceededError
	if errors.As(err, &qe) && qe.RetryAfter > 0 {
		return fmt.Errorf("%w (resets in %s)", err, qe.RetryAfter.Round(time.Minute))
	}
	return err
}
