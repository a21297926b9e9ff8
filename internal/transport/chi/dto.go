package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	domusage "github.com/kailas-cloud/carscore/internal/domain/usage"
	"github.com/kailas-cloud/carscore/internal/domain/usage/budget"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
	"github.com/kailas-cloud/carscore/internal/usecase/analysis"
)

// yearValue accepts a model year as a JSON number or string.
type yearValue struct {
	raw string
}

func (y *yearValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		y.raw = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("year: %w", err)
		}
		y.raw = s
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("year must be a number or a string")
		}
		y.raw = n.String()
	}
	return nil
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	SubModel     string    `json:"sub_model,omitempty"`
	Year         yearValue `json:"year"`
	Fuel         string    `json:"fuel,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	MileageRange string    `json:"mileage_range,omitempty"`
	MaxAgeDays   *int      `json:"max_age_days,omitempty"`
}

func (req AnalyzeRequest) toFields() (vehicle.Fields, error) {
	year, err := vehicle.ParseYear(req.Year.raw)
	if err != nil {
		return vehicle.Fields{}, err
	}
	return vehicle.Fields{
		Make:         req.Make,
		Model:        req.Model,
		SubModel:     req.SubModel,
		Year:         year,
		Fuel:         req.Fuel,
		Transmission: req.Transmission,
		MileageRange: req.MileageRange,
	}, nil
}

// VehicleResponse is the normalized identity echoed back.
type VehicleResponse struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	SubModel     string `json:"sub_model,omitempty"`
	Year         int    `json:"year"`
	Fuel         string `json:"fuel,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	MileageRange string `json:"mileage_range,omitempty"`
}

// MileageResponse reports the mileage-band adjustment.
type MileageResponse struct {
	Delta int    `json:"delta"`
	Note  string `json:"note,omitempty"`
}

// UsageCounter is today's fresh-analysis count for the caller.
type UsageCounter struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// ProvenanceResponse describes where an answer came from.
type ProvenanceResponse struct {
	Source          string        `json:"source"`
	Tag             string        `json:"tag"`
	CachedAt        *time.Time    `json:"cached_at,omitempty"`
	UsedFallback    bool          `json:"used_fallback"`
	MileageMismatch bool          `json:"mileage_mismatch"`
	Corroborating   int           `json:"corroborating,omitempty"`
	Model           string        `json:"model,omitempty"`
	Attempts        int           `json:"attempts,omitempty"`
	Repaired        bool          `json:"repaired,omitempty"`
	Usage           *UsageCounter `json:"usage,omitempty"`
}

// AnalyzeResponse is the body of a successful analysis.
type AnalyzeResponse struct {
	RecordID   string                `json:"record_id"`
	Vehicle    VehicleResponse       `json:"vehicle"`
	BaseScore  *float64              `json:"base_score"`
	Assessment assessment.Assessment `json:"assessment"`
	Mileage    MileageResponse       `json:"mileage"`
	Provenance ProvenanceResponse    `json:"provenance"`
}

func analyzeResponseFrom(resp analysis.Response) AnalyzeResponse {
	f := resp.Identity.Fields()
	out := AnalyzeResponse{
		RecordID: resp.RecordID,
		Vehicle: VehicleResponse{
			Make:         f.Make,
			Model:        f.Model,
			SubModel:     f.SubModel,
			Year:         f.Year,
			Fuel:         f.Fuel,
			Transmission: f.Transmission,
			MileageRange: f.MileageRange,
		},
		Assessment: resp.Assessment,
		Mileage:    MileageResponse{Delta: resp.Mileage.Delta, Note: resp.Mileage.Note},
	}
	if score, ok := resp.Assessment.BaseScore(); ok {
		out.BaseScore = &score
	}

	p := resp.Provenance
	out.Provenance = ProvenanceResponse{
		Source:          string(p.Source),
		Tag:             p.Tag(),
		UsedFallback:    p.UsedFallback,
		MileageMismatch: p.MileageMismatch,
		Corroborating:   p.Corroborating,
		Model:           p.Model,
		Attempts:        p.Attempts,
		Repaired:        p.Repaired,
	}
	if !p.CachedAt.IsZero() {
		at := p.CachedAt.UTC()
		out.Provenance.CachedAt = &at
	}
	if p.Usage != nil {
		out.Provenance.Usage = &UsageCounter{Count: p.Usage.Count, Limit: p.Usage.Limit}
	}
	return out
}

// BudgetResponse is one daily quota.
type BudgetResponse struct {
	Limit       int  `json:"limit"`
	Used        int  `json:"used"`
	Remaining   int  `json:"remaining"`
	Unlimited   bool `json:"unlimited"`
	IsExhausted bool `json:"is_exhausted"`
}

func budgetResponseFrom(b budget.Budget) BudgetResponse {
	return BudgetResponse{
		Limit:       b.Limit(),
		Used:        b.Used(),
		Remaining:   b.Remaining(),
		Unlimited:   b.Unlimited(),
		IsExhausted: b.IsExhausted(),
	}
}

// UsageResponse is the body of GET /api/v1/usage.
type UsageResponse struct {
	Period        string         `json:"period"`
	PeriodStartAt time.Time      `json:"period_start_at"`
	PeriodEndAt   time.Time      `json:"period_end_at"`
	Identity      string         `json:"identity"`
	Global        BudgetResponse `json:"global"`
	Own           BudgetResponse `json:"own"`
	ResetsAt      time.Time      `json:"resets_at"`
}

func usageResponseFrom(report domusage.Report) UsageResponse {
	own := report.Own()
	return UsageResponse{
		Period:        string(report.Period()),
		PeriodStartAt: time.UnixMilli(report.PeriodStart()).UTC(),
		PeriodEndAt:   time.UnixMilli(report.PeriodEnd()).UTC(),
		Identity:      report.Identity(),
		Global:        budgetResponseFrom(report.Global()),
		Own:           budgetResponseFrom(own),
		ResetsAt:      time.UnixMilli(own.ResetsAt()).UTC(),
	}
}

// CatalogModel is one model entry.
type CatalogModel struct {
	Label    string `json:"label"`
	Name     string `json:"name"`
	FromYear int    `json:"from_year,omitempty"`
	ToYear   int    `json:"to_year,omitempty"`
}

// CatalogMake lists the models of a make.
type CatalogMake struct {
	Make   string         `json:"make"`
	Models []CatalogModel `json:"models"`
}

// CatalogResponse is the body of GET /api/v1/catalog.
type CatalogResponse struct {
	Makes []CatalogMake `json:"makes"`
}

func catalogMakeFrom(mk string, models []catalog.Model) CatalogMake {
	out := CatalogMake{Make: mk, Models: make([]CatalogModel, len(models))}
	for i, m := range models {
		out.Models[i] = CatalogModel{Label: m.Label, Name: m.Name, FromYear: m.FromYear, ToYear: m.ToYear}
	}
	return out
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
