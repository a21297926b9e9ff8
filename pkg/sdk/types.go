package carscore

import (
	"context"
	"encoding/json"
	"time"
)

// Generator produces oracle text for a prompt on a given model.
// Implementations should return an error on transport failure; the client
// retries and falls back across models on its own.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Vehicle identifies the car to score. Make, Model and Year are required.
type Vehicle struct {
	Make         string
	Model        string
	SubModel     string
	Year         int
	Fuel         string
	Transmission string
	MileageRange string // e.g. "100-150k", "200k+"
}

// AnalyzeRequest is one reliability query.
type AnalyzeRequest struct {
	// Requester is the identity the per-identity quota is charged to.
	Requester string
	Vehicle   Vehicle
	// MaxAge overrides the cache window; 0 uses the client default.
	MaxAge time.Duration
}

// Source tells where an answer came from.
type Source string

// Answer sources.
const (
	SourceCache Source = "cache"
	SourceFresh Source = "fresh"
)

// Provenance describes how an answer was produced.
type Provenance struct {
	Source Source
	// Tag is a short human-readable summary of the fields below.
	Tag string

	CachedAt        time.Time
	UsedFallback    bool // sub-model was ignored to find the answer
	MileageMismatch bool // cached answer is for a different mileage band
	Corroborating   int

	Model      string
	Attempts   int
	Repaired   bool // oracle output needed repair before parsing
	UsageCount int  // fresh answers only
	UsageLimit int  // 0 when unlimited
}

// Result is a reliability answer.
type Result struct {
	RecordID string
	// Vehicle is the normalized identity the answer is for.
	Vehicle Vehicle
	// BaseScore is the mileage-adjusted 0-100 score; nil when the oracle gave none.
	BaseScore *float64
	// Breakdown holds the numeric sub-scores.
	Breakdown map[string]float64
	Summary   string
	Issues    []string
	// Assessment is the full oracle payload as JSON.
	Assessment   json.RawMessage
	MileageDelta int
	MileageNote  string
	Provenance   Provenance
}

// Budget is one daily quota.
type Budget struct {
	Limit       int // 0 when unlimited
	Used        int
	Remaining   int // -1 when unlimited
	IsExhausted bool
}

// UsageReport is today's fresh-analysis usage.
type UsageReport struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Identity    string
	Global      Budget
	Own         Budget
	ResetsAt    time.Time
}

// CatalogModel is a known model with its production years (0 when unknown).
type CatalogModel struct {
	Label    string
	Name     string
	FromYear int
	ToYear   int
}
