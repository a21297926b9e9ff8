package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/carscore/internal/usecase/quota"
)

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

	// cache answers
	CachedAt        time.Time
	UsedFallback    bool
	MileageMismatch bool
	Corroborating   int

	// fresh answers
	Model    string
	Attempts int
	Repaired bool
	Usage    *quota.Usage
}

// Tag renders a short human-readable provenance line.
func (p Provenance) Tag() string {
	if p.Source == SourceCache {
		var notes []string
		if p.UsedFallback {
			notes = append(notes, "sub-model ignored")
		}
		if p.MileageMismatch {
			notes = append(notes, "different mileage band")
		}
		tag := "cached result from " + p.CachedAt.Format(time.DateOnly)
		if len(notes) > 0 {
			tag += " (" + strings.Join(notes, ", ") + ")"
		}
		if p.Corroborating > 1 {
			tag += fmt.Sprintf(", %d data points", p.Corroborating)
		}
		return tag
	}

	if p.Usage != nil && !p.Usage.Unlimited() {
		return fmt.Sprintf("fresh analysis (%d/%d today)", p.Usage.Count, p.Usage.Limit)
	}
	return "fresh analysis"
}
