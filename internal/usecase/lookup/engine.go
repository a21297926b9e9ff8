// Package lookup finds a fresh, sufficiently similar stored record for a vehicle identity.
package lookup

import (
	"context"
	"fmt"
	"sort"
	"time"

	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
	"github.com/kailas-cloud/carscore/internal/domain/textmatch"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

// Default matching parameters.
const (
	DefaultStrictThreshold  = 0.97
	DefaultLooseThreshold   = 0.93
	DefaultMileageThreshold = 0.92
	DefaultMaxAge           = 45 * 24 * time.Hour

	// MaxWindowDays bounds a caller-supplied staleness window.
	MaxWindowDays = 3650
)

// Config holds matching thresholds and the staleness window.
type Config struct {
	StrictThreshold  float64
	LooseThreshold   float64
	MileageThreshold float64
	MaxAge           time.Duration
}

// DefaultConfig returns the standard matching parameters.
func DefaultConfig() Config {
	return Config{
		StrictThreshold:  DefaultStrictThreshold,
		LooseThreshold:   DefaultLooseThreshold,
		MileageThreshold: DefaultMileageThreshold,
		MaxAge:           DefaultMaxAge,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StrictThreshold <= 0 {
		c.StrictThreshold = d.StrictThreshold
	}
	if c.LooseThreshold <= 0 {
		c.LooseThreshold = d.LooseThreshold
	}
	if c.MileageThreshold <= 0 {
		c.MileageThreshold = d.MileageThreshold
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	return c
}

// Match is the best stored record for a request.
type Match struct {
	Record domrec.Record
	// Corroborating is the number of records that survived the filter.
	Corroborating int
	// UsedFallback is set when the sub-model had to be ignored.
	UsedFallback      bool
	MileageMatched    bool
	MileageSimilarity float64
}

// Engine answers lookups against a record repository.
type Engine struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// New creates a lookup engine. Zero fields in cfg take their defaults.
func New(repo Repository, cfg Config) *Engine {
	return &Engine{repo: repo, cfg: cfg.withDefaults(), now: time.Now}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Find returns the best fresh match for id. maxAge <= 0 uses the configured window.
// found is false when nothing qualifies; that is not an error.
func (e *Engine) Find(ctx context.Context, id vehicle.Identity, maxAge time.Duration) (Match, bool, error) {
	if maxAge <= 0 {
		maxAge = e.cfg.MaxAge
	}
	// Stored timestamps carry millisecond precision.
	since := e.now().Add(-maxAge).Truncate(time.Millisecond)

	records, err := e.repo.Window(ctx, id.Year(), since)
	if err != nil {
		return Match{}, false, fmt.Errorf("load window: %w", err)
	}

	m, ok := Select(records, id, since, e.cfg)
	return m, ok, nil
}

// Select picks the best record among candidates. It is pure: the same inputs
// always yield the same match.
func Select(records []domrec.Record, id vehicle.Identity, since time.Time, cfg Config) (Match, bool) {
	cfg = cfg.withDefaults()

	fresh := make([]domrec.Record, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.Identity().Year() != id.Year() || r.CreatedAt().Before(since) {
			continue
		}
		fresh = append(fresh, *r)
	}
	if len(fresh) == 0 {
		return Match{}, false
	}

	survivors := filterTiers(fresh, id, id.HasSubModel(), cfg)
	fallback := false
	if len(survivors) == 0 && id.HasSubModel() {
		survivors = filterTiers(fresh, id, false, cfg)
		fallback = true
	}
	if len(survivors) == 0 {
		return Match{}, false
	}

	type ranked struct {
		rec domrec.Record
		sim float64
	}
	rs := make([]ranked, len(survivors))
	for i, r := range survivors {
		rs[i] = ranked{rec: r, sim: textmatch.Similarity(id.MileageRange(), r.Identity().MileageRange())}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].sim != rs[j].sim {
			return rs[i].sim > rs[j].sim
		}
		return rs[i].rec.CreatedAt().After(rs[j].rec.CreatedAt())
	})

	best := rs[0]
	return Match{
		Record:            best.rec,
		Corroborating:     len(survivors),
		UsedFallback:      fallback,
		MileageMatched:    best.sim >= cfg.MileageThreshold,
		MileageSimilarity: best.sim,
	}, true
}

// filterTiers applies the strict threshold, then the loose one if nothing survived.
func filterTiers(records []domrec.Record, id vehicle.Identity, useSub bool, cfg Config) []domrec.Record {
	for _, thr := range []float64{cfg.StrictThreshold, cfg.LooseThreshold} {
		var out []domrec.Record
		for i := range records {
			if matches(&records[i], id, useSub, thr) {
				out = append(out, records[i])
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func matches(r *domrec.Record, id vehicle.Identity, useSub bool, thr float64) bool {
	stored := r.Identity()
	if !textmatch.AtLeast(id.Make(), stored.Make(), thr) {
		return false
	}
	if !textmatch.AtLeast(id.Model(), stored.Model(), thr) {
		return false
	}
	if useSub && !textmatch.AtLeast(id.SubModel(), stored.SubModel(), thr) {
		return false
	}
	return true
}
