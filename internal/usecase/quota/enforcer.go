// Package quota enforces global and per-identity daily request caps.
//
// Spending quota is the act of persisting a record: counts are derived from
// stored record timestamps. Reservations cover requests that were admitted but
// have not persisted yet, so concurrent requests in one process cannot
// overshoot a cap. Replicas do not share reservations.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain"
)

// Default daily caps.
const (
	DefaultGlobalDaily      = 1000
	DefaultPerIdentityDaily = 5
)

// Config holds the daily caps. A cap of 0 disables that scope.
type Config struct {
	GlobalDaily      int
	PerIdentityDaily int
	// Location decides where a day starts; nil means time.Local.
	Location *time.Location
}

// Scope identifies one quota counter.
type Scope struct {
	Kind domain.QuotaScope
	Key  string
}

// Global returns the service-wide scope.
func Global() Scope { return Scope{Kind: domain.ScopeGlobal} }

// Identity returns the scope of one caller.
func Identity(key string) Scope { return Scope{Kind: domain.ScopeIdentity, Key: key} }

func (s Scope) requester() string {
	if s.Kind == domain.ScopeGlobal {
		return ""
	}
	return s.Key
}

// Period is a half-open time range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// DayPeriod returns the calendar day containing t in loc.
func DayPeriod(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}

// Usage is the observed count against a cap.
type Usage struct {
	Count int
	Limit int
}

// Unlimited reports whether the scope has no cap.
func (u Usage) Unlimited() bool { return u.Limit <= 0 }

// Remaining returns how many requests are left, or -1 when unlimited.
func (u Usage) Remaining() int {
	if u.Unlimited() {
		return -1
	}
	return max(u.Limit-u.Count, 0)
}

// Enforcer checks daily caps against stored records plus in-flight reservations.
type Enforcer struct {
	counter Counter
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	inflight map[inflightKey]int
}

type inflightKey struct {
	scope Scope
	start int64
}

// New creates a quota enforcer.
func New(counter Counter, cfg Config) *Enforcer {
	return &Enforcer{
		counter:  counter,
		cfg:      cfg,
		now:      time.Now,
		inflight: make(map[inflightKey]int),
	}
}

// Config returns the effective caps.
func (e *Enforcer) Config() Config { return e.cfg }

// Today returns the current quota period.
func (e *Enforcer) Today() Period { return DayPeriod(e.now(), e.cfg.Location) }

func (e *Enforcer) limit(s Scope) int {
	if s.Kind == domain.ScopeGlobal {
		return e.cfg.GlobalDaily
	}
	return e.cfg.PerIdentityDaily
}

// Admit reports whether scope is under its cap for period, with the count observed
// (stored records plus in-flight reservations).
func (e *Enforcer) Admit(ctx context.Context, scope Scope, period Period) (bool, int, error) {
	limit := e.limit(scope)
	if limit <= 0 {
		return true, 0, nil
	}
	n, err := e.observed(ctx, scope, period, 0)
	if err != nil {
		return false, 0, err
	}
	return n < limit, n, nil
}

// Usage returns the count for scope in period without judging it.
func (e *Enforcer) Usage(ctx context.Context, scope Scope, period Period) (Usage, error) {
	n, err := e.observed(ctx, scope, period, 0)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Count: n, Limit: e.limit(scope)}, nil
}

// Check evaluates both scopes for identity. A rejection is a *domain.QuotaExceededError
// naming the exceeded scope; global wins when both are exceeded.
func (e *Enforcer) Check(ctx context.Context, identity string) error {
	period := e.Today()
	for _, s := range []Scope{Global(), Identity(identity)} {
		ok, n, err := e.Admit(ctx, s, period)
		if err != nil {
			return err
		}
		if !ok {
			return e.exceeded(s, n, period)
		}
	}
	return nil
}

// Reservation holds in-flight slots for one admitted request.
type Reservation struct {
	release  func()
	once     sync.Once
	identity Usage
	global   Usage
}

// Release frees the slots. Safe to call more than once.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.once.Do(r.release)
}

// IdentityUsage returns the caller's usage including this request.
func (r *Reservation) IdentityUsage() Usage { return r.identity }

// GlobalUsage returns the service-wide usage including this request.
func (r *Reservation) GlobalUsage() Usage { return r.global }

// Reserve admits identity and holds a slot in both scopes until Release.
// The slot is taken before counting, so two racing requests may both be
// rejected for the last unit of quota but never both admitted.
func (e *Enforcer) Reserve(ctx context.Context, identity string) (*Reservation, error) {
	period := e.Today()
	scopes := []Scope{Global(), Identity(identity)}
	keys := make([]inflightKey, len(scopes))
	for i, s := range scopes {
		keys[i] = inflightKey{scope: s, start: period.Start.UnixMilli()}
	}

	e.mu.Lock()
	for _, k := range keys {
		e.inflight[k]++
	}
	e.mu.Unlock()

	res := &Reservation{release: func() { e.release(keys) }}

	usages := make([]Usage, len(scopes))
	for i, s := range scopes {
		limit := e.limit(s)
		if limit <= 0 {
			usages[i] = Usage{Limit: limit}
			continue
		}
		// exclude our own slot from the observed count
		n, err := e.observed(ctx, s, period, 1)
		if err != nil {
			res.Release()
			return nil, err
		}
		if n >= limit {
			res.Release()
			return nil, e.exceeded(s, n, period)
		}
		usages[i] = Usage{Count: n + 1, Limit: limit}
	}
	res.global, res.identity = usages[0], usages[1]
	return res, nil
}

func (e *Enforcer) release(keys []inflightKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		if e.inflight[k] <= 1 {
			delete(e.inflight, k)
			continue
		}
		e.inflight[k]--
	}
}

// observed returns stored records in period plus in-flight reservations, minus own.
func (e *Enforcer) observed(ctx context.Context, s Scope, p Period, own int) (int, error) {
	stored, err := e.counter.Count(ctx, s.requester(), p.Start, p.End)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s quota: %w", domain.ErrStoreUnavailable, s.Kind, err)
	}
	e.mu.Lock()
	pending := e.inflight[inflightKey{scope: s, start: p.Start.UnixMilli()}]
	e.mu.Unlock()
	return stored + max(pending-own, 0), nil
}

func (e *Enforcer) exceeded(s Scope, n int, p Period) error {
	return &domain.QuotaExceededError{
		Scope:      s.Kind,
		Count:      n,
		Limit:      e.limit(s),
		RetryAfter: p.End.Sub(e.now()),
	}
}
