// Package analysis orchestrates a reliability request: validation, quota,
// cache lookup, oracle invocation, mileage overlay and persistence.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/carscore/internal/domain"
	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	"github.com/kailas-cloud/carscore/internal/domain/mileage"
	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
	"github.com/kailas-cloud/carscore/internal/logger"
	"github.com/kailas-cloud/carscore/internal/metrics"
	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
	"github.com/kailas-cloud/carscore/internal/usecase/oracle"
	"github.com/kailas-cloud/carscore/internal/usecase/quota"
)

// DefaultPersistTimeout bounds the detached record write.
const DefaultPersistTimeout = 5 * time.Second

// State is a step of the request state machine.
type State string

// Request states.
const (
	StateValidating State = "validating"
	StateQuotaCheck State = "quota_check"
	StateLookup     State = "cache_lookup"
	StateCacheHit   State = "cache_hit"
	StateInvoking   State = "invoking"
	StateOverlay    State = "overlay"
	StatePersist    State = "persist"
	StateRespond    State = "respond"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// Config holds orchestration settings.
type Config struct {
	Language string
	// StrictCatalog rejects years outside a known model's production range.
	StrictCatalog  bool
	PersistTimeout time.Duration
}

// Request is one reliability query.
type Request struct {
	Requester string
	Vehicle   vehicle.Fields
	// MaxAge overrides the cache window; 0 uses the configured one.
	MaxAge time.Duration
}

// Response is the answer with its provenance.
type Response struct {
	RecordID   string
	Identity   vehicle.Identity
	Assessment assessment.Assessment
	Mileage    mileage.Adjustment
	Provenance Provenance
}

// Service runs the request state machine.
type Service struct {
	finder  Finder
	limiter Limiter
	oracle  Oracle
	writer  RecordWriter
	catalog catalog.Catalog
	cfg     Config
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// New creates the orchestrator.
func New(
	finder Finder, limiter Limiter, orc Oracle, writer RecordWriter,
	cat catalog.Catalog, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		finder:  finder,
		limiter: limiter,
		oracle:  orc,
		writer:  writer,
		catalog: cat,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("github.com/kailas-cloud/carscore/internal/usecase/analysis"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// run carries the per-request state between steps.
type run struct {
	req         Request
	identity    vehicle.Identity
	reservation *quota.Reservation
	match       lookup.Match
	fresh       oracle.Result
	adj         mileage.Adjustment
	result      assessment.Assessment
	recordID    string
	createdAt   time.Time
	resp        Response
	err         error
}

// Analyze answers a request from the cache or a fresh oracle call.
// Errors are *domain.StageError values naming the failing stage.
func (s *Service) Analyze(ctx context.Context, req Request) (Response, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.analyze")
	defer span.End()

	log := logger.FromContextOr(ctx, s.logger)
	r := &run{req: req}
	defer func() { r.reservation.Release() }()

	state := StateValidating
	for {
		span.AddEvent(string(state))
		switch state {
		case StateValidating:
			state = s.validate(r)
		case StateQuotaCheck:
			state = s.checkQuota(ctx, r)
		case StateLookup:
			state = s.lookup(ctx, log, r)
		case StateCacheHit:
			state = s.respondFromCache(r)
		case StateInvoking:
			state = s.invoke(ctx, r)
		case StateOverlay:
			state = s.overlay(r)
		case StatePersist:
			state = s.persist(ctx, log, r)
		case StateRespond:
			span.SetAttributes(attribute.String("analysis.source", string(r.resp.Provenance.Source)))
			return r.resp, nil
		case StateRejected, StateFailed:
			span.RecordError(r.err)
			span.SetStatus(codes.Error, string(state))
			log.Info("Analysis ended without an answer",
				zap.String("state", string(state)),
				zap.Error(r.err),
			)
			return Response{}, r.err
		default:
			r.err = fmt.Errorf("unknown state %q", state)
			state = StateFailed
		}
	}
}

func (s *Service) validate(r *run) State {
	id, err := vehicle.New(r.req.Vehicle)
	if err != nil {
		r.err = domain.AtStage(domain.StageValidation, false, err)
		return StateRejected
	}
	if s.cfg.StrictCatalog {
		if m, ok := s.catalog.Lookup(id.Make(), id.Model()); ok && !m.Covers(id.Year()) {
			r.err = domain.AtStage(domain.StageValidation, false, domain.NewValidation(
				"year", fmt.Sprintf("outside production years %d-%d", m.FromYear, m.ToYear),
			))
			return StateRejected
		}
	}
	r.identity = id
	return StateQuotaCheck
}

func (s *Service) checkQuota(ctx context.Context, r *run) State {
	res, err := s.limiter.Reserve(ctx, r.req.Requester)
	if err != nil {
		var qe *domain.QuotaExceededError
		if errors.As(err, &qe) {
			metrics.QuotaRejectionsTotal.WithLabelValues(string(qe.Scope)).Inc()
			r.err = domain.AtStage(domain.StageQuota, true, err)
			return StateRejected
		}
		r.err = domain.AtStage(domain.StageQuota, true, err)
		return StateFailed
	}
	r.reservation = res
	return StateLookup
}

func (s *Service) lookup(ctx context.Context, log *zap.Logger, r *run) State {
	m, found, err := s.finder.Find(ctx, r.identity, r.req.MaxAge)
	switch {
	case err != nil:
		metrics.LookupTotal.WithLabelValues("error").Inc()
		log.Warn("Record lookup failed, treating as miss",
			zap.String("vehicle", r.identity.String()),
			zap.Error(err),
		)
		return StateInvoking
	case !found:
		metrics.LookupTotal.WithLabelValues("miss").Inc()
		return StateInvoking
	case m.UsedFallback:
		metrics.LookupTotal.WithLabelValues("fallback").Inc()
	default:
		metrics.LookupTotal.WithLabelValues("hit").Inc()
	}
	r.match = m
	return StateCacheHit
}

func (s *Service) respondFromCache(r *run) State {
	rec := r.match.Record
	r.resp = Response{
		RecordID:   rec.ID(),
		Identity:   r.identity,
		Assessment: rec.Result(),
		Mileage:    rec.Adjustment(),
		Provenance: Provenance{
			Source:          SourceCache,
			CachedAt:        rec.CreatedAt(),
			UsedFallback:    r.match.UsedFallback,
			MileageMismatch: !r.match.MileageMatched,
			Corroborating:   r.match.Corroborating,
		},
	}
	return StateRespond
}

func (s *Service) invoke(ctx context.Context, r *run) State {
	res, err := s.oracle.Invoke(ctx, BuildPrompt(r.identity, s.cfg.Language))
	if err != nil {
		r.err = domain.AtStage(domain.StageInvocation, true, err)
		return StateFailed
	}
	r.fresh = res
	return StateOverlay
}

func (s *Service) overlay(r *run) State {
	r.result, r.adj = mileage.Apply(r.fresh.Assessment, r.identity.MileageRange())
	r.recordID = s.newID()
	r.createdAt = s.now()

	var usage *quota.Usage
	if r.reservation != nil {
		u := r.reservation.IdentityUsage()
		usage = &u
	}
	r.resp = Response{
		RecordID:   r.recordID,
		Identity:   r.identity,
		Assessment: r.result,
		Mileage:    r.adj,
		Provenance: Provenance{
			Source:   SourceFresh,
			Model:    r.fresh.Model,
			Attempts: r.fresh.Attempts,
			Repaired: r.fresh.Repaired,
			Usage:    usage,
		},
	}
	return StatePersist
}

// persist is non-fatal: the answer is returned even when the write fails.
func (s *Service) persist(ctx context.Context, log *zap.Logger, r *run) State {
	rec, err := domrec.New(r.recordID, r.req.Requester, r.identity, r.createdAt, r.result, r.adj)
	if err == nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
		err = s.writer.Append(pctx, &rec)
		cancel()
	}
	if err != nil {
		metrics.PersistFailuresTotal.Inc()
		log.Error("Failed to persist record",
			zap.String("record_id", r.recordID),
			zap.String("vehicle", r.identity.String()),
			zap.Error(domain.AtStage(domain.StagePersist, true, err)),
		)
	}
	return StateRespond
}
