package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/carscore/internal/domain"
	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	"github.com/kailas-cloud/carscore/internal/logger"
	"github.com/kailas-cloud/carscore/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/carscore/internal/usecase/health"
	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
)

const maxBodyBytes = 64 << 10

// Error codes.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeQuotaExceeded    = "quota_exceeded"
	codeStoreUnavailable = "store_unavailable"
	codeOracleExhausted  = "oracle_exhausted"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeInternalError    = "internal_error"
)

// stageAuth marks errors raised before the request reached a service.
const stageAuth = "auth"

// apiError is the error body returned by every endpoint.
type apiError struct {
	Stage     string `json:"stage"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
	Scope     string `json:"scope,omitempty"`
	Count     *int   `json:"count,omitempty"`
	Limit     *int   `json:"limit,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, base apiError) bool

// Server serves the carscore HTTP API.
type Server struct {
	analyzer      Analyzer
	usage         UsageReporter
	health        HealthChecker
	catalog       catalog.Catalog
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	analyzer Analyzer,
	usage UsageReporter,
	health HealthChecker,
	cat catalog.Catalog,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		analyzer: analyzer,
		usage:    usage,
		health:   health,
		catalog:  cat,
		logger:   logger,
		errorHandlers: []errorHandler{
			validationHandler,
			quotaHandler,
			sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
			sentinelHandler(domain.ErrOracleExhausted, http.StatusBadGateway, codeOracleExhausted),
		},
	}
}

// Mount registers the API routes on r.
func (s *Server) Mount(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r gochi.Router) {
		r.Post("/analyze", s.Analyze)
		r.Get("/usage", s.GetUsage)
		r.Get("/catalog", s.GetCatalog)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, apiError{Code: codeNotFound, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, apiError{Code: codeBadRequest, Message: "method not allowed"})
	})
}

// Analyze handles POST /api/v1/analyze.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apiError{
			Stage:   string(domain.StageValidation),
			Code:    codeBadRequest,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	fields, err := req.toFields()
	if err != nil {
		s.handleDomainError(w, r, domain.AtStage(domain.StageValidation, false, err))
		return
	}

	var maxAge time.Duration
	if req.MaxAgeDays != nil {
		if *req.MaxAgeDays <= 0 || *req.MaxAgeDays > lookup.MaxWindowDays {
			s.handleDomainError(w, r, domain.AtStage(domain.StageValidation, false,
				domain.NewValidation("max_age_days", fmt.Sprintf("must be between 1 and %d", lookup.MaxWindowDays))))
			return
		}
		maxAge = time.Duration(*req.MaxAgeDays) * 24 * time.Hour
	}

	resp, err := s.analyzer.Analyze(r.Context(), analysis.Request{
		Requester: IdentityFromContext(r.Context()),
		Vehicle:   fields,
		MaxAge:    maxAge,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("X-Carscore-Source", string(resp.Provenance.Source))
	writeJSON(w, http.StatusOK, analyzeResponseFrom(resp))
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	report, err := s.usage.GetReport(r.Context(), IdentityFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponseFrom(report))
}

// GetCatalog handles GET /api/v1/catalog. The optional make parameter narrows the listing.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	resp := CatalogResponse{Makes: []CatalogMake{}}

	if mk := r.URL.Query().Get("make"); mk != "" {
		models := s.catalog.Models(mk)
		if models == nil {
			writeError(w, http.StatusNotFound, apiError{Code: codeNotFound, Message: fmt.Sprintf("unknown make %q", mk)})
			return
		}
		resp.Makes = append(resp.Makes, catalogMakeFrom(mk, models))
		writeJSON(w, http.StatusOK, resp)
		return
	}

	for _, mk := range s.catalog.Makes() {
		resp.Makes = append(resp.Makes, catalogMakeFrom(mk, s.catalog.Models(mk)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health. A degraded service still answers from the cache.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body apiError) {
	writeJSON(w, status, body)
}

// baseError fills stage and retry hint from a StageError, if any.
func baseError(err error) apiError {
	var se *domain.StageError
	if errors.As(err, &se) {
		return apiError{Stage: string(se.Stage), Retriable: se.Retriable}
	}
	return apiError{}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The sentinel text is sent instead of the wrapped chain.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, base apiError) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		base.Code = code
		base.Message = sentinel.Error()
		base.Retriable = true
		writeError(w, status, base)
		return true
	}
}

func validationHandler(w http.ResponseWriter, err error, base apiError) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	base.Code = codeValidationFailed
	base.Message = domain.ErrValidation.Error()
	base.Retriable = false
	if base.Stage == "" {
		base.Stage = string(domain.StageValidation)
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		base.Message = ve.Error()
	}
	writeError(w, http.StatusBadRequest, base)
	return true
}

// quotaHandler answers 429 with Retry-After and the observed count.
func quotaHandler(w http.ResponseWriter, err error, base apiError) bool {
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		return false
	}
	base.Code = codeQuotaExceeded
	base.Message = domain.ErrQuotaExceeded.Error()
	base.Retriable = true
	if base.Stage == "" {
		base.Stage = string(domain.StageQuota)
	}
	var qe *domain.QuotaExceededError
	if errors.As(err, &qe) {
		base.Scope = string(qe.Scope)
		base.Count = &qe.Count
		base.Limit = &qe.Limit
		base.Message = qe.Error()
		if qe.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(qe.RetryAfter.Seconds()))))
		}
	}
	writeError(w, http.StatusTooManyRequests, base)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	base := baseError(err)
	for _, h := range s.errorHandlers {
		if h(w, err, base) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	base.Code = codeInternalError
	base.Message = "internal error"
	writeError(w, http.StatusInternalServerError, base)
}
