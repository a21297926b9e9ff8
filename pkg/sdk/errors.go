package carscore

import "github.com/kailas-cloud/carscore/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation       = domain.ErrValidation
	ErrQuotaExceeded    = domain.ErrQuotaExceeded
	ErrStoreUnavailable = domain.ErrStoreUnavailable
	ErrOracleExhausted  = domain.ErrOracleExhausted
)

// Typed errors; use errors.As() to read their fields.
type (
	// ValidationError names the offending request field.
	ValidationError = domain.ValidationError
	// QuotaExceededError carries the scope, observed count, limit and retry hint.
	QuotaExceededError = domain.QuotaExceededError
	// OracleExhaustedError carries the attempt count and the last failure.
	OracleExhaustedError = domain.OracleExhaustedError
	// StageError names the step that failed and whether a retry may help.
	StageError = domain.StageError
)

// Stage names an analysis step.
type Stage = domain.Stage

// Analysis stages reported by StageError.
const (
	StageValidation = domain.StageValidation
	StageQuota      = domain.StageQuota
	StageInvocation = domain.StageInvocation
)
