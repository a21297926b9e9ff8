package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation signals a malformed vehicle identity or request.
	ErrValidation = errors.New("validation failed")
	// ErrQuotaExceeded signals an exhausted daily quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrStoreUnavailable signals that the record store could not be reached.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrOracleExhausted signals that every model variant and attempt failed.
	ErrOracleExhausted = errors.New("scoring oracle exhausted")
	// ErrOracleError signals a single failed oracle call.
	ErrOracleError = errors.New("scoring oracle error")
	// ErrMalformedOracleOutput signals oracle text that could not be parsed into an object.
	ErrMalformedOracleOutput = errors.New("malformed oracle output")
)

// Stage names the orchestration step an error was raised in.
type Stage string

// Orchestration stages.
const (
	StageValidation Stage = "validation"
	StageQuota      Stage = "quota"
	StageLookup     Stage = "lookup"
	StageInvocation Stage = "invocation"
	StagePersist    Stage = "persist"
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a validation error for a field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// QuotaScope identifies which daily cap rejected a request.
type QuotaScope string

// Quota scopes.
const (
	ScopeGlobal   QuotaScope = "global"
	ScopeIdentity QuotaScope = "identity"
)

// QuotaExceededError wraps ErrQuotaExceeded with the observed count.
type QuotaExceededError struct {
	Scope      QuotaScope
	Count      int
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %s %d/%d", ErrQuotaExceeded.Error(), e.Scope, e.Count, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// OracleExhaustedError wraps ErrOracleExhausted with the attempt count and the last failure.
type OracleExhaustedError struct {
	Attempts int
	Last     error
}

func (e *OracleExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s after %d attempts", ErrOracleExhausted.Error(), e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrOracleExhausted.Error(), e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last underlying error.
func (e *OracleExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrOracleExhausted}
	}
	return []error{ErrOracleExhausted, e.Last}
}

// StageError attaches the failing stage and retry hint to an error.
type StageError struct {
	Stage     Stage
	Retriable bool
	Err       error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with the stage it was raised in.
func AtStage(stage Stage, retriable bool, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Retriable: retriable, Err: err}
}
