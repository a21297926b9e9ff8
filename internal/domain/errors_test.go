package domain

import (
	"context"
	"errors"
	"testing"
)

func TestValidationError_Is(t *testing.T) {
	err := NewValidation("year", "is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	if err.Error() != "validation failed: year is required" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestOracleExhaustedError_UnwrapsBoth(t *testing.T) {
	err := &OracleExhaustedError{Attempts: 4, Last: context.DeadlineExceeded}
	if !errors.Is(err, ErrOracleExhausted) {
		t.Error("expected ErrOracleExhausted")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected last error to be reachable")
	}
}

func TestStageError_PreservesChain(t *testing.T) {
	inner := &QuotaExceededError{Scope: ScopeIdentity, Count: 5, Limit: 5}
	err := AtStage(StageQuota, true, inner)

	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("expected StageError")
	}
	if se.Stage != StageQuota || !se.Retriable {
		t.Errorf("unexpected stage error: %+v", se)
	}

	var qe *QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatal("expected QuotaExceededError in chain")
	}
	if qe.Count != 5 {
		t.Errorf("expected count 5, got %d", qe.Count)
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Error("expected ErrQuotaExceeded")
	}
}

func TestAtStage_Nil(t *testing.T) {
	if AtStage(StagePersist, false, nil) != nil {
		t.Error("expected nil")
	}
}
