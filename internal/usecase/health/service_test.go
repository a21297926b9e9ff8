package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockOracleChecker struct {
	err   error
	block bool
}

func (m *mockOracleChecker) HealthCheck(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	r := New(&mockStorePinger{}, &mockOracleChecker{}).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks[ComponentStore] != CheckOK || r.Checks[ComponentOracle] != CheckOK {
		t.Errorf("unexpected checks: %v", r.Checks)
	}
}

func TestCheck_StoreDown(t *testing.T) {
	r := New(&mockStorePinger{err: errors.New("conn refused")}, &mockOracleChecker{}).Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentStore] != CheckError || r.Checks[ComponentOracle] != CheckOK {
		t.Errorf("unexpected checks: %v", r.Checks)
	}
}

func TestCheck_OracleDown(t *testing.T) {
	r := New(&mockStorePinger{}, &mockOracleChecker{err: errors.New("401")}).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentOracle] != CheckError {
		t.Errorf("expected oracle %q, got %q", CheckError, r.Checks[ComponentOracle])
	}
}

func TestCheck_BothFail(t *testing.T) {
	r := New(&mockStorePinger{err: errors.New("db down")}, &mockOracleChecker{err: errors.New("oracle down")}).
		Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("store failure dominates: expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NilOracle(t *testing.T) {
	r := New(&mockStorePinger{}, nil).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, exists := r.Checks[ComponentOracle]; exists {
		t.Error("oracle check should be absent when checker is nil")
	}
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockOracleChecker{block: true})
	svc.timeout = 20 * time.Millisecond

	start := time.Now()
	r := svc.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Error("a hanging check must be bounded by the timeout")
	}
	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
}
