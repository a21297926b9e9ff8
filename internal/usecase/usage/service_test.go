package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain"
	"github.com/kailas-cloud/carscore/internal/usecase/quota"
)

// --- Mock ---

type mockCounter struct {
	counts map[string]int
	err    error
}

func (m *mockCounter) Count(_ context.Context, requester string, _, _ time.Time) (int, error) {
	return m.counts[requester], m.err
}

// --- Tests ---

func TestGetReport(t *testing.T) {
	enf := quota.New(&mockCounter{counts: map[string]int{"": 120, "alice": 2}}, quota.Config{
		GlobalDaily: 1000, PerIdentityDaily: 5, Location: time.UTC,
	})
	svc := New(enf)

	r, err := svc.GetReport(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != dayStart.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if r.Identity() != "alice" {
		t.Errorf("unexpected identity %q", r.Identity())
	}

	if g := r.Global(); g.Limit() != 1000 || g.Used() != 120 || g.Remaining() != 880 {
		t.Errorf("unexpected global budget: %d/%d", g.Used(), g.Limit())
	}
	if o := r.Own(); o.Limit() != 5 || o.Used() != 2 || o.Remaining() != 3 || o.IsExhausted() {
		t.Errorf("unexpected own budget: %d/%d", o.Used(), o.Limit())
	}
	if r.Own().ResetsAt() != r.PeriodEnd() {
		t.Error("budget resets at the end of the period")
	}
}

func TestGetReport_Unlimited(t *testing.T) {
	enf := quota.New(&mockCounter{counts: map[string]int{"bob": 9}}, quota.Config{Location: time.UTC})

	r, err := New(enf).GetReport(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Own().Unlimited() || r.Own().Used() != 9 {
		t.Errorf("expected unlimited own budget with 9 used, got %d/%d", r.Own().Used(), r.Own().Limit())
	}
}

func TestGetReport_StoreError(t *testing.T) {
	enf := quota.New(&mockCounter{err: errors.New("down")}, quota.Config{GlobalDaily: 10})

	_, err := New(enf).GetReport(context.Background(), "alice")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
