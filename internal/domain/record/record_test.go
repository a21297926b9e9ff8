package record

import (
	"testing"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/mileage"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

func TestNew_TruncatesTimestamp(t *testing.T) {
	loc := time.FixedZone("IST", 2*3600)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 123456789, loc)

	r, err := New("r1", "u1", vehicle.Reconstruct(vehicle.Fields{Make: "Kia", Model: "Picanto", Year: 2018}),
		ts, assessment.Assessment{}.WithBaseScore(70), mileage.Adjustment{Delta: -5, Note: "n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.CreatedAt().Location() != time.UTC {
		t.Errorf("expected UTC, got %v", r.CreatedAt().Location())
	}
	if r.CreatedAt().Nanosecond() != 123000000 {
		t.Errorf("expected millisecond precision, got %d ns", r.CreatedAt().Nanosecond())
	}
	if !r.CreatedAt().Equal(ts.Truncate(time.Millisecond)) {
		t.Errorf("instant changed: %v vs %v", r.CreatedAt(), ts)
	}
	if r.Adjustment().Delta != -5 || r.Requester() != "u1" || r.ID() != "r1" {
		t.Errorf("unexpected fields: %+v", r)
	}
}

func TestNew_RequiresIDAndTime(t *testing.T) {
	id := vehicle.Reconstruct(vehicle.Fields{Make: "Kia", Model: "Rio", Year: 2018})
	if _, err := New("", "u", id, time.Now(), assessment.Assessment{}, mileage.Adjustment{}); err == nil {
		t.Error("expected error for empty ID")
	}
	if _, err := New("x", "u", id, time.Time{}, assessment.Assessment{}, mileage.Adjustment{}); err == nil {
		t.Error("expected error for zero time")
	}
}
