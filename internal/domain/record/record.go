package record

import (
	"errors"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/mileage"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

// Record is an immutable search record: one fresh oracle answer for one identity.
type Record struct {
	id         string
	requester  string
	identity   vehicle.Identity
	createdAt  time.Time
	result     assessment.Assessment
	adjustment mileage.Adjustment
}

// New creates a record. createdAt is truncated to millisecond precision in UTC.
func New(
	id, requester string, identity vehicle.Identity, createdAt time.Time,
	result assessment.Assessment, adj mileage.Adjustment,
) (Record, error) {
	if id == "" {
		return Record{}, errors.New("record ID is required")
	}
	if createdAt.IsZero() {
		return Record{}, errors.New("record timestamp is required")
	}
	return Reconstruct(id, requester, identity, createdAt, result, adj), nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, requester string, identity vehicle.Identity, createdAt time.Time,
	result assessment.Assessment, adj mileage.Adjustment,
) Record {
	return Record{
		id:         id,
		requester:  requester,
		identity:   identity,
		createdAt:  time.UnixMilli(createdAt.UnixMilli()).UTC(),
		result:     result,
		adjustment: adj,
	}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// Requester returns the identity key of the caller the record was computed for.
func (r *Record) Requester() string { return r.requester }

// Identity returns the vehicle identity tuple.
func (r *Record) Identity() vehicle.Identity { return r.identity }

// CreatedAt returns the creation timestamp (UTC, millisecond precision).
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// Result returns the stored assessment, with the mileage adjustment already applied.
func (r *Record) Result() assessment.Assessment { return r.result }

// Adjustment returns the mileage adjustment applied when the record was created.
func (r *Record) Adjustment() mileage.Adjustment { return r.adjustment }
