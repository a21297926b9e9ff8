package analysis

import (
	"context"
	"time"

	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
	"github.com/kailas-cloud/carscore/internal/usecase/lookup"
	"github.com/kailas-cloud/carscore/internal/usecase/oracle"
	"github.com/kailas-cloud/carscore/internal/usecase/quota"
)

// Finder looks up a fresh stored record for an identity.
type Finder interface {
	Find(ctx context.Context, id vehicle.Identity, maxAge time.Duration) (lookup.Match, bool, error)
}

// Limiter admits a request against the daily quotas and holds its slot.
type Limiter interface {
	Reserve(ctx context.Context, identity string) (*quota.Reservation, error)
}

// Oracle produces a fresh assessment for a prompt.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (oracle.Result, error)
}

// RecordWriter persists a fresh record.
type RecordWriter interface {
	Append(ctx context.Context, rec *domrec.Record) error
}
