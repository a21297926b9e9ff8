package lookup

import (
	"context"
	"time"

	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
)

// Repository reads candidate records for a model year.
type Repository interface {
	Window(ctx context.Context, year int, since time.Time) ([]domrec.Record, error)
}
