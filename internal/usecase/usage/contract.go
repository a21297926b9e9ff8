package usage

import (
	"context"

	"github.com/kailas-cloud/carscore/internal/usecase/quota"
)

// QuotaReader provides read-only access to quota counters.
type QuotaReader interface {
	Today() quota.Period
	Usage(ctx context.Context, scope quota.Scope, period quota.Period) (quota.Usage, error)
}
