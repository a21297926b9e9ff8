package quota

import (
	"context"
	"time"
)

// Counter counts stored records in [from, to). An empty requester counts everyone.
type Counter interface {
	Count(ctx context.Context, requester string, from, to time.Time) (int, error)
}
