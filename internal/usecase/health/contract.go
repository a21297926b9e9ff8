package health

import "context"

// StorePinger checks record store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// OracleChecker checks scoring oracle availability.
type OracleChecker interface {
	HealthCheck(ctx context.Context) error
}
