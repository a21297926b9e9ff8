package chi

import (
	"context"

	domusage "github.com/kailas-cloud/carscore/internal/domain/usage"
	"github.com/kailas-cloud/carscore/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/carscore/internal/usecase/health"
)

// Analyzer answers reliability requests.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error)
}

// UsageReporter builds today's usage report for an identity.
type UsageReporter interface {
	GetReport(ctx context.Context, identity string) (domusage.Report, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
