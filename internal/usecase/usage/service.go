package usage

import (
	"context"
	"fmt"

	domusage "github.com/kailas-cloud/carscore/internal/domain/usage"
	"github.com/kailas-cloud/carscore/internal/domain/usage/budget"
	"github.com/kailas-cloud/carscore/internal/usecase/quota"
)

// Service handles usage reporting.
type Service struct {
	qr QuotaReader
}

// New creates a Service.
func New(qr QuotaReader) *Service {
	return &Service{qr: qr}
}

// GetReport builds today's usage report for identity.
func (s *Service) GetReport(ctx context.Context, identity string) (domusage.Report, error) {
	period := s.qr.Today()

	global, err := s.qr.Usage(ctx, quota.Global(), period)
	if err != nil {
		return domusage.Report{}, fmt.Errorf("global usage: %w", err)
	}
	own, err := s.qr.Usage(ctx, quota.Identity(identity), period)
	if err != nil {
		return domusage.Report{}, fmt.Errorf("identity usage: %w", err)
	}

	resetsAt := period.End.UnixMilli()
	return domusage.NewReport(
		period.Start.UnixMilli(), resetsAt, identity,
		budget.New(global.Limit, global.Count, resetsAt),
		budget.New(own.Limit, own.Count, resetsAt),
	), nil
}
