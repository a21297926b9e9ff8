package carscore

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain/usage/budget"
)

// Usage reports today's fresh-analysis counts for identity and for everyone.
func (c *Client) Usage(ctx context.Context, identity string) (rep UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err, "identity", identity) }()

	report, err := c.usageSvc.GetReport(ctx, identity)
	if err != nil {
		return UsageReport{}, fmt.Errorf("usage: %w", err)
	}

	return UsageReport{
		PeriodStart: time.UnixMilli(report.PeriodStart()).UTC(),
		PeriodEnd:   time.UnixMilli(report.PeriodEnd()).UTC(),
		Identity:    report.Identity(),
		Global:      budgetFrom(report.Global()),
		Own:         budgetFrom(report.Own()),
		ResetsAt:    time.UnixMilli(report.Own().ResetsAt()).UTC(),
	}, nil
}

func budgetFrom(b budget.Budget) Budget {
	return Budget{
		Limit:       max(b.Limit(), 0),
		Used:        b.Used(),
		Remaining:   b.Remaining(),
		IsExhausted: b.IsExhausted(),
	}
}
