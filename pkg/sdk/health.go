package carscore

import (
	"context"

	healthuc "github.com/kailas-cloud/carscore/internal/usecase/health"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded" (oracle down), "error" (store down)
	Checks map[string]string // component → "ok"/"error"
}

// Serving reports whether the client can still answer: the store is up,
// though fresh analyses may fail while the oracle is down.
func (h HealthStatus) Serving() bool { return h.Status != "error" }

// Health probes the record store and, when it supports it, the oracle.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
