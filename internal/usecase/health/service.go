package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the oracle is unreachable; cached answers still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the record store is unreachable; no request can be admitted.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names.
const (
	ComponentStore  = "store"
	ComponentOracle = "oracle"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store   StorePinger
	oracle  OracleChecker
	timeout time.Duration
}

// New creates a Service. oracle can be nil.
func New(store StorePinger, oracle OracleChecker) *Service {
	return &Service{store: store, oracle: oracle, timeout: DefaultCheckTimeout}
}

// Check runs the component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	type probe struct {
		name string
		fn   func(context.Context) error
	}
	probes := []probe{{ComponentStore, s.store.Ping}}
	if s.oracle != nil {
		probes = append(probes, probe{ComponentOracle, s.oracle.HealthCheck})
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(probes))
	)
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			result := CheckOK
			if err := p.fn(pctx); err != nil {
				result = CheckError
			}
			mu.Lock()
			checks[p.name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	switch {
	case checks[ComponentStore] == CheckError:
		status = Unhealthy
	case checks[ComponentOracle] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
