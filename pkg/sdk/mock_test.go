package carscore

import (
	"context"
	"sync/atomic"

	"github.com/kailas-cloud/carscore/internal/domain/catalog"
	domusage "github.com/kailas-cloud/carscore/internal/domain/usage"
	"github.com/kailas-cloud/carscore/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/carscore/internal/usecase/health"
)

// --- analysisUseCase mock ---

type mockAnalysisUC struct {
	analyzeFn func(ctx context.Context, req analysis.Request) (analysis.Response, error)
}

func (m *mockAnalysisUC) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	return m.analyzeFn(ctx, req)
}

// --- usageUseCase mock ---

type mockUsageUC struct {
	reportFn func(ctx context.Context, identity string) (domusage.Report, error)
}

func (m *mockUsageUC) GetReport(ctx context.Context, identity string) (domusage.Report, error) {
	return m.reportFn(ctx, identity)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report {
	return m.report
}

// --- Generator fake ---

type fakeGenerator struct {
	output string
	err    error
	calls  atomic.Int32
}

func (g *fakeGenerator) Generate(context.Context, string, string) (string, error) {
	g.calls.Add(1)
	return g.output, g.err
}

// --- helpers ---

func testClient(a analysisUseCase, u usageUseCase, h healthUseCase) *Client {
	return &Client{
		analysisSvc: a,
		usageSvc:    u,
		healthSvc:   h,
		catalog:     catalog.Default(),
	}
}
