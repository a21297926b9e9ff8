// Package oracle calls the scoring oracle under a retry and model-fallback
// policy and turns its near-JSON output into an assessment.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/carscore/internal/domain"
	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/metrics"
	"github.com/kailas-cloud/carscore/internal/nearjson"
)

// Result is a parsed oracle answer.
type Result struct {
	Assessment assessment.Assessment
	Model      string
	Attempts   int
	Repaired   bool
}

// Invoker runs a Policy against a Generator.
type Invoker struct {
	gen     Generator
	policy  Policy
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an invoker. timeout bounds a whole invocation; 0 means none.
func NewInvoker(gen Generator, policy Policy, timeout time.Duration, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		gen:     gen,
		policy:  policy,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("github.com/kailas-cloud/carscore/internal/usecase/oracle"),
		sleep:   sleepCtx,
	}
}

// Policy returns the retry plan.
func (iv *Invoker) Policy() Policy { return iv.policy }

// Invoke returns the first parseable answer. When every variant and attempt
// fails, or ctx ends first, it returns a *domain.OracleExhaustedError.
func (iv *Invoker) Invoke(ctx context.Context, prompt string) (Result, error) {
	if iv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.timeout)
		defer cancel()
	}

	var last error
	attempts := 0
	step := iv.policy.Start()
	for {
		switch step.Action {
		case Done:
			// unreachable: success returns from the Call branch
			return Result{}, errors.New("oracle: policy finished without a result")
		case Exhausted:
			metrics.OracleAttemptsPerInvocation.Observe(float64(attempts))
			return Result{}, &domain.OracleExhaustedError{Attempts: attempts, Last: last}
		case Abort:
			metrics.OracleAttemptsPerInvocation.Observe(float64(attempts))
			iv.logger.Warn("Oracle invocation aborted",
				zap.Int("attempts", attempts),
				zap.Error(ctx.Err()),
			)
			return Result{}, &domain.OracleExhaustedError{Attempts: attempts, Last: ctx.Err()}
		}

		if step.Wait > 0 {
			if err := iv.sleep(ctx, step.Wait); err != nil {
				step = iv.policy.Next(step.State, Aborted)
				continue
			}
		}
		if ctx.Err() != nil {
			step = iv.policy.Next(step.State, Aborted)
			continue
		}

		model := iv.policy.Model(step.State)
		attempts = step.State.Total
		res, err := iv.attempt(ctx, model, prompt, step.State)
		if err == nil {
			res.Attempts = attempts
			metrics.OracleAttemptsPerInvocation.Observe(float64(attempts))
			return res, nil
		}

		last = err
		iv.logger.Warn("Oracle attempt failed",
			zap.String("model", model),
			zap.Int("attempt", step.State.Attempt),
			zap.Int("total", step.State.Total),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			step = iv.policy.Next(step.State, Aborted)
			continue
		}
		step = iv.policy.Next(step.State, Failed)
	}
}

func (iv *Invoker) attempt(ctx context.Context, model, prompt string, s State) (Result, error) {
	ctx, span := iv.tracer.Start(ctx, "oracle.attempt", trace.WithAttributes(
		attribute.String("oracle.model", model),
		attribute.Int("oracle.attempt", s.Attempt),
		attribute.Int("oracle.total", s.Total),
	))
	defer span.End()

	text, err := iv.gen.Generate(ctx, model, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return Result{}, fmt.Errorf("generate %s: %w", model, err)
	}

	parsed := nearjson.Parse(text)
	metrics.OracleParseTotal.WithLabelValues(parsed.Status.String()).Inc()
	span.SetAttributes(attribute.String("oracle.parse", parsed.Status.String()))
	if !parsed.OK() {
		span.SetStatus(codes.Error, "unparseable output")
		return Result{}, fmt.Errorf("%s: %w: %s", model, domain.ErrMalformedOracleOutput, parsed.Reason)
	}

	return Result{
		Assessment: assessment.FromObject(parsed.Object),
		Model:      model,
		Repaired:   parsed.Status == nearjson.Repaired,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
