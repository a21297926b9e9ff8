package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/carscore/internal/domain"
)

// --- Mocks ---

type call struct {
	model  string
	prompt string
}

type mockGenerator struct {
	mu    sync.Mutex
	calls []call
	fn    func(n int, model string) (string, error)
}

func (m *mockGenerator) Generate(_ context.Context, model, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call{model: model, prompt: prompt})
	n := len(m.calls)
	m.mu.Unlock()
	return m.fn(n, model)
}

func newTestInvoker(gen Generator, p Policy) (*Invoker, *[]time.Duration) {
	waits := &[]time.Duration{}
	iv := NewInvoker(gen, p, 0, nil)
	iv.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return iv, waits
}

var twoVariants = Policy{Variants: []string{"primary", "fallback"}, Attempts: 2, Backoff: 1500 * time.Millisecond}

// --- Tests ---

func TestInvoke_FallbackAfterPrimaryFailsTwice(t *testing.T) {
	gen := &mockGenerator{fn: func(_ int, model string) (string, error) {
		if model == "primary" {
			return "", errors.New("503 overloaded")
		}
		return `{"base_score_calculated": 81, "reliability_summary": "solid"}`, nil
	}}
	iv, waits := newTestInvoker(gen, twoVariants)

	res, err := iv.Invoke(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(gen.calls) != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", len(gen.calls))
	}
	if res.Model != "fallback" || res.Attempts != 3 {
		t.Errorf("expected fallback result after 3 attempts, got %s/%d", res.Model, res.Attempts)
	}
	if s, ok := res.Assessment.BaseScore(); !ok || s != 81 {
		t.Errorf("unexpected score %v %v", s, ok)
	}
	if len(*waits) != 1 || (*waits)[0] != 1500*time.Millisecond {
		t.Errorf("expected one backoff between primary attempts, got %v", *waits)
	}
}

func TestInvoke_FirstSuccessWins(t *testing.T) {
	gen := &mockGenerator{fn: func(int, string) (string, error) {
		return "```json\n{\"base_score_calculated\": 70}\n```", nil
	}}
	iv, waits := newTestInvoker(gen, twoVariants)

	res, err := iv.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 1 || res.Model != "primary" || res.Attempts != 1 || res.Repaired {
		t.Errorf("unexpected result: calls=%d %+v", len(gen.calls), res)
	}
	if len(*waits) != 0 {
		t.Errorf("no backoff expected, got %v", *waits)
	}
}

func TestInvoke_UnparseableOutputRetries(t *testing.T) {
	gen := &mockGenerator{fn: func(n int, _ string) (string, error) {
		if n == 1 {
			return "I cannot answer that.", nil
		}
		return `{'base_score_calculated': 64, 'sources': ['a',],}`, nil
	}}
	iv, _ := newTestInvoker(gen, twoVariants)

	res, err := iv.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Attempts != 2 || res.Model != "primary" || !res.Repaired {
		t.Errorf("expected repaired answer on 2nd attempt, got %+v", res)
	}
}

func TestInvoke_Exhausted(t *testing.T) {
	gen := &mockGenerator{fn: func(int, string) (string, error) {
		return "", errors.New("quota exhausted upstream")
	}}
	iv, waits := newTestInvoker(gen, twoVariants)

	_, err := iv.Invoke(context.Background(), "p")
	var ex *domain.OracleExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected OracleExhaustedError, got %v", err)
	}
	if ex.Attempts != 4 || len(gen.calls) != 4 {
		t.Errorf("expected 4 attempts, got %d (calls %d)", ex.Attempts, len(gen.calls))
	}
	if !errors.Is(err, domain.ErrOracleExhausted) {
		t.Error("expected errors.Is ErrOracleExhausted")
	}
	if len(*waits) != 2 {
		t.Errorf("expected backoff only within variants, got %v", *waits)
	}
}

func TestInvoke_ExhaustedByMalformedOutput(t *testing.T) {
	gen := &mockGenerator{fn: func(int, string) (string, error) { return "[1, 2, 3]", nil }}
	iv, _ := newTestInvoker(gen, Policy{Variants: []string{"m"}, Attempts: 1})

	_, err := iv.Invoke(context.Background(), "p")
	if !errors.Is(err, domain.ErrMalformedOracleOutput) {
		t.Errorf("expected last error to be malformed output, got %v", err)
	}
}

func TestInvoke_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &mockGenerator{fn: func(int, string) (string, error) {
		cancel()
		return "", errors.New("boom")
	}}
	iv := NewInvoker(gen, twoVariants, 0, nil)

	start := time.Now()
	_, err := iv.Invoke(ctx, "p")
	if time.Since(start) > time.Second {
		t.Error("cancellation must interrupt the backoff")
	}

	var ex *domain.OracleExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected abort reported as exhaustion, got %v", err)
	}
	if ex.Attempts != 1 || len(gen.calls) != 1 {
		t.Errorf("expected 1 attempt before abort, got %d", ex.Attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestInvoke_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &mockGenerator{fn: func(int, string) (string, error) { return "{}", nil }}
	iv, _ := newTestInvoker(gen, twoVariants)

	_, err := iv.Invoke(ctx, "p")
	if !errors.Is(err, domain.ErrOracleExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if len(gen.calls) != 0 {
		t.Errorf("no calls expected after cancellation, got %d", len(gen.calls))
	}
}

func TestInvoke_Timeout(t *testing.T) {
	gen := &mockGenerator{fn: func(int, string) (string, error) { return "", errors.New("slow") }}
	iv := NewInvoker(gen, Policy{Variants: []string{"m"}, Attempts: 3, Backoff: time.Hour}, 20*time.Millisecond, nil)

	_, err := iv.Invoke(context.Background(), "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestInvoke_PassesPrompt(t *testing.T) {
	gen := &mockGenerator{fn: func(int, string) (string, error) { return `{"a": 1}`, nil }}
	iv, _ := newTestInvoker(gen, twoVariants)

	if _, err := iv.Invoke(context.Background(), "score a 2019 Mazda 3"); err != nil {
		t.Fatal(err)
	}
	if gen.calls[0].prompt != "score a 2019 Mazda 3" {
		t.Errorf("unexpected prompt %q", gen.calls[0].prompt)
	}
}
