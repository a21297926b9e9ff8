package mileage

import (
	"testing"

	"github.com/kailas-cloud/carscore/internal/domain/assessment"
)

func TestAdjust_Bands(t *testing.T) {
	tests := []struct {
		label string
		delta int
	}{
		{"200K+", -15},
		{"200,000+ km", -15},
		{"150-200k", -10},
		{"150–200 thousand", -10},
		{"100-150k", -5},
		{"0-50k", 0},
		{"", 0},
		{"200k", 0},
	}
	for _, tc := range tests {
		adj := Adjust(tc.label)
		if adj.Delta != tc.delta {
			t.Errorf("Adjust(%q).Delta = %d, want %d", tc.label, adj.Delta, tc.delta)
		}
		if (adj.Note != "") != (tc.delta != 0) {
			t.Errorf("Adjust(%q): note presence mismatch: %q", tc.label, adj.Note)
		}
	}
}

func TestApply_BoundedForAllScoresAndBands(t *testing.T) {
	labels := []string{"200k+", "150-200k", "100-150k", "50-100k"}
	for s := 0; s <= 100; s++ {
		for _, l := range labels {
			a := assessment.Assessment{}.WithBaseScore(float64(s))
			out, _ := Apply(a, l)
			got, ok := out.BaseScore()
			if !ok {
				t.Fatalf("score lost for %d/%s", s, l)
			}
			if got < 0 || got > 100 {
				t.Fatalf("score %v out of range for input %d/%s", got, s, l)
			}
		}
	}
}

func TestApply_ClampsAtZero(t *testing.T) {
	a := assessment.Assessment{}.WithBaseScore(10)
	out, adj := Apply(a, "200k+")
	if got, _ := out.BaseScore(); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if adj.Delta != -15 {
		t.Errorf("expected delta -15, got %d", adj.Delta)
	}
}

func TestApply_NoScoreKeepsAbsentButReportsNote(t *testing.T) {
	a, err := assessment.Decode([]byte(`{"reliability_summary": "ok"}`))
	if err != nil {
		t.Fatal(err)
	}
	out, adj := Apply(a, "150-200k")
	if _, ok := out.BaseScore(); ok {
		t.Error("score should stay absent")
	}
	if adj.Note == "" {
		t.Error("expected note even without score")
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	a := assessment.Assessment{}.WithBaseScore(80)
	_, _ = Apply(a, "100-150k")
	if got, _ := a.BaseScore(); got != 80 {
		t.Errorf("input mutated to %v", got)
	}
}
