// Package mileage applies the deterministic mileage-band penalty to a base score.
package mileage

import (
	"strings"

	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/textmatch"
)

// Adjustment is the penalty derived from a mileage band label.
type Adjustment struct {
	Delta int
	Note  string
}

// IsZero reports whether the band carries no penalty.
func (a Adjustment) IsZero() bool { return a.Delta == 0 }

type band struct {
	markers []string
	delta   int
	note    string
}

// bands are checked in order; the first band whose markers all occur in the label wins.
var bands = []band{
	{[]string{"200", "+"}, -15, "High mileage (200k+ km): base score lowered by 15 points."},
	{[]string{"150", "200"}, -10, "Mileage of 150k-200k km: base score lowered by 10 points."},
	{[]string{"100", "150"}, -5, "Mileage of 100k-150k km: base score lowered by 5 points."},
}

// Adjust returns the adjustment for a mileage band label.
func Adjust(label string) Adjustment {
	l := textmatch.Normalize(label)
	for _, b := range bands {
		if containsAll(l, b.markers) {
			return Adjustment{Delta: b.delta, Note: b.note}
		}
	}
	return Adjustment{}
}

// Apply adds the band penalty to the base score, clamped to [0, 100].
// Without a base score the assessment is returned unchanged; the note is still reported.
func Apply(a assessment.Assessment, label string) (assessment.Assessment, Adjustment) {
	adj := Adjust(label)
	score, ok := a.BaseScore()
	if !ok || adj.IsZero() {
		return a, adj
	}
	return a.WithBaseScore(score + float64(adj.Delta)), adj
}

func containsAll(s string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(s, m) {
			return false
		}
	}
	return true
}
