// Package assessment models the reliability payload produced by the scoring oracle.
// Only the base score and score breakdown are interpreted; every other field is
// carried through untouched.
package assessment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Payload keys with meaning to the service.
const (
	KeyBaseScore       = "base_score_calculated"
	KeyLegacyBaseScore = "base_score"
	KeyScoreBreakdown  = "score_breakdown"
	KeyCommonIssues    = "common_issues"
	KeySummary         = "reliability_summary"
)

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// ErrNotObject is returned when a payload is not a JSON object.
var ErrNotObject = errors.New("assessment payload must be a JSON object")

// Assessment is an immutable reliability result: typed known fields plus an opaque side-map.
type Assessment struct {
	baseScore *float64
	breakdown map[string]json.RawMessage
	extra     map[string]json.RawMessage
}

// Decode parses a JSON object into an Assessment.
func Decode(data []byte) (Assessment, error) {
	var a Assessment
	if err := a.UnmarshalJSON(data); err != nil {
		return Assessment{}, err
	}
	return a, nil
}

// FromObject builds an Assessment from already-split object members.
func FromObject(obj map[string]json.RawMessage) Assessment {
	extra := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		extra[k] = v
	}

	var a Assessment
	if score, ok := parseScore(extra[KeyBaseScore]); ok {
		a.baseScore = &score
		delete(extra, KeyBaseScore)
	} else if score, ok := parseScore(extra[KeyLegacyBaseScore]); ok {
		a.baseScore = &score
		delete(extra, KeyLegacyBaseScore)
	}

	if raw, ok := extra[KeyScoreBreakdown]; ok {
		var bd map[string]json.RawMessage
		if json.Unmarshal(raw, &bd) == nil && bd != nil {
			a.breakdown = bd
			delete(extra, KeyScoreBreakdown)
		}
	}

	if len(extra) > 0 {
		a.extra = extra
	}
	return a
}

// BaseScore returns the base score and whether it is present.
func (a Assessment) BaseScore() (float64, bool) {
	if a.baseScore == nil {
		return 0, false
	}
	return *a.baseScore, true
}

// WithBaseScore returns a copy with the base score set, clamped to [MinScore, MaxScore].
func (a Assessment) WithBaseScore(v float64) Assessment {
	c := Clamp(v)
	return Assessment{baseScore: &c, breakdown: a.breakdown, extra: a.extra}
}

// Breakdown returns the numeric sub-scores. Entries that are not numbers are omitted.
func (a Assessment) Breakdown() map[string]float64 {
	if len(a.breakdown) == 0 {
		return nil
	}
	out := make(map[string]float64, len(a.breakdown))
	for k, v := range a.breakdown {
		if f, ok := parseNumber(v); ok {
			out[k] = f
		}
	}
	return out
}

// Field returns a pass-through field as raw JSON.
func (a Assessment) Field(name string) (json.RawMessage, bool) {
	v, ok := a.extra[name]
	return v, ok
}

// Summary returns the reliability summary text, if any.
func (a Assessment) Summary() string {
	raw, ok := a.extra[KeySummary]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// Issues returns the common issues list. A single string is split on ";" or ",".
func (a Assessment) Issues() []string {
	raw, ok := a.extra[KeyCommonIssues]
	if !ok {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsEmpty reports whether the assessment carries no fields at all.
func (a Assessment) IsEmpty() bool {
	return a.baseScore == nil && len(a.breakdown) == 0 && len(a.extra) == 0
}

// MarshalJSON emits the pass-through fields with the known fields merged back in.
func (a Assessment) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(a.extra)+2)
	maps.Copy(obj, a.extra)
	if a.baseScore != nil {
		obj[KeyBaseScore] = json.RawMessage(strconv.FormatFloat(*a.baseScore, 'f', -1, 64))
	}
	if len(a.breakdown) > 0 {
		bd, err := json.Marshal(a.breakdown)
		if err != nil {
			return nil, fmt.Errorf("marshal score breakdown: %w", err)
		}
		obj[KeyScoreBreakdown] = bd
	}
	return json.Marshal(obj)
}

// UnmarshalJSON accepts a JSON object only.
func (a *Assessment) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrNotObject
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("decode assessment: %w", err)
	}
	*a = FromObject(obj)
	return nil
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

// parseScore reads a score; non-finite or non-numeric values are treated as absent.
func parseScore(raw json.RawMessage) (float64, bool) {
	f, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	return Clamp(f), true
}

// parseNumber accepts a JSON number or a numeric string such as "78" or "78%".
func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
