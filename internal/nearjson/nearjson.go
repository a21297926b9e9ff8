// Package nearjson extracts a JSON object from model output that is only
// approximately JSON: wrapped in prose or code fences, truncated, or carrying
// typographic quotes and trailing commas.
package nearjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Status is the outcome of Parse.
type Status int

// Parse outcomes.
const (
	Unparseable Status = iota
	Strict
	Repaired
)

func (s Status) String() string {
	switch s {
	case Strict:
		return "strict"
	case Repaired:
		return "repaired"
	default:
		return "unparseable"
	}
}

// Result is either a parsed object or Unparseable.
type Result struct {
	Status Status
	Object map[string]json.RawMessage
	Reason string
}

// OK reports whether an object was recovered.
func (r Result) OK() bool { return r.Status != Unparseable }

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'",
)

// Parse runs the two-stage pipeline: strict parse of the first balanced
// object span, then a repair pass over that span, falling back to the text
// from the first brace onward when no span closes. It never panics.
func Parse(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: Unparseable, Reason: "parser panic"}
		}
	}()

	body := stripFences(text)
	if strings.TrimSpace(body) == "" {
		return Result{Status: Unparseable, Reason: "empty output"}
	}

	span, balanced := FirstObject(body)
	if balanced {
		if obj, ok := decodeObject(span); ok {
			return Result{Status: Strict, Object: obj}
		}
		if obj, err := repair(span); err == nil {
			return Result{Status: Repaired, Object: obj}
		}
	}

	start := strings.IndexByte(body, '{')
	if start < 0 {
		start = 0
	}
	tail := body[start:]
	obj, err := repair(tail)
	if err != nil {
		// Prose after a truncated nested object.
		if end := strings.LastIndexByte(tail, '}'); end >= 0 && end < len(tail)-1 {
			obj, err = repair(tail[:end+1])
		}
	}
	if err != nil {
		return Result{Status: Unparseable, Reason: err.Error()}
	}
	return Result{Status: Repaired, Object: obj}
}

var errNotObject = errors.New("repaired output is not an object")

func repair(s string) (map[string]json.RawMessage, error) {
	repaired, err := jsonrepair.JSONRepair(smartQuotes.Replace(s))
	if err != nil {
		return nil, fmt.Errorf("repair failed: %w", err)
	}
	obj, ok := decodeObject(repaired)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// FirstObject returns the first balanced {...} span, honoring string literals and escapes.
func FirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeObject(s string) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// stripFences removes Markdown code fences such as ```json ... ```.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
