// Package catalog holds the known make/model dictionary with production year ranges.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/carscore/internal/domain/textmatch"
)

var yearRangeRegex = regexp.MustCompile(`\((\d{4})\s*-\s*(\d{4})\)`)

// Model is a catalog model entry.
type Model struct {
	Label    string // as listed, e.g. "Golf (2004-2025)"
	Name     string // label without the year range
	FromYear int    // 0 when unknown
	ToYear   int    // 0 when unknown
}

// HasRange reports whether production years are known.
func (m Model) HasRange() bool { return m.FromYear > 0 && m.ToYear > 0 }

// Covers reports whether year lies inside the production range. Unknown ranges cover every year.
func (m Model) Covers(year int) bool {
	if !m.HasRange() {
		return true
	}
	return year >= m.FromYear && year <= m.ToYear
}

// Catalog maps makes to their models.
type Catalog struct {
	makes map[string][]Model
}

// New builds a catalog from make -> model labels.
func New(labels map[string][]string) Catalog {
	makes := make(map[string][]Model, len(labels))
	for mk, ls := range labels {
		models := make([]Model, 0, len(ls))
		for _, l := range ls {
			models = append(models, ParseLabel(l))
		}
		makes[mk] = models
	}
	return Catalog{makes: makes}
}

// Default returns the built-in catalog.
func Default() Catalog {
	return New(map[string][]string{
		"Volkswagen": {"Golf (2004-2025)", "Polo (2005-2025)", "Passat (2005-2025)", "Scirocco (2008-2017)"},
		"Toyota":     {"Corolla (2008-2025)", "Yaris (2008-2025)", "CHR (2016-2025)"},
		"Mazda":      {"Mazda3 (2003-2025)", "Mazda6 (2003-2021)", "CX-5 (2012-2025)"},
	})
}

// Load reads a catalog from a YAML file of the form `Make: ["Model (YYYY-YYYY)", ...]`.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var labels map[string][]string
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return New(labels), nil
}

// ParseLabel splits "Model (YYYY-YYYY)" into name and year range.
func ParseLabel(label string) Model {
	m := Model{Label: label, Name: textmatch.Normalize(label)}
	from, to, ok := ParseYearRange(label)
	if ok {
		m.FromYear, m.ToYear = from, to
	}
	return m
}

// ParseYearRange extracts the "(YYYY-YYYY)" range from a label.
func ParseYearRange(label string) (from, to int, ok bool) {
	sm := yearRangeRegex.FindStringSubmatch(label)
	if sm == nil {
		return 0, 0, false
	}
	from, _ = strconv.Atoi(sm[1])
	to, _ = strconv.Atoi(sm[2])
	return from, to, true
}

// Makes returns the makes in alphabetical order.
func (c Catalog) Makes() []string {
	out := make([]string, 0, len(c.makes))
	for mk := range c.makes {
		out = append(out, mk)
	}
	sort.Strings(out)
	return out
}

// Models returns the models listed for a make (case and annotation insensitive).
func (c Catalog) Models(mk string) []Model {
	want := textmatch.Normalize(mk)
	for name, models := range c.makes {
		if textmatch.Normalize(name) == want {
			return models
		}
	}
	return nil
}

// Lookup finds a model entry by make and model name.
func (c Catalog) Lookup(mk, model string) (Model, bool) {
	want := textmatch.Normalize(model)
	for _, m := range c.Models(mk) {
		if m.Name == want {
			return m, true
		}
	}
	return Model{}, false
}

// Len returns the number of makes.
func (c Catalog) Len() int { return len(c.makes) }
