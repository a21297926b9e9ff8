package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	carscore "github.com/kailas-cloud/carscore/pkg/sdk"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// textWriter aligns key/value lines and keeps the first write error.
type textWriter struct {
	tw  *tabwriter.Writer
	err error
}

func (w *textWriter) field(key, format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.tw, "%s:\t"+format+"\n", append([]any{key}, args...)...)
}

func (w *textWriter) line(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.tw, format+"\n", args...)
}

func render(out io.Writer, format string, v any, text func(*textWriter)) error {
	if format == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := &textWriter{tw: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	text(w)
	if w.err != nil {
		return w.err
	}
	return w.tw.Flush()
}

func writeResult(w *textWriter, res carscore.Result) {
	v := res.Vehicle
	w.field("vehicle", "%s", strings.Join(strings.Fields(fmt.Sprintf("%s %s %s %d", v.Make, v.Model, v.SubModel, v.Year)), " "))
	if res.BaseScore != nil {
		w.field("score", "%.0f/100", *res.BaseScore)
	} else {
		w.field("score", "n/a")
	}
	if res.MileageNote != "" {
		w.field("mileage", "%s (%+d)", res.MileageNote, res.MileageDelta)
	}
	for _, name := range sortedKeys(res.Breakdown) {
		w.field("  "+name, "%.0f", res.Breakdown[name])
	}
	if res.Summary != "" {
		w.field("summary", "%s", res.Summary)
	}
	for _, issue := range res.Issues {
		w.line("  - %s", issue)
	}
	w.field("source", "%s", res.Provenance.Tag)
	w.field("record", "%s", res.RecordID)
}

func writeUsage(w *textWriter, rep carscore.UsageReport) {
	w.field("period", "%s .. %s", rep.PeriodStart.Format(time.RFC3339), rep.PeriodEnd.Format(time.RFC3339))
	w.field("global", "%s", budgetLine(rep.Global))
	w.field(rep.Identity, "%s", budgetLine(rep.Own))
	w.field("resets", "%s", rep.ResetsAt.Format(time.RFC3339))
}

func budgetLine(b carscore.Budget) string {
	if b.Limit == 0 {
		return fmt.Sprintf("%d used, unlimited", b.Used)
	}
	s := fmt.Sprintf("%d/%d used, %d remaining", b.Used, b.Limit, b.Remaining)
	if b.IsExhausted {
		s += " (exhausted)"
	}
	return s
}

func writeHealth(w *textWriter, h carscore.HealthStatus) {
	w.field("status", "%s", h.Status)
	for _, name := range sortedKeys(h.Checks) {
		w.field("  "+name, "%s", h.Checks[name])
	}
}

func writeCatalog(w *textWriter, makes []catalogMake) {
	for _, m := range makes {
		labels := make([]string, len(m.Models))
		for i, model := range m.Models {
			labels[i] = model.Label
		}
		w.field(m.Make, "%s", strings.Join(labels, ", "))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
