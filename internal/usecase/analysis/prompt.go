package analysis

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

// DefaultLanguage is the response language used when none is configured.
const DefaultLanguage = "Hebrew"

// BuildPrompt asks the oracle for a single JSON reliability assessment of id.
func BuildPrompt(id vehicle.Identity, language string) string {
	if language == "" {
		language = DefaultLanguage
	}

	f := id.Fields()
	subject := strings.TrimSpace(fmt.Sprintf("%s %s %s %d", f.Make, f.Model, f.SubModel, f.Year))
	subject = strings.Join(strings.Fields(subject), " ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert used-car reliability analyst. Assess the reliability of a %s.\n", subject)
	b.WriteString("Vehicle details:\n")
	fmt.Fprintf(&b, "- Make: %s\n- Model: %s\n", f.Make, f.Model)
	if f.SubModel != "" {
		fmt.Fprintf(&b, "- Sub-model / trim: %s\n", f.SubModel)
	}
	fmt.Fprintf(&b, "- Model year: %d\n", f.Year)
	fmt.Fprintf(&b, "- Fuel: %s\n", orUnknown(f.Fuel))
	fmt.Fprintf(&b, "- Transmission: %s\n", orUnknown(f.Transmission))
	fmt.Fprintf(&b, "- Mileage band: %s\n\n", orUnknown(f.MileageRange))

	b.WriteString("Search owner reports, recalls and repair data for this exact generation. ")
	b.WriteString("Focus on problems typical for the given mileage band, fuel type and transmission.\n\n")

	b.WriteString("Reply with ONE JSON object and nothing else. No Markdown, no comments. Keys:\n")
	b.WriteString(`- "search_performed": true or false` + "\n")
	b.WriteString(`- "score_breakdown": object with integer scores from 1 to 10 for ` +
		`"engine_transmission_score", "electrical_score", "suspension_brakes_score", ` +
		`"maintenance_cost_score", "satisfaction_score", "recalls_score"` + "\n")
	b.WriteString(`- "base_score_calculated": number from 0 to 100` + "\n")
	b.WriteString(`- "common_issues": list of strings` + "\n")
	b.WriteString(`- "avg_repair_cost": typical repair cost as a number` + "\n")
	b.WriteString(`- "issues_with_costs": list of objects {"issue", "avg_cost", "source", "severity"}` + "\n")
	b.WriteString(`- "reliability_summary": short paragraph` + "\n")
	b.WriteString(`- "sources": list of strings` + "\n")
	b.WriteString(`- "recommended_checks": list of strings a buyer should inspect` + "\n")
	b.WriteString(`- "common_competitors_brief": list of objects {"model", "brief_summary"}` + "\n\n")

	fmt.Fprintf(&b, "Write every free-text value in %s. Keys stay in English.\n", language)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
