package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/marketdesk/internal/reg30"
)

// Markdown renders a report as a markdown document
func Markdown(r *reg30.Report) string {
	var b strings.Builder

	company := r.CompanyName
	if company == "" {
		company = r.Symbol
	}
	fmt.Fprintf(&b, "# %s - %s\n\n", r.Symbol, company)
	fmt.Fprintf(&b, "**Event date:** %s  \n**Family:** %s  \n**Source:** %s\n\n", r.EventDate, r.EventFamily, r.Source)

	b.WriteString("## Summary\n\n")
	b.WriteString(orDash(r.Summary))
	b.WriteString("\n\n")

	b.WriteString("## Score\n\n")
	b.WriteString("| Impact | Direction | Recommendation | Confidence |\n")
	b.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %s | %s | %.2f |\n\n", r.ImpactScore, r.Direction, r.Recommendation, r.Confidence)

	if len(r.ScoringFactors) > 0 {
		b.WriteString("## Scoring factors\n\n")
		for _, f := range r.ScoringFactors {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if rows := extractedRows(r); len(rows) > 0 {
		b.WriteString("## Extracted fields\n\n")
		b.WriteString("| Field | Value |\n|---|---|\n")
		for _, row := range rows {
			fmt.Fprintf(&b, "| %s | %s |\n", row[0], cell(row[1]))
		}
		b.WriteString("\n")
	}

	if r.TacticalPlan != "" {
		b.WriteString("## Tactical analysis\n\n")
		fmt.Fprintf(&b, "- **Institutional risk:** %s\n", r.InstitutionalRisk)
		policy := r.PolicyBias
		if r.PolicyEvent != "" {
			policy += " (" + r.PolicyEvent + ")"
		}
		fmt.Fprintf(&b, "- **Policy bias:** %s\n", policy)
		fmt.Fprintf(&b, "- **Plan:** %s\n", r.TacticalPlan)
		fmt.Fprintf(&b, "- **Trigger:** %s\n", orDash(r.TriggerText))
		fmt.Fprintf(&b, "- **Execution realism:** %s\n\n", orDash(r.ExecutionRealism))
	}

	if r.Narrative != "" {
		b.WriteString("## Narrative\n\n")
		b.WriteString(r.Narrative)
		b.WriteString("\n\n")
	}

	if len(r.EvidenceSpans) > 0 {
		b.WriteString("## Evidence\n\n")
		for _, span := range r.EvidenceSpans {
			fmt.Fprintf(&b, "- *%s*\n", strings.TrimSpace(span))
		}
		b.WriteString("\n")
	}

	if len(r.MissingFields) > 0 {
		fmt.Fprintf(&b, "**Missing fields:** %s\n\n", strings.Join(r.MissingFields, ", "))
	}

	if r.AttachmentLink != "" {
		fmt.Fprintf(&b, "Attachment: %s\n", r.AttachmentLink)
	}
	return b.String()
}

func extractedRows(r *reg30.Report) [][2]string {
	ext := r.Extracted
	var rows [][2]string
	add := func(name, value string) {
		if value != "" {
			rows = append(rows, [2]string{name, value})
		}
	}

	add("Order value", crore(ext.OrderValueCr))
	add("Stage", ext.Stage)
	add("Order type", r.OrderType)
	add("Customer", ext.Customer)
	add("International", flag(ext.International))
	add("New customer", flag(ext.NewCustomer))
	if r.ExecutionMonths != nil {
		add("Execution months", number(*r.ExecutionMonths))
	}
	add("End date", ext.EndDate)
	add("Conditionality", ext.Conditionality)
	add("Rating action", ext.RatingAction)
	if ext.Notches != nil {
		add("Notches", number(*ext.Notches))
	}
	add("Outlook change", ext.OutlookChange)
	add("Amount", crore(ext.AmountCr))
	add("Legal stage", ext.StageLegal)
	add("Operational impact", ext.OpsImpact)
	if r.ConversionBonus > 0 {
		add("Conversion bonus", strconv.Itoa(r.ConversionBonus))
	}
	return rows
}

func crore(v *float64) string {
	if v == nil {
		return ""
	}
	return "₹" + number(*v) + " Cr"
}

func flag(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "Yes"
	}
	return "No"
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "/"), "\n", " ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
