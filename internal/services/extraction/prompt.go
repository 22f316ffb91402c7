package extraction

import (
	"fmt"
	"strings"

	"github.com/ternarybob/marketdesk/internal/interfaces"
)

const extractionSystemInstruction = `You are an expert Indian equity events analyst focused on NSE Regulation 30 disclosures and order-pipeline events.
You ONLY summarize and extract structured data from the provided text. You do NOT browse the web.

HARD RULES:
1) NEVER fabricate numbers or facts. If a value is not present, output null and add the field name to missing_fields.
2) Use only the provided context and document text. No external sources.
3) Provide evidence_spans (at most 160 characters each) for key extractions and classifications.
4) CURRENCY: Convert raw INR to Crore (CR). 1 CR = 10,000,000 INR.
5) STAGE: Must be one of "L1", "LOA", "WO", "NTP", "MOU", "OTHER".
6) Output MUST be STRICT JSON only.`

const narrativeSystemInstruction = `You are a Senior Tactical Analyst for Indian Equities.
Generate a 4-8 line narrative explaining execution risk and tactical outlook.
Use a professional neutral tone. Focus on institutional shakeout risk and near-term triggers.
Output MUST be STRICT JSON only.`

func buildExtractionPrompt(input interfaces.ExtractionInput, documentText string) string {
	c := input.Candidate
	var sb strings.Builder
	sb.WriteString("Perform a forensic extraction on this NSE disclosure:\n")
	fmt.Fprintf(&sb, "Company: %s\n", c.CompanyName)
	fmt.Fprintf(&sb, "Symbol: %s\n", c.Symbol)
	fmt.Fprintf(&sb, "Source: %s\n", c.Source)
	fmt.Fprintf(&sb, "Event family: %s\n", c.EventFamily)
	fmt.Fprintf(&sb, "Context: %s\n\n", c.RawText)
	fmt.Fprintf(&sb, "Document Text: %s", documentText)
	return sb.String()
}

func buildNarrativePrompt(input interfaces.NarrativeInput) string {
	c := input.Candidate
	ext := input.Extracted

	value := "unknown"
	if ext.OrderValueCr != nil {
		value = fmt.Sprintf("₹%g Cr", *ext.OrderValueCr)
	}
	customer := ext.Customer
	if customer == "" {
		customer = "unknown"
	}

	var sb strings.Builder
	sb.WriteString("Analyze this corporate event for tactical traders.\n\nEVENT DATA:\n")
	fmt.Fprintf(&sb, "Symbol: %s\n", c.Symbol)
	fmt.Fprintf(&sb, "Family: %s\n", c.EventFamily)
	fmt.Fprintf(&sb, "Stage: %s\n", ext.Stage)
	fmt.Fprintf(&sb, "Value: %s\n", value)
	fmt.Fprintf(&sb, "Customer: %s\n", customer)
	fmt.Fprintf(&sb, "Impact Score: %d (%s)\n", input.Score.ImpactScore, input.Score.Direction)
	fmt.Fprintf(&sb, "Risk Level: %s\n", input.Tactical.InstitutionalRisk)
	fmt.Fprintf(&sb, "Policy Bias: %s\n", input.Tactical.PolicyBias)
	fmt.Fprintf(&sb, "Tactical Plan: %s\n", input.Tactical.TacticalPlan)
	fmt.Fprintf(&sb, "Summary: %s\n\n", input.Summary)
	sb.WriteString("TASK: Write a 4-8 line narrative synthesizing these factors into a cohesive tactical outlook. Do not invent prices.")
	return sb.String()
}

func nullable(kind string) map[string]interface{} {
	return map[string]interface{}{"type": kind, "nullable": true}
}

func nullableEnum(values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "nullable": true, "enum": values}
}

// extractionSchema is the structured output schema shared with Gemini
var extractionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"summary":      map[string]interface{}{"type": "string"},
		"impact_score": map[string]interface{}{"type": "integer", "minimum": 0.0, "maximum": 100.0},
		"recommendation": map[string]interface{}{
			"type": "string",
			"enum": []string{"ACTIONABLE_BULLISH", "ACTIONABLE_BEARISH_RISK", "HIGH_PRIORITY_WATCH", "TRACK", "NEEDS_MANUAL_REVIEW", "IGNORE"},
		},
		"confidence":     map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 1.0},
		"missing_fields": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"evidence_spans": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"extracted": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"order_value_cr":   nullable("number"),
				"stage":            nullableEnum("L1", "LOA", "WO", "NTP", "MOU", "OTHER"),
				"international":    nullable("boolean"),
				"new_customer":     nullable("boolean"),
				"execution_months": map[string]interface{}{"type": "number", "nullable": true, "description": "Time period for execution in months"},
				"execution_years":  map[string]interface{}{"type": "number", "nullable": true, "description": "Time period for execution in years"},
				"order_type":       nullableEnum("SUPPLY", "EPC", "SERVICES", "MAINTENANCE", "MIXED", "UNKNOWN"),
				"end_date":         map[string]interface{}{"type": "string", "nullable": true, "description": "The completion or end date mentioned (YYYY-MM-DD)"},
				"conditionality":   nullableEnum("HIGH", "MEDIUM", "LOW"),
				"rating_action":    nullable("string"),
				"notches":          nullable("number"),
				"outlook_change":   nullable("string"),
				"amount_cr":        nullable("number"),
				"stage_legal":      nullable("string"),
				"ops_impact":       nullable("string"),
				"customer":         nullable("string"),
			},
		},
	},
	"required": []string{"summary", "confidence", "extracted", "evidence_spans", "missing_fields"},
}

var narrativeSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"event_analysis_text": map[string]interface{}{"type": "string", "description": "4-8 lines max tactical narrative"},
		"tone":                map[string]interface{}{"type": "string"},
	},
	"required": []string{"event_analysis_text", "tone"},
}
