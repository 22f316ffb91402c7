package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/reg30"
)

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

// formatLiquidity formats liquidity metrics as markdown
func formatLiquidity(m market.LiquidityMetrics, hint string) string {
	var sb strings.Builder
	sb.WriteString("## Liquidity\n\n")
	sb.WriteString(fmt.Sprintf("**Spread:** %s\n", optional(m.SpreadPct, "%.3f%%")))
	sb.WriteString(fmt.Sprintf("**Depth ratio:** %.2f\n", m.DepthRatio))
	sb.WriteString(fmt.Sprintf("**Volume ratio:** %s\n", optional(m.VolRatio, "%.2fx")))
	sb.WriteString(fmt.Sprintf("**Regime:** %s\n", m.Regime))
	sb.WriteString(fmt.Sprintf("**Execution:** %s\n", m.ExecutionStyle))
	sb.WriteString(fmt.Sprintf("**Hint:** %s\n", hint))
	return sb.String()
}

// formatScore formats a score result and optional tactical block as markdown
func formatScore(s reg30.ScoreResult, t *reg30.TacticalAnalysis) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Impact %d/100 (%s)\n\n", s.ImpactScore, s.Direction))
	sb.WriteString(fmt.Sprintf("**Recommendation:** %s\n", s.Recommendation))
	sb.WriteString(fmt.Sprintf("**Order type:** %s\n", s.OrderType))
	sb.WriteString(fmt.Sprintf("**Execution months:** %s\n\n", optional(s.ExecutionMonths, "%.0f")))

	sb.WriteString("### Factors\n\n")
	for _, f := range s.Factors {
		sb.WriteString("- " + f + "\n")
	}

	if t != nil {
		sb.WriteString("\n### Tactical\n\n")
		sb.WriteString(fmt.Sprintf("**Plan:** %s\n", t.TacticalPlan))
		sb.WriteString(fmt.Sprintf("**Trigger:** %s\n", t.TriggerText))
		sb.WriteString(fmt.Sprintf("**Institutional risk:** %s\n", t.InstitutionalRisk))
		sb.WriteString(fmt.Sprintf("**Policy bias:** %s\n", t.PolicyBias))
		sb.WriteString(fmt.Sprintf("**Execution realism:** %s\n", t.ExecutionRealism))
	}
	return sb.String()
}

// formatReports formats stored reports as a markdown list
func formatReports(reports []*reg30.Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Reports (%d)\n\n", len(reports)))

	if len(reports) == 0 {
		sb.WriteString("No reports found.\n")
		return sb.String()
	}

	for i, r := range reports {
		sb.WriteString(fmt.Sprintf("%d. **%s** %s (%s)\n", i+1, r.Symbol, r.EventDate, r.EventFamily))
		sb.WriteString(fmt.Sprintf("   Impact %d, %s, %s\n", r.ImpactScore, r.Direction, r.Recommendation))
		if r.TacticalPlan != "" {
			sb.WriteString(fmt.Sprintf("   Plan: %s\n", r.TacticalPlan))
		}
		sb.WriteString(fmt.Sprintf("   Fingerprint: %s\n\n", r.EventFingerprint))
	}
	return sb.String()
}
