package reg30

import (
	"regexp"
	"strings"
	"time"
)

const longExecutionMonths = 36

var (
	governmentCustomerPattern = regexp.MustCompile(`cpwd|nhai|metro|railways|govt|ministry`)
	infraSectorPattern        = regexp.MustCompile(`infra|epc|construction|building|road|bridge|power|hydro|railway|water`)
)

var triggerTexts = map[string]string{
	PlanBuyDip:           "Prefer pullback entry; watch VWAP reclaim / retest of D0 low.",
	PlanWaitConfirmation: "Wait for LOA/WO/NTP confirmation before entry.",
	PlanAvoidChase:       "High shakeout risk; avoid chasing gaps; wait 1–3 sessions.",
	PlanMomentumOK:       "OK to watch breakout confirmation; avoid thin volume.",
}

// TacticalInput is the partial report the tactical analyzer works from
type TacticalInput struct {
	EventDate   string
	Summary     string
	ImpactScore int
	Extracted   ExtractedFields
}

// TacticalAnalysis is the deterministic, AI-free assessment of a scored event
type TacticalAnalysis struct {
	InstitutionalRisk string `json:"institutional_risk"`
	PolicyBias        string `json:"policy_bias"`
	PolicyEvent       string `json:"policy_event,omitempty"`
	TacticalPlan      string `json:"tactical_plan"`
	TriggerText       string `json:"trigger_text"`
	ExecutionRealism  string `json:"execution_realism"`
}

// TriggerText returns the entry guidance for a tactical plan
func TriggerText(plan string) string {
	return triggerTexts[plan]
}

// AnalyzeTactical derives institutional risk, policy bias and a tactical plan
// from already extracted fields
func AnalyzeTactical(in TacticalInput) TacticalAnalysis {
	ext := in.Extracted
	months := ResolveExecutionMonths(ext)

	risk := institutionalRisk(ext.Stage, ext.Conditionality, months)
	if governmentCustomerPattern.MatchString(strings.ToLower(ext.Customer)) {
		risk = lowerRisk(risk)
	}

	bias, event := PolicyNeutral, ""
	if inBudgetWindow(in.EventDate) && infraSectorPattern.MatchString(strings.ToLower(in.Summary)) {
		bias, event = PolicyTailwind, "Union Budget capex focus"
	}

	plan := tacticalPlan(ext.Stage, risk, in.ImpactScore)

	return TacticalAnalysis{
		InstitutionalRisk: risk,
		PolicyBias:        bias,
		PolicyEvent:       event,
		TacticalPlan:      plan,
		TriggerText:       TriggerText(plan),
		ExecutionRealism:  ExecutionRealism(months),
	}
}

// ExecutionRealism labels an execution period
func ExecutionRealism(months *float64) string {
	if months == nil || *months == 0 {
		return "duration unknown"
	}
	switch m := *months; {
	case m <= 12:
		return "fast-cycle"
	case m <= 24:
		return "normal-cycle"
	case m <= longExecutionMonths:
		return "slow-cycle"
	default:
		return "very long-cycle"
	}
}

func institutionalRisk(stage, conditionality string, months *float64) string {
	switch {
	case stage == StageL1 || conditionality == ConditionalityHigh:
		return RiskHigh
	case (months != nil && *months > longExecutionMonths) || stage == StageOther:
		return RiskMed
	default:
		return RiskLow
	}
}

// lowerRisk steps risk down one level for government counterparties
func lowerRisk(risk string) string {
	switch risk {
	case RiskHigh:
		return RiskMed
	case RiskMed:
		return RiskLow
	default:
		return risk
	}
}

func tacticalPlan(stage, risk string, impact int) string {
	switch {
	case stage == StageL1:
		return PlanWaitConfirmation
	case risk == RiskHigh:
		return PlanAvoidChase
	case impact >= actionableScore:
		return PlanBuyDip
	default:
		return PlanMomentumOK
	}
}

// inBudgetWindow reports whether date falls between Jan 15 and Feb 15
// inclusive, the run-up to and aftermath of the Union Budget
func inBudgetWindow(date string) bool {
	t, ok := parseDate(date)
	if !ok {
		return false
	}
	day := t.Day()
	switch t.Month() {
	case time.January:
		return day >= 15
	case time.February:
		return day <= 15
	default:
		return false
	}
}
