// Package reg30 provides pure functions for classifying, scoring and
// tactically assessing Regulation 30 corporate disclosures. No I/O.
package reg30

import (
	"encoding/gob"
	"time"
)

func init() {
	// Register types with gob for BadgerDB serialization
	gob.Register(ExtractedFields{})
	gob.Register(Extraction{})
	gob.Register(Narrative{})
	gob.Register(EventCandidate{})
	gob.Register(Report{})
	gob.Register([]Report{})
}

// Family is the event family a disclosure is classified into
type Family string

const (
	FamilyOrderContract        Family = "ORDER_CONTRACT"
	FamilyOrderPipeline        Family = "ORDER_PIPELINE"
	FamilyGovernanceManagement Family = "GOVERNANCE_MANAGEMENT"
	FamilyDilutionCapital      Family = "DILUTION_CAPITAL"
	FamilyShareholderReturns   Family = "SHAREHOLDER_RETURNS"
	FamilyCreditRating         Family = "CREDIT_RATING"
	FamilyLitigation           Family = "LITIGATION_REGULATORY"
	FamilyOther                Family = "OTHER"
)

// Source identifies which exchange feed a disclosure CSV came from
type Source string

const (
	SourceXBRL         Source = "XBRL"
	SourceCorpAction   Source = "CorpAction"
	SourceCreditRating Source = "CreditRating"
	SourceRSS          Source = "RSS"
)

// ParseSource returns the Source for s, defaulting to XBRL
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceCorpAction, SourceCreditRating, SourceRSS:
		return Source(s)
	default:
		return SourceXBRL
	}
}

// Direction is the expected price direction of an event
type Direction string

const (
	DirectionPositive Direction = "POSITIVE"
	DirectionNegative Direction = "NEGATIVE"
	DirectionNeutral  Direction = "NEUTRAL"
)

// Recommendation is the action recommendation derived from the score
type Recommendation string

const (
	RecommendationActionableBullish Recommendation = "ACTIONABLE_BULLISH"
	RecommendationActionableBearish Recommendation = "ACTIONABLE_BEARISH_RISK"
	RecommendationHighPriorityWatch Recommendation = "HIGH_PRIORITY_WATCH"
	RecommendationTrack             Recommendation = "TRACK"
	RecommendationNeedsManualReview Recommendation = "NEEDS_MANUAL_REVIEW"
	RecommendationIgnore            Recommendation = "IGNORE"
)

// Order pipeline stages
const (
	StageL1    = "L1"
	StageLOA   = "LOA"
	StageWO    = "WO"
	StageNTP   = "NTP"
	StageMOU   = "MOU"
	StageOther = "OTHER"
)

// Order types
const (
	OrderTypeSupply      = "SUPPLY"
	OrderTypeEPC         = "EPC"
	OrderTypeServices    = "SERVICES"
	OrderTypeMaintenance = "MAINTENANCE"
	OrderTypeMixed       = "MIXED"
	OrderTypeUnknown     = "UNKNOWN"
)

// Conditionality levels
const (
	ConditionalityHigh   = "HIGH"
	ConditionalityMedium = "MEDIUM"
	ConditionalityLow    = "LOW"
)

// Institutional risk levels
const (
	RiskLow  = "LOW"
	RiskMed  = "MED"
	RiskHigh = "HIGH"
)

// Policy bias values
const (
	PolicyTailwind = "TAILWIND"
	PolicyHeadwind = "HEADWIND"
	PolicyNeutral  = "NEUTRAL"
)

// Tactical plans
const (
	PlanBuyDip           = "BUY_DIP"
	PlanWaitConfirmation = "WAIT_CONFIRMATION"
	PlanMomentumOK       = "MOMENTUM_OK"
	PlanAvoidChase       = "AVOID_CHASE"
)

// Processing status of one candidate in a batch analysis
type Status string

const (
	StatusFetching    Status = "FETCHING"
	StatusAIAnalyzing Status = "AI_ANALYZING"
	StatusSaving      Status = "SAVING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// ExtractedFields are the structured fields returned by the extraction
// collaborator. Any field may be absent; numeric fields use pointers so
// absence is distinguishable from zero.
type ExtractedFields struct {
	OrderValueCr    *float64 `json:"order_value_cr"`
	Stage           string   `json:"stage,omitempty" validate:"omitempty,oneof=L1 LOA WO NTP MOU OTHER"`
	International   *bool    `json:"international"`
	NewCustomer     *bool    `json:"new_customer"`
	ExecutionMonths *float64 `json:"execution_months"`
	ExecutionYears  *float64 `json:"execution_years"`
	OrderType       string   `json:"order_type,omitempty" validate:"omitempty,oneof=SUPPLY EPC SERVICES MAINTENANCE MIXED UNKNOWN"`
	EndDate         string   `json:"end_date,omitempty"`
	Conditionality  string   `json:"conditionality,omitempty" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
	RatingAction    string   `json:"rating_action,omitempty"`
	Notches         *float64 `json:"notches"`
	OutlookChange   string   `json:"outlook_change,omitempty"`
	AmountCr        *float64 `json:"amount_cr"`
	StageLegal      string   `json:"stage_legal,omitempty"`
	OpsImpact       string   `json:"ops_impact,omitempty"`
	Customer        string   `json:"customer,omitempty"`
}

// Extraction is the full result of the extraction collaborator
type Extraction struct {
	Summary        string          `json:"summary"`
	ImpactScore    float64         `json:"impact_score"`
	Recommendation string          `json:"recommendation,omitempty"`
	Confidence     float64         `json:"confidence"`
	MissingFields  []string        `json:"missing_fields"`
	EvidenceSpans  []string        `json:"evidence_spans"`
	Extracted      ExtractedFields `json:"extracted"`
}

// Narrative is the output of the narrative collaborator
type Narrative struct {
	Text string `json:"event_analysis_text"`
	Tone string `json:"tone,omitempty"`
}

// EventCandidate is one disclosure row awaiting analysis
type EventCandidate struct {
	ID             string `json:"id"`
	Source         Source `json:"source"`
	EventDate      string `json:"event_date"`
	Symbol         string `json:"symbol"`
	CompanyName    string `json:"company_name"`
	Category       string `json:"category"`
	Details        string `json:"details"`
	RatingAction   string `json:"rating_action,omitempty"`
	RawText        string `json:"raw_text"`
	AttachmentLink string `json:"attachment_link"`
	AttachmentText string `json:"attachment_text,omitempty"`
	EventFamily    Family `json:"event_family"`
}

// Report is the persisted outcome of analyzing one EventCandidate
type Report struct {
	EventFingerprint  string          `json:"event_fingerprint" badgerhold:"key"`
	CandidateID       string          `json:"candidate_id"`
	Source            Source          `json:"source"`
	Symbol            string          `json:"symbol" badgerhold:"index"`
	CompanyName       string          `json:"company_name"`
	EventDate         string          `json:"event_date"`
	EventFamily       Family          `json:"event_family" badgerhold:"index"`
	Stage             string          `json:"stage"`
	Summary           string          `json:"summary"`
	ImpactScore       int             `json:"impact_score"`
	Direction         Direction       `json:"direction"`
	Confidence        float64         `json:"confidence"`
	Recommendation    Recommendation  `json:"action_recommendation"`
	Extracted         ExtractedFields `json:"extracted_json"`
	EvidenceSpans     []string        `json:"evidence_spans"`
	MissingFields     []string        `json:"missing_fields"`
	ScoringFactors    []string        `json:"scoring_factors"`
	ConversionBonus   int             `json:"conversion_bonus"`
	ExecutionMonths   *float64        `json:"execution_months"`
	OrderType         string          `json:"order_type"`
	RawText           string          `json:"raw_text"`
	AttachmentLink    string          `json:"attachment_link"`
	AttachmentText    string          `json:"attachment_text,omitempty"`
	InstitutionalRisk string          `json:"institutional_risk,omitempty"`
	PolicyBias        string          `json:"policy_bias,omitempty"`
	PolicyEvent       string          `json:"policy_event,omitempty"`
	TacticalPlan      string          `json:"tactical_plan,omitempty"`
	TriggerText       string          `json:"trigger_text,omitempty"`
	ExecutionRealism  string          `json:"execution_realism,omitempty"`
	Narrative         string          `json:"event_analysis_text,omitempty"`
	NarrativeTone     string          `json:"tone,omitempty"`
	AnalysisUpdatedAt time.Time       `json:"analysis_updated_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
