package reg30

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestScore_OrderContract(t *testing.T) {
	tests := []struct {
		name           string
		family         Family
		ext            ExtractedFields
		eventDate      string
		wantScore      int
		wantRec        Recommendation
		wantConversion int
		wantMonths     *float64
		wantOrderType  string
		wantFactors    []string
	}{
		{
			name:           "loa epc mid value",
			family:         FamilyOrderContract,
			ext:            ExtractedFields{OrderValueCr: f(450), Stage: StageLOA, ExecutionMonths: f(18), OrderType: OrderTypeEPC},
			wantScore:      52,
			wantRec:        RecommendationTrack,
			wantConversion: 2,
			wantMonths:     f(18),
			wantOrderType:  OrderTypeEPC,
			wantFactors: []string{
				"+20: Base weight for ORDER CONTRACT",
				"+10: Value bonus (₹450 Cr)",
				"+20: Stage: LOA",
				"+2: Conversion bonus (execution ~18 months, type: EPC)",
			},
		},
		{
			name:          "missing value and other stage",
			family:        FamilyOrderContract,
			ext:           ExtractedFields{Stage: StageOther},
			wantScore:     15,
			wantRec:       RecommendationTrack,
			wantOrderType: OrderTypeUnknown,
			wantFactors: []string{
				"+20: Base weight for ORDER CONTRACT",
				"-10: Order value missing",
				"+5: Stage: OTHER",
			},
		},
		{
			name:           "large fast supply order caps conversion",
			family:         FamilyOrderContract,
			ext:            ExtractedFields{OrderValueCr: f(2000), Stage: StageLOA, ExecutionMonths: f(3), OrderType: OrderTypeSupply},
			wantScore:      80,
			wantRec:        RecommendationActionableBullish,
			wantConversion: 10,
			wantMonths:     f(3),
			wantOrderType:  OrderTypeSupply,
			wantFactors: []string{
				"+20: Base weight for ORDER CONTRACT",
				"+30: Value bonus (₹2000 Cr)",
				"+20: Stage: LOA",
				"+10: Conversion bonus (execution ~3 months, type: SUPPLY)",
			},
		},
		{
			name:           "pipeline with years and no stage",
			family:         FamilyOrderPipeline,
			ext:            ExtractedFields{OrderValueCr: f(600), ExecutionYears: f(1.5)},
			wantScore:      42,
			wantRec:        RecommendationTrack,
			wantConversion: 2,
			wantMonths:     f(18),
			wantOrderType:  OrderTypeUnknown,
			wantFactors: []string{
				"+15: Base weight for ORDER PIPELINE",
				"+20: Value bonus (₹600 Cr)",
				"+5: Stage: General",
				"+2: Conversion bonus (execution ~18 months, type: UNKNOWN)",
			},
		},
		{
			name:           "months inferred from end date",
			family:         FamilyOrderContract,
			ext:            ExtractedFields{OrderValueCr: f(50), Stage: StageWO, EndDate: "2026-07-01"},
			eventDate:      "2026-01-01",
			wantScore:      53,
			wantRec:        RecommendationTrack,
			wantConversion: 10,
			wantMonths:     f(6),
			wantOrderType:  OrderTypeUnknown,
			wantFactors: []string{
				"+20: Base weight for ORDER CONTRACT",
				"+5: Value bonus (₹50 Cr)",
				"+18: Stage: WO",
				"+10: Conversion bonus (execution ~6 months, type: UNKNOWN)",
			},
		},
		{
			name:           "supply order without duration",
			family:         FamilyOrderContract,
			ext:            ExtractedFields{OrderValueCr: f(120.5), Stage: StageNTP, OrderType: OrderTypeSupply},
			wantScore:      47,
			wantRec:        RecommendationTrack,
			wantConversion: 2,
			wantOrderType:  OrderTypeSupply,
			wantFactors: []string{
				"+20: Base weight for ORDER CONTRACT",
				"+10: Value bonus (₹120.5 Cr)",
				"+15: Stage: NTP",
				"+2: Conversion bonus (execution ~N/A months, type: SUPPLY)",
			},
		},
		{
			name:           "slow services order",
			family:         FamilyOrderContract,
			ext:            ExtractedFields{OrderValueCr: f(100), Stage: StageL1, ExecutionMonths: f(30), OrderType: OrderTypeServices},
			wantScore:      43,
			wantRec:        RecommendationTrack,
			wantConversion: 1,
			wantMonths:     f(30),
			wantOrderType:  OrderTypeServices,
			wantFactors: []string{
				"+20: Base weight for ORDER CONTRACT",
				"+10: Value bonus (₹100 Cr)",
				"+12: Stage: L1",
				"+1: Conversion bonus (execution ~30 months, type: SERVICES)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.family, tt.ext, 0.9, tt.eventDate)

			assert.Equal(t, tt.wantScore, got.ImpactScore)
			assert.Equal(t, DirectionPositive, got.Direction)
			assert.Equal(t, tt.wantRec, got.Recommendation)
			assert.Equal(t, tt.wantConversion, got.ConversionBonus)
			assert.Equal(t, tt.wantOrderType, got.OrderType)
			assert.Equal(t, tt.wantFactors, got.Factors)
			if tt.wantMonths == nil {
				assert.Nil(t, got.ExecutionMonths)
			} else {
				require.NotNil(t, got.ExecutionMonths)
				assert.Equal(t, *tt.wantMonths, *got.ExecutionMonths)
			}
		})
	}
}

func TestScore_OtherFamilies(t *testing.T) {
	tests := []struct {
		name          string
		family        Family
		ext           ExtractedFields
		confidence    float64
		wantScore     int
		wantDirection Direction
		wantRec       Recommendation
		wantFactor    string
	}{
		{
			name:          "rating downgrade scores fifty",
			family:        FamilyCreditRating,
			ext:           ExtractedFields{RatingAction: "downgraded to BB from BBB"},
			confidence:    0.8,
			wantScore:     50,
			wantDirection: DirectionNegative,
			wantRec:       RecommendationTrack,
			wantFactor:    "+50: Rating: downgraded to BB from BBB",
		},
		{
			name:          "rating upgrade",
			family:        FamilyCreditRating,
			ext:           ExtractedFields{RatingAction: "Upgraded to AA"},
			confidence:    0.9,
			wantScore:     40,
			wantDirection: DirectionPositive,
			wantRec:       RecommendationTrack,
			wantFactor:    "+40: Rating: Upgraded to AA",
		},
		{
			name:          "rating review",
			family:        FamilyCreditRating,
			confidence:    0.9,
			wantScore:     10,
			wantDirection: DirectionNeutral,
			wantRec:       RecommendationTrack,
			wantFactor:    "+10: Rating: Review",
		},
		{
			name:          "litigation",
			family:        FamilyLitigation,
			confidence:    0.7,
			wantScore:     40,
			wantDirection: DirectionNegative,
			wantRec:       RecommendationTrack,
			wantFactor:    "+40: Litigation risk",
		},
		{
			name:          "standard event",
			family:        FamilyShareholderReturns,
			confidence:    0.99,
			wantScore:     10,
			wantDirection: DirectionNeutral,
			wantRec:       RecommendationTrack,
			wantFactor:    "+10: Standard event: SHAREHOLDER_RETURNS",
		},
		{
			name:          "low confidence needs manual review",
			family:        FamilyOrderContract,
			ext:           ExtractedFields{OrderValueCr: f(2000), Stage: StageLOA, ExecutionMonths: f(3)},
			confidence:    0.5,
			wantScore:     80,
			wantDirection: DirectionPositive,
			wantRec:       RecommendationNeedsManualReview,
			wantFactor:    "+20: Base weight for ORDER CONTRACT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.family, tt.ext, tt.confidence, "")
			assert.Equal(t, tt.wantScore, got.ImpactScore)
			assert.Equal(t, tt.wantDirection, got.Direction)
			assert.Equal(t, tt.wantRec, got.Recommendation)
			require.NotEmpty(t, got.Factors)
			assert.Equal(t, tt.wantFactor, got.Factors[0])
			assert.Equal(t, 0, got.ConversionBonus)
		})
	}
}

func TestScore_AlwaysClamped(t *testing.T) {
	families := []Family{
		FamilyOrderContract, FamilyOrderPipeline, FamilyCreditRating,
		FamilyLitigation, FamilyGovernanceManagement, FamilyOther,
	}
	exts := []ExtractedFields{
		{},
		{OrderValueCr: f(-5), Stage: "bogus"},
		{OrderValueCr: f(1e9), Stage: StageLOA, ExecutionMonths: f(-100), OrderType: OrderTypeSupply},
		{RatingAction: "upgrade and downgrade"},
	}
	for _, fam := range families {
		for _, ext := range exts {
			got := Score(fam, ext, 1, "2026-01-01")
			assert.GreaterOrEqual(t, got.ImpactScore, 0)
			assert.LessOrEqual(t, got.ImpactScore, 100)
			assert.LessOrEqual(t, got.ConversionBonus, 10)
		}
	}
	assert.Equal(t, 0, clamp(-30, 0, 100))
	assert.Equal(t, 100, clamp(130, 0, 100))
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name       string
		impact     int
		direction  Direction
		confidence float64
		want       Recommendation
	}{
		{"bullish at threshold", 75, DirectionPositive, 0.9, RecommendationActionableBullish},
		{"bearish at threshold", 75, DirectionNegative, 0.9, RecommendationActionableBearish},
		{"neutral high score is bearish risk", 90, DirectionNeutral, 0.9, RecommendationActionableBearish},
		{"watch at threshold", 55, DirectionPositive, 0.9, RecommendationHighPriorityWatch},
		{"track below watch", 54, DirectionPositive, 0.9, RecommendationTrack},
		{"confidence boundary passes", 80, DirectionPositive, 0.65, RecommendationActionableBullish},
		{"confidence below boundary", 80, DirectionPositive, 0.6499, RecommendationNeedsManualReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.impact, tt.direction, tt.confidence))
		})
	}
}

func TestInferExecutionMonths(t *testing.T) {
	got := InferExecutionMonths("2026-01-01", "2026-07-01")
	require.NotNil(t, got)
	assert.Equal(t, 6.0, *got)

	// order of dates does not matter
	got = InferExecutionMonths("2027-01-01", "2026-01-01")
	require.NotNil(t, got)
	assert.Equal(t, 12.0, *got)

	assert.Nil(t, InferExecutionMonths("", "2026-07-01"))
	assert.Nil(t, InferExecutionMonths("2026-01-01", "soon"))
}
