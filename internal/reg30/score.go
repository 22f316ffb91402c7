package reg30

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	maxConversionBonus = 10
	daysPerMonth       = 30.44

	manualReviewConfidence = 0.65
	actionableScore        = 75
	watchScore             = 55
)

// ScoreResult is the output of Score
type ScoreResult struct {
	ImpactScore     int            `json:"impact_score"`
	Direction       Direction      `json:"direction"`
	Recommendation  Recommendation `json:"recommendation"`
	Factors         []string       `json:"factors"`
	ConversionBonus int            `json:"conversion_bonus"`
	ExecutionMonths *float64       `json:"execution_months"`
	OrderType       string         `json:"order_type"`
}

// scorer accumulates additive factors and their audit trail
type scorer struct {
	score   int
	factors []string
}

func (s *scorer) add(points int, reason string) {
	s.score += points
	sign := ""
	if points >= 0 {
		sign = "+"
	}
	s.factors = append(s.factors, fmt.Sprintf("%s%d: %s", sign, points, reason))
}

// Score assigns an impact score, direction and recommendation to an event.
// It never fails; absent fields score lower or are reported as missing in the
// factor trail.
func Score(family Family, ext ExtractedFields, confidence float64, eventDate string) ScoreResult {
	s := &scorer{}
	direction := DirectionNeutral
	conversion := 0
	months := ResolveExecutionMonths(ext)

	orderType := ext.OrderType
	if orderType == "" {
		orderType = OrderTypeUnknown
	}

	switch family {
	case FamilyOrderContract, FamilyOrderPipeline:
		direction = DirectionPositive

		base := 15
		if family == FamilyOrderContract {
			base = 20
		}
		s.add(base, "Base weight for "+strings.Replace(string(family), "_", " ", 1))

		if v := present(ext.OrderValueCr); v != nil {
			s.add(valueBonus(*v), fmt.Sprintf("Value bonus (₹%s Cr)", formatNumber(*v)))
		} else {
			s.add(-10, "Order value missing")
		}

		stage := ext.Stage
		if stage == "" {
			stage = "General"
		}
		s.add(stageBonus(ext.Stage), "Stage: "+stage)

		if months == nil && ext.EndDate != "" {
			months = InferExecutionMonths(eventDate, ext.EndDate)
		}

		conversion = conversionBonus(months, orderType)
		if conversion > 0 {
			label := "N/A"
			if months != nil && *months != 0 {
				label = formatNumber(*months)
			}
			s.add(conversion, fmt.Sprintf("Conversion bonus (execution ~%s months, type: %s)", label, orderType))
		}

	case FamilyCreditRating:
		action := strings.ToLower(strings.TrimSpace(ext.RatingAction))
		upgrade := strings.Contains(action, "upgrade")
		downgrade := strings.Contains(action, "downgrade")

		label := ext.RatingAction
		if label == "" {
			label = "Review"
		}
		switch {
		case upgrade:
			direction = DirectionPositive
			s.add(40, "Rating: "+label)
		case downgrade:
			direction = DirectionNegative
			s.add(50, "Rating: "+label)
		default:
			s.add(10, "Rating: "+label)
		}

	case FamilyLitigation:
		direction = DirectionNegative
		s.add(40, "Litigation risk")

	default:
		s.add(10, "Standard event: "+string(family))
	}

	impact := clamp(s.score, 0, 100)

	return ScoreResult{
		ImpactScore:     impact,
		Direction:       direction,
		Recommendation:  Recommend(impact, direction, confidence),
		Factors:         s.factors,
		ConversionBonus: conversion,
		ExecutionMonths: months,
		OrderType:       orderType,
	}
}

// Recommend derives the action recommendation from a clamped score. Low
// confidence overrides every score tier.
func Recommend(impact int, direction Direction, confidence float64) Recommendation {
	switch {
	case confidence < manualReviewConfidence:
		return RecommendationNeedsManualReview
	case impact >= actionableScore:
		if direction == DirectionPositive {
			return RecommendationActionableBullish
		}
		return RecommendationActionableBearish
	case impact >= watchScore:
		return RecommendationHighPriorityWatch
	default:
		return RecommendationTrack
	}
}

// ResolveExecutionMonths returns the explicit execution months, else years
// converted to months, else nil. Zero values count as absent.
func ResolveExecutionMonths(ext ExtractedFields) *float64 {
	if m := present(ext.ExecutionMonths); m != nil {
		v := *m
		return &v
	}
	if y := present(ext.ExecutionYears); y != nil {
		v := *y * 12
		return &v
	}
	return nil
}

// InferExecutionMonths estimates the execution period from the event date to
// the contract end date. Returns nil when either date cannot be parsed.
func InferExecutionMonths(eventDate, endDate string) *float64 {
	start, ok := parseDate(eventDate)
	if !ok {
		return nil
	}
	end, ok := parseDate(endDate)
	if !ok {
		return nil
	}
	days := math.Ceil(math.Abs(end.Sub(start).Hours()) / 24)
	months := math.Round(days / daysPerMonth)
	return &months
}

func valueBonus(valueCr float64) int {
	switch {
	case valueCr >= 1000:
		return 30
	case valueCr >= 500:
		return 20
	case valueCr >= 100:
		return 10
	default:
		return 5
	}
}

func stageBonus(stage string) int {
	switch stage {
	case StageLOA:
		return 20
	case StageWO:
		return 18
	case StageNTP:
		return 15
	case StageL1:
		return 12
	default:
		return 5
	}
}

// conversionBonus rewards fast execution. The order type addition is applied
// before the cap, so it can be truncated.
func conversionBonus(months *float64, orderType string) int {
	bonus := 0
	if months != nil {
		switch m := *months; {
		case m <= 6:
			bonus = 10
		case m <= 12:
			bonus = 6
		case m <= 24:
			bonus = 2
		}
	}
	switch orderType {
	case OrderTypeSupply:
		bonus += 2
	case OrderTypeServices:
		bonus++
	}
	if bonus > maxConversionBonus {
		bonus = maxConversionBonus
	}
	return bonus
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	"02/01/2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func present(v *float64) *float64 {
	if v == nil || *v == 0 || math.IsNaN(*v) {
		return nil
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
