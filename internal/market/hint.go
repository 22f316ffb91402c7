package market

// RecommendationHint returns the short guidance line shown next to a
// watchlist entry
func RecommendationHint(open bool, metrics *LiquidityMetrics) string {
	if !open {
		return "Market Closed - Last Ledger Displayed"
	}
	if metrics == nil {
		return "Awaiting depth..."
	}
	switch {
	case metrics.ExecutionStyle == ExecutionAvoid:
		return "Avoid thin liquidity"
	case metrics.Regime == RegimeDistribution:
		return "Sell-on-news risk; wait"
	case metrics.Regime == RegimeBreakout:
		return "Momentum OK if volume holds"
	default:
		return "Watch confirmation"
	}
}
