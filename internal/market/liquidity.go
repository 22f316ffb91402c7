package market

import "math"

const (
	minRange = 0.01

	distributionWick     = 0.55
	distributionClosePos = 0.35
	distributionVolRatio = 2.5

	breakoutClosePos = 0.70
	breakoutVolRatio = 2.0

	avoidSpreadPct  = 0.50
	marketSpreadPct = 0.15
	marketVolRatio  = 1.2
)

// CalculateLiquidity derives microstructure metrics for a quote. Depth fields,
// when non-zero, take priority over the book fields embedded in the quote.
// avgVol20d may be nil when no historical baseline is available.
func CalculateLiquidity(q Quote, depth *DepthSnapshot, avgVol20d *float64) LiquidityMetrics {
	var d DepthSnapshot
	if depth != nil {
		d = *depth
	}

	bid := orElse(d.BestBidPrice, q.BestBidPrice)
	ask := orElse(d.BestOfferPrice, q.BestOfferPrice)
	bidQty := orElse(d.BestBidQuantity, q.BestBidQuantity)
	askQty := orElse(d.BestOfferQuantity, q.BestOfferQuantity)

	var spreadPct *float64
	mid := (bid + ask) / 2
	if mid > 0 {
		s := (ask - bid) / mid * 100
		spreadPct = &s
	}

	depthRatio := (bidQty + 1) / (askQty + 1)

	var volRatio *float64
	var avg *float64
	if avgVol20d != nil && *avgVol20d != 0 {
		a := *avgVol20d
		avg = &a
		volToday := orElse(q.TotalQuantityTraded, q.Volume)
		r := volToday / a
		volRatio = &r
	}

	return LiquidityMetrics{
		SpreadPct:      spreadPct,
		DepthRatio:     depthRatio,
		VolRatio:       volRatio,
		Regime:         classifyRegime(q, volRatio),
		ExecutionStyle: classifyExecution(spreadPct, volRatio),
		Bid:            bid,
		Ask:            ask,
		BidQty:         bidQty,
		AskQty:         askQty,
		AvgVol20d:      avg,
	}
}

func classifyRegime(q Quote, volRatio *float64) Regime {
	last := q.LastTradedPrice
	rng := math.Max(q.High-q.Low, minRange)
	wickRatio := (q.High - math.Max(q.Open, last)) / rng
	closePos := (last - q.Low) / rng

	if volRatio == nil {
		return RegimeNeutral
	}
	if wickRatio > distributionWick && closePos < distributionClosePos && *volRatio > distributionVolRatio {
		return RegimeDistribution
	}
	if closePos > breakoutClosePos && *volRatio > breakoutVolRatio {
		return RegimeBreakout
	}
	return RegimeNeutral
}

func classifyExecution(spreadPct, volRatio *float64) ExecutionStyle {
	switch {
	case spreadPct == nil:
		return ExecutionLimitOnly
	case *spreadPct > avoidSpreadPct:
		return ExecutionAvoid
	case *spreadPct < marketSpreadPct && (volRatio == nil || *volRatio >= marketVolRatio):
		return ExecutionOKForMarket
	default:
		return ExecutionLimitOnly
	}
}

// AverageVolume returns the mean volume of the last window bars, or nil when
// there are no bars or the mean is zero.
func AverageVolume(bars []Bar, window int) *float64 {
	if len(bars) == 0 || window <= 0 {
		return nil
	}
	if len(bars) > window {
		bars = bars[len(bars)-window:]
	}
	var total float64
	for _, b := range bars {
		total += b.Volume
	}
	avg := total / float64(len(bars))
	if avg == 0 {
		return nil
	}
	return &avg
}

func orElse(primary, fallback float64) float64 {
	if primary != 0 {
		return primary
	}
	return fallback
}
