// Package market provides pure functions for quote normalization, liquidity
// metrics and the exchange session clock. No I/O.
package market

import "encoding/gob"

func init() {
	// Register types with gob for BadgerDB serialization
	gob.Register(Quote{})
	gob.Register(DepthSnapshot{})
	gob.Register(LiquidityMetrics{})
	gob.Register(Bar{})
	gob.Register([]Bar{})
}

// Regime is the heuristic candle-shape classification of the session
type Regime string

const (
	RegimeBreakout     Regime = "BREAKOUT"
	RegimeDistribution Regime = "DISTRIBUTION"
	RegimeNeutral      Regime = "NEUTRAL"
)

// ExecutionStyle is the suggested order type given current liquidity
type ExecutionStyle string

const (
	ExecutionLimitOnly   ExecutionStyle = "LIMIT_ONLY"
	ExecutionOKForMarket ExecutionStyle = "OK_FOR_MARKET"
	ExecutionAvoid       ExecutionStyle = "AVOID"
)

// Quote is the canonical quote record produced from a raw feed row
type Quote struct {
	Symbol              string  `json:"symbol"`
	LastTradedPrice     float64 `json:"last_traded_price"`
	Change              float64 `json:"change"`
	PercentChange       float64 `json:"percent_change"`
	Open                float64 `json:"open"`
	High                float64 `json:"high"`
	Low                 float64 `json:"low"`
	PreviousClose       float64 `json:"previous_close"`
	Volume              float64 `json:"volume"`
	TotalQuantityTraded float64 `json:"total_quantity_traded"`
	BestBidPrice        float64 `json:"best_bid_price"`
	BestBidQuantity     float64 `json:"best_bid_quantity"`
	BestOfferPrice      float64 `json:"best_offer_price"`
	BestOfferQuantity   float64 `json:"best_offer_quantity"`
}

// DepthSnapshot is the top of the order book. Deeper levels are not consumed.
type DepthSnapshot struct {
	BestBidPrice      float64 `json:"best_bid_price"`
	BestBidQuantity   float64 `json:"best_bid_quantity"`
	BestOfferPrice    float64 `json:"best_offer_price"`
	BestOfferQuantity float64 `json:"best_offer_quantity"`
}

// LiquidityMetrics is derived from a quote, an optional depth snapshot and an
// optional 20-day average volume. SpreadPct and VolRatio are nil when they
// cannot be computed.
type LiquidityMetrics struct {
	SpreadPct      *float64       `json:"spread_pct"`
	DepthRatio     float64        `json:"depth_ratio"`
	VolRatio       *float64       `json:"vol_ratio"`
	Regime         Regime         `json:"regime"`
	ExecutionStyle ExecutionStyle `json:"execution_style"`
	Bid            float64        `json:"bid"`
	Ask            float64        `json:"ask"`
	BidQty         float64        `json:"bid_qty"`
	AskQty         float64        `json:"ask_qty"`
	AvgVol20d      *float64       `json:"avg_vol_20d"`
}

// Bar is one daily historical bar
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
