package market

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Row is a raw feed row as delivered by the broker proxy, either from a REST
// response or a push update. Values may be numbers, numeric strings or absent.
type Row map[string]interface{}

// NormalizeQuote converts a raw feed row into a Quote. It never fails:
// missing or malformed values become 0.
func NormalizeQuote(row Row, symbol string) Quote {
	ltp := row.first("ltp", "last_traded_price")
	prevClose := row.Float("previous_close")

	change := ltp - prevClose
	if row.Has("change") {
		change = row.Float("change")
	}

	return Quote{
		Symbol:              symbol,
		LastTradedPrice:     ltp,
		Change:              change,
		PercentChange:       row.first("ltp_percent_change", "chng_per"),
		Open:                row.Float("open"),
		High:                row.Float("high"),
		Low:                 row.Float("low"),
		PreviousClose:       prevClose,
		Volume:              row.first("total_volume", "volume"),
		TotalQuantityTraded: row.Float("total_quantity_traded"),
		BestBidPrice:        row.Float("best_bid_price"),
		BestBidQuantity:     row.Float("best_bid_quantity"),
		BestOfferPrice:      row.Float("best_offer_price"),
		BestOfferQuantity:   row.Float("best_offer_quantity"),
	}
}

// NormalizeDepth extracts the top of book from a raw depth row
func NormalizeDepth(row Row) DepthSnapshot {
	return DepthSnapshot{
		BestBidPrice:      row.Float("best_bid_price"),
		BestBidQuantity:   row.Float("best_bid_quantity"),
		BestOfferPrice:    row.Float("best_offer_price"),
		BestOfferQuantity: row.Float("best_offer_quantity"),
	}
}

// Has reports whether key is present with a non-nil value
func (r Row) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Float returns the value at key coerced to a finite float64, or 0
func (r Row) Float(key string) float64 {
	return toFloat(r[key])
}

// String returns the value at key as a string, or ""
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// first returns the value of the first key present in the row. A present
// zero or unparsable value wins over later keys.
func (r Row) first(keys ...string) float64 {
	for _, key := range keys {
		if r.Has(key) {
			return r.Float(key)
		}
	}
	return 0
}

func toFloat(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(n, ",", "")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		return 0
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
