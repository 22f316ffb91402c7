package models

import "time"

// WatchlistStock is a bookmarked symbol with its last polled price
type WatchlistStock struct {
	Symbol           string    `json:"symbol" badgerhold:"key"`
	CompanyName      string    `json:"company_name"`
	CurrentPrice     float64   `json:"current_price"`
	PercentageChange float64   `json:"percentage_change"`
	LastUpdate       time.Time `json:"last_update"`
	LastError        string    `json:"last_error,omitempty"`
	AddedAt          time.Time `json:"added_at"`
}
