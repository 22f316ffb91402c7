package models

import "time"

// DataSource identifies where a market status value came from
type DataSource string

const (
	DataSourceBreeze  DataSource = "Breeze Direct"
	DataSourceCache   DataSource = "Cache"
	DataSourceOffline DataSource = "Offline"
)

// MarketLog is a persisted index snapshot
type MarketLog struct {
	ID            uint64     `json:"id" badgerhold:"key"`
	Symbol        string     `json:"symbol"`
	LastPrice     float64    `json:"last_price"`
	ChangePercent float64    `json:"change_percent"`
	Status        string     `json:"status"`
	DataSource    DataSource `json:"data_source"`
	RecordedAt    time.Time  `json:"recorded_at"`
}
