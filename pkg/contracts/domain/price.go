package domain

import "time"

// DateLayout is the canonical date representation used as the join key
// between price and institutional data.
const DateLayout = "2006-01-02"

// Price series field names.
const (
	PriceFieldDate     = "Date"
	PriceFieldOpen     = "Open"
	PriceFieldHigh     = "High"
	PriceFieldLow      = "Low"
	PriceFieldClose    = "Close"
	PriceFieldAdjClose = "Adj Close"
	PriceFieldVolume   = "Volume"
)

// Column is a possibly two-level column label: a field name paired with a
// grouping label such as the ticker symbol.
type Column struct {
	Field string `json:"field"`
	Group string `json:"group,omitempty"`
}

// PriceSeriesRow is one trading day of OHLCV data.
type PriceSeriesRow struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose *float64  `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// DateKey returns the canonical YYYY-MM-DD join key.
func (r PriceSeriesRow) DateKey() string {
	return r.Date.Format(DateLayout)
}

// PriceSeries is the daily price history of one ticker as ingested from a
// price provider. Columns[0] is the date index; providers may label it
// however they like.
type PriceSeries struct {
	Ticker   string           `json:"ticker"`
	Adjusted bool             `json:"adjusted"`
	Columns  []Column         `json:"columns"`
	Rows     []PriceSeriesRow `json:"rows"`
}

// IsEmpty reports whether the series has no rows.
func (s *PriceSeries) IsEmpty() bool {
	return s == nil || len(s.Rows) == 0
}

// DefaultPriceColumns returns the two-level column scheme for a ticker.
func DefaultPriceColumns(ticker string, withAdjClose bool) []Column {
	cols := []Column{
		{Field: PriceFieldDate},
		{Field: PriceFieldOpen, Group: ticker},
		{Field: PriceFieldHigh, Group: ticker},
		{Field: PriceFieldLow, Group: ticker},
		{Field: PriceFieldClose, Group: ticker},
	}
	if withAdjClose {
		cols = append(cols, Column{Field: PriceFieldAdjClose, Group: ticker})
	}
	return append(cols, Column{Field: PriceFieldVolume, Group: ticker})
}
