package domain

import "time"

// DayStatus classifies what one trading day's institutional request produced.
type DayStatus string

const (
	DayFetched        DayStatus = "fetched"         // at least one matching row
	DayNoData         DayStatus = "no_data"         // empty or unparsable body
	DayNotListed      DayStatus = "not_listed"      // body parsed, security absent
	DayTransportError DayStatus = "transport_error" // request failed or non-2xx
	DayCancelled      DayStatus = "cancelled"       // never requested
)

// FetchProgress reports one completed day of an institutional fetch.
type FetchProgress struct {
	ExportID   string    `json:"export_id,omitempty"`
	SecurityID string    `json:"security_id"`
	Date       string    `json:"date"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	Status     DayStatus `json:"status"`
	Rows       int       `json:"rows"`
	Timestamp  time.Time `json:"timestamp"`
}
