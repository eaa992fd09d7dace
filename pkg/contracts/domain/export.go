package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Market selects the Taiwan board a security trades on.
type Market string

const (
	MarketListed Market = "listed" // TWSE
	MarketOTC    Market = "otc"    // TPEx
)

// TickerSuffix returns the price-provider suffix for the market.
func (m Market) TickerSuffix() string {
	if m == MarketOTC {
		return ".TWO"
	}
	return ".TW"
}

// XLSXContentType is the MIME type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportRequest carries the user's export form.
type ExportRequest struct {
	SecurityID           string `json:"security_id" validate:"required,security_id"`
	Market               Market `json:"market" validate:"required,oneof=listed otc"`
	AdjustPrices         bool   `json:"adjust_prices"`
	IncludeInstitutional bool   `json:"include_institutional"`
	StartDate            string `json:"start_date" validate:"required,iso8601"`
	EndDate              string `json:"end_date" validate:"required,iso8601"`
}

// Range parses StartDate and EndDate in loc.
func (r ExportRequest) Range(loc *time.Location) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(DateLayout, r.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: %w", r.StartDate, err)
	}
	end, err = time.ParseInLocation(DateLayout, r.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: %w", r.EndDate, err)
	}
	return start, end, nil
}

// Filename returns the download name {securityId}_{startDate}_{endDate}.ext.
func (r ExportRequest) Filename(ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", r.SecurityID, r.StartDate, r.EndDate, ext)
}

func formatJSONFloat(v float64) []byte {
	return strconv.AppendFloat(nil, v, 'f', -1, 64)
}
