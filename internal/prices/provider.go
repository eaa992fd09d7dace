// Package prices retrieves daily OHLCV history for Taiwan securities.
package prices

import (
	"context"
	"time"

	"twexport/pkg/contracts/domain"
)

// Provider returns the daily price series of a ticker. end is inclusive.
// A ticker without data in the range yields an empty series, not an error.
type Provider interface {
	FetchDailyPrices(ctx context.Context, ticker string, start, end time.Time, adjust bool) (*domain.PriceSeries, error)
}

// Ticker builds the provider symbol for a security, e.g. 2330.TW or 6488.TWO.
func Ticker(securityID string, market domain.Market) string {
	return securityID + market.TickerSuffix()
}
