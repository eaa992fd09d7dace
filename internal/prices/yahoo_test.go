package prices

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twexport/pkg/contracts/domain"
)

// 2024-09-12 and 2024-09-13 09:00 Asia/Taipei, plus a day without a close.
const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "2330.TW", "currency": "TWD", "exchangeTimezoneName": "Asia/Taipei", "gmtoffset": 28800},
      "timestamp": [1726102800, 1726189200, 1726448400],
      "indicators": {
        "quote": [{
          "open":   [940.0, 950.0, null],
          "high":   [950.0, 960.0, null],
          "low":    [930.0, 945.0, null],
          "close":  [945.0, 955.0, null],
          "volume": [30000000, 25000000, null]
        }],
        "adjclose": [{"adjclose": [472.5, 477.5, null]}]
      }
    }],
    "error": null
  }
}`

const notFoundFixture = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestClient(url string, retries int) *YahooClient {
	return NewYahooClient(YahooOptions{
		BaseURL:    url,
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		RetryCount: retries,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestTicker(t *testing.T) {
	assert.Equal(t, "2330.TW", Ticker("2330", domain.MarketListed))
	assert.Equal(t, "6488.TWO", Ticker("6488", domain.MarketOTC))
}

func TestFetchDailyPrices_Unadjusted(t *testing.T) {
	var query url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chartFixture)
	}))
	defer srv.Close()

	loc, _ := time.LoadLocation("Asia/Taipei")
	start := time.Date(2024, 9, 12, 0, 0, 0, 0, loc)
	end := time.Date(2024, 9, 16, 0, 0, 0, 0, loc)

	series, err := newTestClient(srv.URL, 0).FetchDailyPrices(context.Background(), "2330.TW", start, end, false)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/2330.TW", path)
	assert.Equal(t, "1d", query.Get("interval"))
	assert.Equal(t, "true", query.Get("includeAdjustedClose"))
	assert.Equal(t, "1726070400", query.Get("period1"))
	assert.Equal(t, "1726502400", query.Get("period2"), "end date is inclusive")

	require.Len(t, series.Rows, 2, "row without close is dropped")
	assert.Equal(t, "2024-09-12", series.Rows[0].DateKey())
	assert.Equal(t, "2024-09-13", series.Rows[1].DateKey())
	assert.Equal(t, 945.0, series.Rows[0].Close)
	assert.Equal(t, int64(30000000), series.Rows[0].Volume)
	assert.Nil(t, series.Rows[0].AdjClose)

	for _, c := range series.Columns {
		assert.NotEqual(t, domain.PriceFieldAdjClose, c.Field)
	}
	assert.False(t, series.Adjusted)
}

func TestFetchDailyPrices_Adjusted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, chartFixture)
	}))
	defer srv.Close()

	start := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	series, err := newTestClient(srv.URL, 0).FetchDailyPrices(context.Background(), "2330.TW", start, start.AddDate(0, 0, 4), true)
	require.NoError(t, err)

	require.Len(t, series.Rows, 2)
	row := series.Rows[0]
	require.NotNil(t, row.AdjClose)
	assert.InDelta(t, 472.5, *row.AdjClose, 1e-9)
	assert.InDelta(t, 470.0, row.Open, 1e-9)
	assert.InDelta(t, 472.5, row.Close, 1e-9)

	var fields []string
	for _, c := range series.Columns {
		fields = append(fields, c.Field)
		if c.Field != domain.PriceFieldDate {
			assert.Equal(t, "2330.TW", c.Group)
		}
	}
	assert.Contains(t, fields, domain.PriceFieldAdjClose)
}

func TestFetchDailyPrices_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, notFoundFixture)
	}))
	defer srv.Close()

	start := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	series, err := newTestClient(srv.URL, 0).FetchDailyPrices(context.Background(), "9999.TW", start, start, false)
	require.NoError(t, err)
	assert.True(t, series.IsEmpty())
}

func TestFetchDailyPrices_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, chartFixture)
	}))
	defer srv.Close()

	start := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	series, err := newTestClient(srv.URL, 2).FetchDailyPrices(context.Background(), "2330.TW", start, start.AddDate(0, 0, 4), false)
	require.NoError(t, err)
	assert.Len(t, series.Rows, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchDailyPrices_ServerErrorWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	start := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	_, err := newTestClient(srv.URL, 0).FetchDailyPrices(context.Background(), "2330.TW", start, start, false)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestFetchDailyPrices_InvalidRange(t *testing.T) {
	start := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	_, err := newTestClient("http://127.0.0.1:0", 0).FetchDailyPrices(context.Background(), "2330.TW", start, start.AddDate(0, 0, -1), false)
	assert.Error(t, err)
}
