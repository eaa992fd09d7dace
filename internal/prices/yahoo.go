package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"twexport/pkg/contracts/domain"
)

const (
	chartPath          = "/v8/finance/chart/{ticker}"
	defaultYahooURL    = "https://query1.finance.yahoo.com"
	defaultRetryWait   = 500 * time.Millisecond
	defaultRetryMaxCap = 4 * time.Second
)

// ErrProvider wraps failures reported by the price provider itself.
var ErrProvider = errors.New("price provider error")

// chartResponse is the subset of the v8 chart payload that is ingested.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// YahooOptions configures a YahooClient.
type YahooOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RetryCount int
	Logger     *slog.Logger
}

// YahooClient reads daily history from the Yahoo Finance chart API.
type YahooClient struct {
	http   *resty.Client
	logger *slog.Logger
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if r == nil {
		return false
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

// NewYahooClient creates a chart API client with retries on 429 and 5xx.
func NewYahooClient(opts YahooOptions) *YahooClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultYahooURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(defaultRetryWait).
		SetRetryMaxWaitTime(defaultRetryMaxCap).
		AddRetryCondition(isRetryableResp).
		SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &YahooClient{
		http:   client,
		logger: opts.Logger.With(slog.String("component", "yahoo_prices")),
	}
}

// FetchDailyPrices implements Provider.
func (c *YahooClient) FetchDailyPrices(ctx context.Context, ticker string, start, end time.Time, adjust bool) (*domain.PriceSeries, error) {
	if start.After(end) {
		return nil, fmt.Errorf("invalid price range %s..%s", start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}

	// period2 is exclusive upstream
	period1 := start.Unix()
	period2 := end.AddDate(0, 0, 1).Unix()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"period1":              strconv.FormatInt(period1, 10),
			"period2":              strconv.FormatInt(period2, 10),
			"interval":             "1d",
			"events":               "div|split",
			"includeAdjustedClose": "true",
		}).
		Get(chartPath)
	if err != nil {
		return nil, fmt.Errorf("fetch chart for %s: %w", ticker, err)
	}

	var payload chartResponse
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &payload); err != nil && resp.IsSuccess() {
			return nil, fmt.Errorf("decode chart for %s: %w", ticker, err)
		}
	}

	if payload.Chart.Error != nil {
		if resp.StatusCode() == http.StatusNotFound || payload.Chart.Error.Code == "Not Found" {
			c.logger.InfoContext(ctx, "no price data",
				slog.String("ticker", ticker),
				slog.String("reason", payload.Chart.Error.Description))
			return emptySeries(ticker, adjust), nil
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrProvider, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d for %s", ErrProvider, resp.StatusCode(), ticker)
	}
	if len(payload.Chart.Result) == 0 {
		return emptySeries(ticker, adjust), nil
	}

	series := ingest(ticker, payload.Chart.Result[0], adjust)

	c.logger.DebugContext(ctx, "price series fetched",
		slog.String("ticker", ticker),
		slog.Int("rows", len(series.Rows)),
		slog.Bool("adjusted", adjust))

	return series, nil
}

func emptySeries(ticker string, adjust bool) *domain.PriceSeries {
	return &domain.PriceSeries{
		Ticker:   ticker,
		Adjusted: adjust,
		Columns:  domain.DefaultPriceColumns(ticker, adjust),
	}
}

// exchangeLocation resolves the exchange's timezone from the chart metadata.
func exchangeLocation(r chartResult) *time.Location {
	if r.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", r.Meta.GMTOffset)
}

// ingest converts the columnar chart payload to rows. Rows without a close
// are dropped. With adjust, OHLC are scaled by adjclose/close.
func ingest(ticker string, r chartResult, adjust bool) *domain.PriceSeries {
	series := emptySeries(ticker, adjust)
	if len(r.Indicators.Quote) == 0 {
		return series
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	loc := exchangeLocation(r)

	at := func(vals []*float64, i int) (float64, bool) {
		if i >= len(vals) || vals[i] == nil || math.IsNaN(*vals[i]) {
			return 0, false
		}
		return *vals[i], true
	}

	for i, ts := range r.Timestamps {
		closeVal, ok := at(q.Close, i)
		if !ok {
			continue
		}
		open, _ := at(q.Open, i)
		high, _ := at(q.High, i)
		low, _ := at(q.Low, i)
		vol, _ := at(q.Volume, i)

		t := time.Unix(ts, 0).In(loc)
		y, m, d := t.Date()
		row := domain.PriceSeriesRow{
			Date:   time.Date(y, m, d, 0, 0, 0, 0, loc),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeVal,
			Volume: int64(vol),
		}

		if adjust {
			adjClose, ok := at(adj, i)
			if !ok {
				adjClose = closeVal
			}
			if closeVal != 0 {
				ratio := adjClose / closeVal
				row.Open *= ratio
				row.High *= ratio
				row.Low *= ratio
				row.Close = adjClose
			}
			row.AdjClose = &adjClose
		}

		series.Rows = append(series.Rows, row)
	}
	return series
}
