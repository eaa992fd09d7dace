package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"twexport/internal/config"
	"twexport/internal/exporter"
	"twexport/internal/institutional"
	"twexport/pkg/contracts/domain"
)

type stubPrices struct {
	rows  int
	err   error
	calls int
}

func (s *stubPrices) FetchDailyPrices(_ context.Context, ticker string, start, _ time.Time, adjust bool) (*domain.PriceSeries, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	series := &domain.PriceSeries{Ticker: ticker, Adjusted: adjust, Columns: domain.DefaultPriceColumns(ticker, adjust)}
	for i := 0; i < s.rows; i++ {
		row := domain.PriceSeriesRow{Date: start.AddDate(0, 0, i), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10}
		if adjust {
			adj := row.Close
			row.AdjClose = &adj
		}
		series.Rows = append(series.Rows, row)
	}
	return series, nil
}

type stubFetcher struct {
	calls int
}

func (s *stubFetcher) FetchWithProgress(context.Context, string, time.Time, time.Time, institutional.ProgressReporter) (*institutional.Result, error) {
	s.calls++
	return &institutional.Result{Table: &domain.InstitutionalTable{SecurityID: "2330"}}, nil
}

func newRunner(p *stubPrices, f *stubFetcher) (*runner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &runner{
		cfg:     config.Default(),
		prices:  p,
		fetcher: f,
		stdout:  out,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, out
}

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		prices       *stubPrices
		wantCode     int
		wantFile     string
		wantFetches  int
		wantInstCall int
	}{
		{
			name:        "xlsx export",
			args:        []string{"-id", "2330", "-from", "2024-09-12", "-to", "2024-09-13", "-adjusted"},
			prices:      &stubPrices{rows: 2},
			wantCode:    exitOK,
			wantFile:    "2330_2024-09-12_2024-09-13.xlsx",
			wantFetches: 1,
		},
		{
			name:         "csv export with institutional",
			args:         []string{"-id", "6488", "-market", "otc", "-from", "2024-09-12", "-to", "2024-09-13", "-institutional", "-format", "csv"},
			prices:       &stubPrices{rows: 2},
			wantCode:     exitOK,
			wantFile:     "6488_2024-09-12_2024-09-13.csv",
			wantFetches:  1,
			wantInstCall: 1,
		},
		{
			name:     "institutional before floor",
			args:     []string{"-id", "2330", "-from", "2010-01-01", "-to", "2010-01-05", "-institutional"},
			prices:   &stubPrices{rows: 2},
			wantCode: exitInvalid,
		},
		{
			name:     "unknown format",
			args:     []string{"-id", "2330", "-format", "pdf"},
			prices:   &stubPrices{rows: 2},
			wantCode: exitInvalid,
		},
		{
			name:        "no price data after widening",
			args:        []string{"-id", "2330", "-from", "2024-09-01", "-to", "2024-09-02"},
			prices:      &stubPrices{},
			wantCode:    exitNoData,
			wantFetches: 2,
		},
		{
			name:        "provider failure",
			args:        []string{"-id", "2330", "-from", "2024-09-12", "-to", "2024-09-13"},
			prices:      &stubPrices{err: errors.New("connection reset")},
			wantCode:    exitFailure,
			wantFetches: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fetcher := &stubFetcher{}
			r, out := newRunner(tt.prices, fetcher)

			code := r.run(context.Background(), append(tt.args, "-out", dir))

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantFetches, tt.prices.calls)
			assert.Equal(t, tt.wantInstCall, fetcher.calls)

			if tt.wantFile == "" {
				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Empty(t, entries)
				return
			}

			path := filepath.Join(dir, tt.wantFile)
			assert.FileExists(t, path)
			assert.True(t, strings.HasPrefix(out.String(), path))
		})
	}
}

func TestRunWritesReadableWorkbook(t *testing.T) {
	dir := t.TempDir()
	r, _ := newRunner(&stubPrices{rows: 2}, &stubFetcher{})

	code := r.run(context.Background(), []string{"-id", "2330", "-from", "2024-09-12", "-to", "2024-09-13", "-out", dir})
	require.Equal(t, exitOK, code)

	wb, err := excelize.OpenFile(filepath.Join(dir, "2330_2024-09-12_2024-09-13.xlsx"))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(exporter.SheetCombined)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.NotContains(t, rows[0], "Adj Close")
}

func TestParseFlagsDefaults(t *testing.T) {
	loc := config.LoadLocation("Asia/Taipei")
	opts, err := parseFlags([]string{"-id", "2330"}, loc, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "listed", opts.market)
	assert.Equal(t, "xlsx", opts.format)
	assert.False(t, opts.adjusted)
	assert.False(t, opts.institutional)

	from, err := time.ParseInLocation(domain.DateLayout, opts.from, loc)
	require.NoError(t, err)
	to, err := time.ParseInLocation(domain.DateLayout, opts.to, loc)
	require.NoError(t, err)
	assert.Equal(t, 30, int(to.Sub(from).Hours()/24))

	_, err = parseFlags([]string{"-id", "2330", "extra"}, loc, io.Discard)
	assert.Error(t, err)
}
