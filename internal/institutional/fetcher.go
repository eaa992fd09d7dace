package institutional

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"twexport/internal/config"
	"twexport/pkg/contracts/domain"
)

// ReportPath is the daily institutional trading CSV export.
const ReportPath = "/rwd/zh/fund/T86"

const (
	defaultBaseURL = "https://www.twse.com.tw"
	defaultDelay   = time.Second
	defaultTimeout = 20 * time.Second
	queryDateFmt   = "20060102"
)

// ProgressReporter receives one event per weekday of a fetch.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, p domain.FetchProgress)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(ctx context.Context, p domain.FetchProgress)

// ReportProgress calls f.
func (f ProgressFunc) ReportProgress(ctx context.Context, p domain.FetchProgress) {
	f(ctx, p)
}

// Options configures a Fetcher.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Delay spaces consecutive requests. Zero means one second; a negative
	// value disables throttling.
	Delay time.Duration

	// VerifyTLS turns certificate verification on. The exchange host's
	// chain omits an intermediate, so the zero value skips verification.
	VerifyTLS bool

	Logger *slog.Logger
	Meter  metric.Meter
	Tracer trace.Tracer
}

// DayOutcome is the result of one weekday's request.
type DayOutcome struct {
	Date    time.Time        `json:"date"`
	Status  domain.DayStatus `json:"status"`
	Records int              `json:"records"`
	Err     error            `json:"-"`
}

// Result is the outcome of a Fetch. When Partial is set the context ended
// before every day was requested; Table holds what was collected and Err
// holds the context error.
type Result struct {
	Table   *domain.InstitutionalTable
	Days    []DayOutcome
	Partial bool
	Err     error
}

// Requested returns the number of days a request was sent for.
func (r *Result) Requested() int {
	n := 0
	for _, d := range r.Days {
		if d.Status != domain.DayCancelled {
			n++
		}
	}
	return n
}

// Count returns how many days ended with status.
func (r *Result) Count(status domain.DayStatus) int {
	n := 0
	for _, d := range r.Days {
		if d.Status == status {
			n++
		}
	}
	return n
}

// Fetcher downloads daily institutional reports.
type Fetcher struct {
	client   *resty.Client
	schema   *Schema
	throttle *Throttle
	logger   *slog.Logger
	metrics  *fetchMetrics
	tracer   trace.Tracer
}

// NewFetcher creates a Fetcher. Zero options take package defaults: the
// TWSE host, a browser User-Agent, no TLS verification and a one second
// pause between requests.
func NewFetcher(opts Options) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Delay == 0 {
		opts.Delay = defaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/csv,text/plain,*/*").
		SetHeader("User-Agent", opts.UserAgent)
	if !opts.VerifyTLS {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // exchange chain is incomplete
	}

	return &Fetcher{
		client:   client,
		schema:   DefaultSchema(),
		throttle: NewThrottle(opts.Delay),
		logger:   opts.Logger.With(slog.String("component", "institutional_fetcher")),
		metrics:  newFetchMetrics(opts.Meter),
		tracer:   opts.Tracer,
	}
}

// Fetch collects the institutional records of securityID for every weekday
// in [start, end].
func (f *Fetcher) Fetch(ctx context.Context, securityID string, start, end time.Time) (*Result, error) {
	return f.FetchWithProgress(ctx, securityID, start, end, nil)
}

// FetchWithProgress is Fetch with a per-day progress callback.
func (f *Fetcher) FetchWithProgress(ctx context.Context, securityID string, start, end time.Time, progress ProgressReporter) (*Result, error) {
	start, end = truncateDay(start), truncateDay(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	if beforeFloor(start) {
		return nil, ErrBeforeDataFloor
	}

	days := Weekdays(start, end)

	ctx, span := f.tracer.Start(ctx, "institutional.Fetch",
		trace.WithAttributes(
			attribute.String("security_id", securityID),
			attribute.String("start", start.Format(domain.DateLayout)),
			attribute.String("end", end.Format(domain.DateLayout)),
			attribute.Int("weekdays", len(days)),
		))
	defer span.End()

	f.logger.InfoContext(ctx, "fetching institutional data",
		slog.String("security_id", securityID),
		slog.String("start", start.Format(domain.DateLayout)),
		slog.String("end", end.Format(domain.DateLayout)),
		slog.Int("weekdays", len(days)))

	acc := newAccumulator(securityID)
	result := &Result{Days: make([]DayOutcome, 0, len(days))}

	for i, day := range days {
		var outcome DayOutcome
		if err := f.throttle.Wait(ctx); err != nil {
			outcome = DayOutcome{Date: day, Status: domain.DayCancelled, Err: err}
		} else {
			outcome = f.fetchDay(ctx, securityID, day, acc)
			f.throttle.Done()
		}

		if outcome.Status == domain.DayCancelled {
			result.Partial = true
			result.Err = ctx.Err()
			if result.Err == nil {
				result.Err = outcome.Err
			}
			for _, rest := range days[i:] {
				result.Days = append(result.Days, DayOutcome{Date: rest, Status: domain.DayCancelled})
			}
			break
		}

		result.Days = append(result.Days, outcome)
		f.metrics.record(ctx, outcome.Status)
		span.AddEvent("day", trace.WithAttributes(
			attribute.String("date", day.Format(domain.DateLayout)),
			attribute.String("status", string(outcome.Status)),
		))
		if progress != nil {
			progress.ReportProgress(ctx, domain.FetchProgress{
				SecurityID: securityID,
				Date:       day.Format(domain.DateLayout),
				Index:      i + 1,
				Total:      len(days),
				Status:     outcome.Status,
				Rows:       outcome.Records,
				Timestamp:  time.Now(),
			})
		}
	}

	result.Table = acc.table()

	span.SetAttributes(
		attribute.Int("records", result.Table.Len()),
		attribute.Bool("partial", result.Partial),
	)
	if result.Partial {
		span.SetStatus(codes.Error, "fetch cancelled")
		f.logger.WarnContext(ctx, "institutional fetch cancelled",
			slog.String("security_id", securityID),
			slog.Int("records", result.Table.Len()),
			slog.Int("requested", result.Requested()),
			slog.Int("weekdays", len(days)))
	} else {
		f.logger.InfoContext(ctx, "institutional fetch complete",
			slog.String("security_id", securityID),
			slog.Int("records", result.Table.Len()),
			slog.Int("days_with_data", result.Count(domain.DayFetched)),
			slog.Int("days_failed", result.Count(domain.DayTransportError)))
	}

	return result, nil
}

// fetchDay requests and parses one day's report.
func (f *Fetcher) fetchDay(ctx context.Context, securityID string, day time.Time, acc *accumulator) DayOutcome {
	out := DayOutcome{Date: day}
	dateStr := day.Format(domain.DateLayout)

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"date":       day.Format(queryDateFmt),
			"selectType": "ALL",
			"response":   "csv",
		}).
		Get(ReportPath)
	if err != nil {
		if ctx.Err() != nil {
			out.Status, out.Err = domain.DayCancelled, err
			return out
		}
		out.Status, out.Err = domain.DayTransportError, err
		f.logger.WarnContext(ctx, "institutional request failed",
			slog.String("date", dateStr),
			slog.String("error", err.Error()))
		return out
	}

	if !resp.IsSuccess() {
		out.Status = domain.DayTransportError
		out.Err = fmt.Errorf("unexpected status %d", resp.StatusCode())
		f.logger.WarnContext(ctx, "institutional request rejected",
			slog.String("date", dateStr),
			slog.Int("status", resp.StatusCode()))
		return out
	}

	body := resp.Body()
	if len(body) == 0 {
		out.Status = domain.DayNoData
		f.logger.DebugContext(ctx, "empty institutional report", slog.String("date", dateStr))
		return out
	}

	sheet, err := ParseSheet(body)
	if err != nil {
		out.Status, out.Err = domain.DayNoData, err
		f.logger.DebugContext(ctx, "no institutional table",
			slog.String("date", dateStr),
			slog.String("reason", err.Error()))
		return out
	}

	records, columns, err := sheet.Records(f.schema, securityID, day)
	if err != nil {
		out.Status, out.Err = domain.DayNoData, err
		f.logger.InfoContext(ctx, "unusable institutional report",
			slog.String("date", dateStr),
			slog.String("error", err.Error()))
		return out
	}
	if len(records) == 0 {
		out.Status = domain.DayNotListed
		f.logger.DebugContext(ctx, "security absent from report", slog.String("date", dateStr))
		return out
	}

	acc.add(columns, records)
	out.Status = domain.DayFetched
	out.Records = len(records)
	return out
}

// accumulator collects records and the union of columns in first-seen order.
type accumulator struct {
	securityID string
	columns    []domain.InstitutionalColumn
	seen       map[string]bool
	records    []domain.DailyInstitutionalRecord
}

func newAccumulator(securityID string) *accumulator {
	return &accumulator{securityID: securityID, seen: make(map[string]bool)}
}

func (a *accumulator) add(columns []domain.InstitutionalColumn, records []domain.DailyInstitutionalRecord) {
	for _, c := range columns {
		key := c.Label
		if c.Field != "" {
			key = string(c.Field)
		}
		if a.seen[key] {
			continue
		}
		a.seen[key] = true
		a.columns = append(a.columns, c)
	}
	a.records = append(a.records, records...)
}

func (a *accumulator) table() *domain.InstitutionalTable {
	return &domain.InstitutionalTable{
		SecurityID: a.securityID,
		Columns:    a.columns,
		Records:    a.records,
	}
}
