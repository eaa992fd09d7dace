package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"twexport/internal/config"
	apierrors "twexport/internal/errors"
	"twexport/internal/exporter"
	"twexport/internal/infrastructure"
	"twexport/internal/institutional"
	"twexport/internal/prices"
	"twexport/pkg/contracts/domain"
)

// Export status values
const (
	StatusComplete  = "complete"
	StatusPartial   = "partial"
	StatusPriceOnly = "price_only"
)

// InstitutionalFetcher collects institutional records for a date range
type InstitutionalFetcher interface {
	FetchWithProgress(ctx context.Context, securityID string, start, end time.Time, progress institutional.ProgressReporter) (*institutional.Result, error)
}

// ExportDeps wires an ExportService
type ExportDeps struct {
	Prices        prices.Provider
	Institutional InstitutionalFetcher
	Writer        exporter.WorkbookWriter
	Progress      institutional.ProgressReporter
	Metrics       *infrastructure.ExportMetrics
	Config        config.ExportConfig
	Location      *time.Location
	Logger        *slog.Logger
}

// ExportResult is everything an export produced. Workbook is nil for
// preview runs.
type ExportResult struct {
	ExportID      string                     `json:"export_id"`
	Request       domain.ExportRequest       `json:"request"`
	Status        string                     `json:"status"`
	Messages      []string                   `json:"messages"`
	Warnings      []string                   `json:"warnings"`
	Combined      *domain.CombinedTable      `json:"-"`
	Institutional *domain.InstitutionalTable `json:"-"`
	Days          []institutional.DayOutcome `json:"days,omitempty"`
	Partial       bool                       `json:"partial"`
	Widened       bool                       `json:"widened"`
	Filename      string                     `json:"filename"`
	Workbook      []byte                     `json:"-"`
}

// Preview returns the last n combined rows
func (r *ExportResult) Preview(n int) []domain.CombinedRow {
	return r.Combined.Tail(n)
}

// ExportService runs the price + institutional export
type ExportService struct {
	prices    prices.Provider
	inst      InstitutionalFetcher
	writer    exporter.WorkbookWriter
	progress  institutional.ProgressReporter
	metrics   *infrastructure.ExportMetrics
	validator *RequestValidator
	limits    config.ExportConfig
	loc       *time.Location
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewExportService creates an export service
func NewExportService(deps ExportDeps) *ExportService {
	if deps.Logger == nil {
		deps.Logger = infrastructure.GetLogger()
	}
	if deps.Writer == nil {
		deps.Writer = exporter.NewExcelWriter()
	}
	if deps.Location == nil {
		deps.Location = config.LoadLocation(deps.Config.Timezone)
	}
	if deps.Config.PreviewRows <= 0 {
		deps.Config.PreviewRows = 10
	}

	return &ExportService{
		prices:    deps.Prices,
		inst:      deps.Institutional,
		writer:    deps.Writer,
		progress:  deps.Progress,
		metrics:   deps.Metrics,
		validator: NewRequestValidator(deps.Config, deps.Location),
		limits:    deps.Config,
		loc:       deps.Location,
		logger:    deps.Logger.With(slog.String("component", "export_service")),
		tracer:    otel.Tracer("twexport/services"),
	}
}

// Validate checks req without fetching anything
func (s *ExportService) Validate(req domain.ExportRequest) ([]string, error) {
	return s.validator.Validate(req)
}

// PreviewRows is the configured preview length
func (s *ExportService) PreviewRows() int {
	return s.limits.PreviewRows
}

// Export validates req, fetches both sources, merges them and builds the workbook.
func (s *ExportService) Export(ctx context.Context, req domain.ExportRequest) (*ExportResult, error) {
	started := time.Now()
	res, err := s.prepare(ctx, req)
	if err != nil {
		s.recordOutcome(ctx, err, started, nil)
		return nil, err
	}

	var instSheet *domain.InstitutionalTable
	if !res.Institutional.IsEmpty() {
		instSheet = res.Institutional
	}
	workbook, err := s.writer.Write(res.Combined, instSheet)
	if err != nil {
		err = apierrors.ErrExportFailed.WithCause(fmt.Errorf("%w: %v", ErrExportFailed, err))
		s.recordOutcome(ctx, err, started, nil)
		return nil, err
	}
	res.Workbook = workbook

	s.recordOutcome(ctx, nil, started, res)
	s.logger.InfoContext(ctx, "export complete",
		slog.String("filename", res.Filename),
		slog.String("status", res.Status),
		slog.Int("rows", res.Combined.Len()),
		slog.Int("bytes", len(workbook)),
		slog.Duration("duration", time.Since(started)))
	return res, nil
}

// Prepare runs an export without building the workbook
func (s *ExportService) Prepare(ctx context.Context, req domain.ExportRequest) (*ExportResult, error) {
	started := time.Now()
	res, err := s.prepare(ctx, req)
	s.recordOutcome(ctx, err, started, res)
	return res, err
}

func (s *ExportService) prepare(ctx context.Context, req domain.ExportRequest) (*ExportResult, error) {
	ctx, exportID := infrastructure.EnsureExportID(ctx)

	warnings, err := s.validator.Validate(req)
	if err != nil {
		s.logger.WarnContext(ctx, "export request rejected",
			slog.String("security_id", req.SecurityID),
			slog.String("error", err.Error()))
		return nil, err
	}

	start, end, err := req.Range(s.loc)
	if err != nil {
		return nil, apierrors.ErrValidation("start_date", err.Error()).WithCause(ErrInvalidRequest)
	}
	ticker := prices.Ticker(req.SecurityID, req.Market)

	ctx, span := s.tracer.Start(ctx, "export.Prepare", trace.WithAttributes(
		attribute.String("export_id", exportID),
		attribute.String("ticker", ticker),
		attribute.Bool("institutional", req.IncludeInstitutional),
	))
	defer span.End()

	s.logger.InfoContext(ctx, "export started",
		slog.String("ticker", ticker),
		slog.String("start", req.StartDate),
		slog.String("end", req.EndDate),
		slog.Bool("adjusted", req.AdjustPrices),
		slog.Bool("institutional", req.IncludeInstitutional))

	var (
		series  *domain.PriceSeries
		widened bool
		fetched *institutional.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, widened, err = s.fetchPrices(gctx, ticker, start, end, req.AdjustPrices)
		return err
	})
	if req.IncludeInstitutional && s.inst != nil {
		g.Go(func() error {
			var err error
			fetched, err = s.inst.FetchWithProgress(gctx, req.SecurityID, start, end, s.reporter(exportID))
			if err != nil {
				return fmt.Errorf("fetch institutional data: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, s.classify(ctx, err)
	}

	res := &ExportResult{
		ExportID: exportID,
		Request:  req,
		Status:   StatusComplete,
		Warnings: warnings,
		Widened:  widened,
		Filename: req.Filename("xlsx"),
	}
	res.Messages = append(res.Messages, fmt.Sprintf("Fetched %d daily price rows for %s", len(series.Rows), ticker))
	if widened {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"no prices in the requested range; the end date was widened by %d days", s.limits.WidenDays))
	}

	if fetched != nil {
		res.Institutional = fetched.Table
		res.Days = fetched.Days
		res.Partial = fetched.Partial
		res.Messages = append(res.Messages, fmt.Sprintf(
			"Institutional data found for %d of %d weekdays",
			fetched.Count(domain.DayFetched), len(fetched.Days)))
		if n := fetched.Count(domain.DayTransportError); n > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d exchange requests failed and were skipped", n))
		}
		if fetched.Partial {
			res.Status = StatusPartial
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"institutional fetch stopped early after %d of %d weekdays", fetched.Requested(), len(fetched.Days)))
		}
		if fetched.Table.IsEmpty() {
			res.Warnings = append(res.Warnings, "no institutional data found for the requested range")
		}
	}

	combined, err := exporter.Merge(series, res.Institutional)
	if err != nil {
		s.logger.WarnContext(ctx, "merge failed, exporting price data only", slog.String("error", err.Error()))
		res.Warnings = append(res.Warnings, fmt.Sprintf("institutional data could not be merged (%v); exporting price data only", err))
		res.Status = StatusPriceOnly
		combined, err = exporter.PriceOnly(series)
		if err != nil {
			return nil, apierrors.ErrExportFailed.WithCause(fmt.Errorf("%w: %v", ErrExportFailed, err))
		}
	}
	res.Combined = combined

	span.SetAttributes(
		attribute.Int("rows", combined.Len()),
		attribute.Bool("partial", res.Partial),
		attribute.Bool("widened", widened),
	)
	return res, nil
}

// fetchPrices fetches the series and retries once with a widened end date
// when the first answer is empty.
func (s *ExportService) fetchPrices(ctx context.Context, ticker string, start, end time.Time, adjust bool) (*domain.PriceSeries, bool, error) {
	series, err := s.prices.FetchDailyPrices(ctx, ticker, start, end, adjust)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrPriceFetch, err)
	}
	if !series.IsEmpty() {
		return series, false, nil
	}

	widenedEnd := end.AddDate(0, 0, s.limits.WidenDays)
	if today := s.validator.Today(); widenedEnd.After(today) {
		widenedEnd = today
	}
	if !widenedEnd.After(end) {
		return nil, false, ErrNoPriceData
	}

	s.logger.InfoContext(ctx, "no prices in range, retrying with widened end date",
		slog.String("ticker", ticker),
		slog.String("end", widenedEnd.Format(domain.DateLayout)))

	series, err = s.prices.FetchDailyPrices(ctx, ticker, start, widenedEnd, adjust)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrPriceFetch, err)
	}
	if series.IsEmpty() {
		return nil, false, ErrNoPriceData
	}
	return series, true, nil
}

// reporter tags progress events with the export id before forwarding them
func (s *ExportService) reporter(exportID string) institutional.ProgressReporter {
	return institutional.ProgressFunc(func(ctx context.Context, p domain.FetchProgress) {
		p.ExportID = exportID
		s.logger.DebugContext(ctx, "institutional day done",
			slog.String("date", p.Date),
			slog.String("status", string(p.Status)),
			slog.Int("index", p.Index),
			slog.Int("total", p.Total))
		if s.progress != nil {
			s.progress.ReportProgress(ctx, p)
		}
	})
}

// classify maps fetch errors to API errors
func (s *ExportService) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNoPriceData):
		s.logger.InfoContext(ctx, "no price data found")
		return apierrors.ErrNoPriceData.WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(ctx, "export cancelled", slog.String("error", err.Error()))
		return err
	case errors.Is(err, ErrPriceFetch):
		s.logger.ErrorContext(ctx, "price fetch failed", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.PriceFetchErrors.Add(ctx, 1)
		}
		return apierrors.ErrUpstreamFailed.WithCause(err)
	default:
		s.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
		return apierrors.ErrExportFailed.WithCause(fmt.Errorf("%w: %w", ErrExportFailed, err))
	}
}

func (s *ExportService) recordOutcome(ctx context.Context, err error, started time.Time, res *ExportResult) {
	outcome := "success"
	rows, warnings := 0, 0
	switch {
	case errors.Is(err, ErrInvalidRequest):
		outcome = "invalid"
	case errors.Is(err, ErrNoPriceData):
		outcome = "no_data"
	case err != nil:
		outcome = "error"
	case res != nil && res.Status != StatusComplete:
		outcome = res.Status
	}
	if res != nil {
		rows = res.Combined.Len()
		warnings = len(res.Warnings)
	}
	s.metrics.RecordExport(ctx, outcome, time.Since(started), rows, warnings)
}
