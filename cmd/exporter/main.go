// Command exporter runs one export from the command line and writes the
// workbook (or a CSV of the combined table) to disk.
//
//	exporter -id 2330 -market listed -from 2024-09-12 -to 2024-09-13 -adjusted -institutional
//
// Exit codes: 0 success, 1 invalid arguments, 2 no price data, 3 any other failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"twexport/internal/config"
	"twexport/internal/exporter"
	"twexport/internal/infrastructure"
	"twexport/internal/institutional"
	"twexport/internal/prices"
	"twexport/internal/services"
	"twexport/pkg/contracts/domain"
)

const (
	exitOK = iota
	exitInvalid
	exitNoData
	exitFailure
)

type options struct {
	id            string
	market        string
	from          string
	to            string
	adjusted      bool
	institutional bool
	out           string
	format        string
}

// runner holds the collaborators main wires from configuration. Tests
// replace them with stubs.
type runner struct {
	cfg     *config.Config
	prices  prices.Provider
	fetcher services.InstitutionalFetcher
	stdout  io.Writer
	logger  *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", slog.String("error", err.Error()))
		cfg = config.Default()
	}
	logger := infrastructure.NewLogger(os.Stderr, cfg.Logging.Level)

	r := &runner{
		cfg: cfg,
		prices: prices.NewYahooClient(prices.YahooOptions{
			BaseURL:    cfg.Prices.BaseURL,
			UserAgent:  cfg.Prices.UserAgent,
			Timeout:    cfg.Prices.RequestTimeout,
			RetryCount: cfg.Prices.RetryCount,
			Logger:     logger,
		}),
		fetcher: institutional.NewFetcher(institutional.Options{
			BaseURL:   cfg.Exchange.BaseURL,
			UserAgent: cfg.Exchange.UserAgent,
			Timeout:   cfg.Exchange.RequestTimeout,
			Delay:     cfg.Exchange.RequestDelay,
			VerifyTLS: !cfg.Exchange.InsecureSkipVerify,
			Logger:    logger,
		}),
		stdout: os.Stdout,
		logger: logger,
	}
	os.Exit(r.run(ctx, os.Args[1:]))
}

func parseFlags(args []string, loc *time.Location, stderr io.Writer) (options, error) {
	today := time.Now().In(loc)
	opts := options{}

	fs := flag.NewFlagSet("exporter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.id, "id", "", "security identifier, e.g. 2330")
	fs.StringVar(&opts.market, "market", string(domain.MarketListed), "listed | otc")
	fs.StringVar(&opts.from, "from", today.AddDate(0, 0, -30).Format(domain.DateLayout), "start date (YYYY-MM-DD)")
	fs.StringVar(&opts.to, "to", today.Format(domain.DateLayout), "end date (YYYY-MM-DD, inclusive)")
	fs.BoolVar(&opts.adjusted, "adjusted", false, "include adjusted close prices")
	fs.BoolVar(&opts.institutional, "institutional", false, "merge institutional trading data")
	fs.StringVar(&opts.out, "out", "", "output directory (defaults to data/exports)")
	fs.StringVar(&opts.format, "format", "xlsx", "xlsx | csv")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.format != "xlsx" && opts.format != "csv" {
		return opts, fmt.Errorf("unsupported format %q", opts.format)
	}
	return opts, nil
}

func (r *runner) run(ctx context.Context, args []string) int {
	loc := r.cfg.Location()
	opts, err := parseFlags(args, loc, r.stdout)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			r.logger.Error("invalid arguments", slog.String("error", err.Error()))
		}
		return exitInvalid
	}

	req := domain.ExportRequest{
		SecurityID:           opts.id,
		Market:               domain.Market(opts.market),
		AdjustPrices:         opts.adjusted,
		IncludeInstitutional: opts.institutional,
		StartDate:            opts.from,
		EndDate:              opts.to,
	}

	svc := services.NewExportService(services.ExportDeps{
		Prices:        r.prices,
		Institutional: r.fetcher,
		Progress:      institutional.ProgressFunc(r.logProgress),
		Config:        r.cfg.Export,
		Location:      loc,
		Logger:        r.logger,
	})

	var res *services.ExportResult
	if opts.format == "csv" {
		res, err = svc.Prepare(ctx, req)
	} else {
		res, err = svc.Export(ctx, req)
	}
	if err != nil {
		return r.fail(err)
	}

	target, err := r.target(opts, req, res)
	if err != nil {
		return r.fail(err)
	}

	if opts.format == "csv" {
		if target, err = exporter.NewCSVWriter(nil).WriteCombined(target, res.Combined); err != nil {
			return r.fail(err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return r.fail(err)
		}
		if err := os.WriteFile(target, res.Workbook, 0o644); err != nil {
			return r.fail(err)
		}
	}

	for _, w := range res.Warnings {
		r.logger.Warn(w, slog.String("export_id", res.ExportID))
	}
	fmt.Fprintf(r.stdout, "%s\t%s\t%d rows\n", target, res.Status, res.Combined.Len())
	return exitOK
}

func (r *runner) target(opts options, req domain.ExportRequest, res *services.ExportResult) (string, error) {
	name := res.Filename
	if opts.format == "csv" {
		name = req.Filename("csv")
	}
	dir := opts.out
	if dir == "" {
		paths, err := r.cfg.ResolvePaths()
		if err != nil {
			return "", err
		}
		dir = paths.ExportsDir
	}
	return filepath.Abs(filepath.Join(dir, name))
}

func (r *runner) logProgress(ctx context.Context, p domain.FetchProgress) {
	r.logger.InfoContext(ctx, "institutional day",
		slog.String("date", p.Date),
		slog.Int("index", p.Index),
		slog.Int("total", p.Total),
		slog.String("status", string(p.Status)),
		slog.Int("rows", p.Rows))
}

func (r *runner) fail(err error) int {
	r.logger.Error("export failed", slog.String("error", err.Error()))
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return exitInvalid
	case errors.Is(err, services.ErrNoPriceData):
		return exitNoData
	default:
		return exitFailure
	}
}
