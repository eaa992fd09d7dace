package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"twexport/internal/config"
	apierrors "twexport/internal/errors"
	"twexport/internal/infrastructure"
	"twexport/internal/institutional"
	customMiddleware "twexport/internal/middleware"
	"twexport/internal/prices"
	"twexport/internal/services"
	handlers "twexport/internal/transport/http"
	ws "twexport/internal/websocket"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(config.AppVersion))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application is the web server and everything it owns
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	ExportService *services.ExportService
	HealthService *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	FrontendFS    fs.FS

	prices        prices.Provider
	institutional services.InstitutionalFetcher
}

// Option customises an Application before its services are built
type Option func(*Application)

// WithPriceProvider replaces the Yahoo chart client
func WithPriceProvider(p prices.Provider) Option {
	return func(a *Application) { a.prices = p }
}

// WithInstitutionalFetcher replaces the exchange fetcher
func WithInstitutionalFetcher(f services.InstitutionalFetcher) Option {
	return func(a *Application) { a.institutional = f }
}

// WithFrontend serves fsys at the root path
func WithFrontend(fsys fs.FS) Option {
	return func(a *Application) { a.FrontendFS = fsys }
}

// NewApplication loads configuration and builds the application
func NewApplication(opts ...Option) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger, opts...)
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("build_id", BuildID))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	a.createServer()

	return a, nil
}

func (a *Application) initializeServices() error {
	hubMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, hubMetrics)

	if a.prices == nil {
		a.prices = prices.NewYahooClient(prices.YahooOptions{
			BaseURL:    a.Config.Prices.BaseURL,
			UserAgent:  a.Config.Prices.UserAgent,
			Timeout:    a.Config.Prices.RequestTimeout,
			RetryCount: a.Config.Prices.RetryCount,
			Logger:     a.Logger,
		})
	}
	if a.institutional == nil {
		a.institutional = institutional.NewFetcher(institutional.Options{
			BaseURL:   a.Config.Exchange.BaseURL,
			UserAgent: a.Config.Exchange.UserAgent,
			Timeout:   a.Config.Exchange.RequestTimeout,
			Delay:     a.Config.Exchange.RequestDelay,
			VerifyTLS: !a.Config.Exchange.InsecureSkipVerify,
			Logger:    a.Logger,
			Meter:     a.OTelProviders.Meter,
			Tracer:    a.OTelProviders.Tracer,
		})
	}

	exportMetrics, err := infrastructure.CreateExportMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create export metrics: %w", err)
	}

	a.ExportService = services.NewExportService(services.ExportDeps{
		Prices:        a.prices,
		Institutional: a.institutional,
		Progress:      a.WebSocketHub,
		Metrics:       exportMetrics,
		Config:        a.Config.Export,
		Location:      a.Config.Location(),
		Logger:        a.Logger,
	})
	a.HealthService = services.NewHealthService(config.AppVersion, BuildID, a.WebSocketHub, a.Logger)
	return nil
}

// setupRouter wires middleware and routes. The websocket route sits outside
// the group so no middleware wraps its ResponseWriter.
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))

	r.HandleFunc("/ws", a.handleWebSocket)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(apierrors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			ExposedHeaders: []string{
				"Content-Disposition",
				handlers.HeaderExportID,
				handlers.HeaderExportStatus,
				handlers.HeaderExportWarnings,
				handlers.HeaderExportPartial,
			},
			Logger: a.Logger,
		}))
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.ErrorHandler,
			).Handler)
		}

		a.setupAPIRoutes(r)

		if a.FrontendFS != nil {
			r.Handle("/*", http.FileServer(http.FS(a.FrontendFS)))
		}
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
	return nil
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		exportHandler := handlers.NewExportHandler(a.ExportService, a.WebSocketHub, a.Logger, a.ErrorHandler)
		r.With(
			customMiddleware.Timeout(a.Config.Server.ExportTimeout),
			customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"),
			customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, customMiddleware.DefaultMaxBodySize).ValidateRequest,
		).Mount("/v1/exports", exportHandler.Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

func (a *Application) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range a.Config.Security.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades /ws and registers the client with the hub
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	traceID := customMiddleware.GetRequestID(r.Context())
	ctx := infrastructure.WithTraceID(r.Context(), traceID)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if a.originAllowed(origin) {
				return true
			}
			a.Logger.WarnContext(ctx, "websocket origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", a.Config.Security.AllowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			apiErr := apierrors.ErrWebSocketUpgrade.WithCause(reason)
			apiErr.StatusCode = status
			a.ErrorHandler.HandleError(w, r, apiErr)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.DebugContext(ctx, "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := ws.ServeWS(a.WebSocketHub, conn, traceID, a.Logger)
	a.Logger.InfoContext(ctx, "websocket connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))
}

// Start starts the hub and the HTTP server. A listen failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "server started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
