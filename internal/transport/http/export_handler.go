package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "twexport/internal/errors"
	"twexport/internal/exporter"
	"twexport/internal/services"
	"twexport/internal/websocket"
	"twexport/pkg/contracts/domain"
)

const (
	HeaderExportID       = "X-Export-ID"
	HeaderExportStatus   = "X-Export-Status"
	HeaderExportWarnings = "X-Export-Warnings"
	HeaderExportPartial  = "X-Export-Partial"

	csvContentType = "text/csv; charset=utf-8"
)

// ExportHandler serves workbook downloads and previews
type ExportHandler struct {
	service      ExportServiceInterface
	notifier     StatusNotifier
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// PreviewResponse is the body of POST /preview
type PreviewResponse struct {
	ExportID          string               `json:"export_id"`
	Status            string               `json:"status"`
	Messages          []string             `json:"messages"`
	Warnings          []string             `json:"warnings"`
	Columns           []string             `json:"columns"`
	Rows              []domain.CombinedRow `json:"rows"`
	RowCount          int                  `json:"row_count"`
	InstitutionalDays int                  `json:"institutional_days"`
	Partial           bool                 `json:"partial"`
	Widened           bool                 `json:"widened"`
}

// ValidateResponse is the body of POST /validate
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
}

// NewExportHandler creates an export handler. notifier may be nil.
func NewExportHandler(service ExportServiceInterface, notifier StatusNotifier, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Export)
	r.Post("/preview", h.Preview)
	r.Post("/validate", h.Validate)

	return r
}

func (h *ExportHandler) decode(w http.ResponseWriter, r *http.Request) (domain.ExportRequest, bool) {
	var req domain.ExportRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return req, false
	}
	return req, true
}

// Export handles POST /api/v1/exports
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", "format must be xlsx or csv"))
		return
	}

	h.logger.InfoContext(r.Context(), "export requested",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("security_id", req.SecurityID),
		slog.String("market", string(req.Market)),
		slog.String("start_date", req.StartDate),
		slog.String("end_date", req.EndDate),
		slog.Bool("institutional", req.IncludeInstitutional),
		slog.String("format", format))

	var (
		res  *services.ExportResult
		body []byte
		err  error
	)
	if format == "csv" {
		res, err = h.service.Prepare(r.Context(), req)
		if err == nil {
			var buf bytes.Buffer
			if err = exporter.WriteCombinedTo(&buf, res.Combined); err != nil {
				err = apierrors.ErrExportFailed.WithCause(fmt.Errorf("%w: %v", services.ErrExportFailed, err))
			}
			body = buf.Bytes()
		}
	} else {
		res, err = h.service.Export(r.Context(), req)
		if err == nil {
			body = res.Workbook
		}
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.notify(r, res)

	contentType := domain.XLSXContentType
	filename := res.Filename
	if format == "csv" {
		contentType = csvContentType
		filename = req.Filename("csv")
	}

	setExportHeaders(w, res)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export body", slog.String("error", err.Error()))
	}
}

// Preview handles POST /api/v1/exports/preview
func (h *ExportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.service.Prepare(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.notify(r, res)

	setExportHeaders(w, res)
	render.JSON(w, r, PreviewResponse{
		ExportID:          res.ExportID,
		Status:            res.Status,
		Messages:          nonNil(res.Messages),
		Warnings:          nonNil(res.Warnings),
		Columns:           res.Combined.Columns,
		Rows:              res.Preview(h.service.PreviewRows()),
		RowCount:          res.Combined.Len(),
		InstitutionalDays: len(res.Days),
		Partial:           res.Partial,
		Widened:           res.Widened,
	})
}

// Validate handles POST /api/v1/exports/validate
func (h *ExportHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	warnings, err := h.service.Validate(req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, ValidateResponse{Valid: true, Warnings: nonNil(warnings)})
}

func (h *ExportHandler) notify(r *http.Request, res *services.ExportResult) {
	if h.notifier == nil {
		return
	}
	h.notifier.BroadcastStatus(r.Context(), websocket.ExportStatus{
		ExportID: res.ExportID,
		Status:   res.Status,
		Message:  strings.Join(res.Messages, " "),
		Warnings: res.Warnings,
	})
}

func setExportHeaders(w http.ResponseWriter, res *services.ExportResult) {
	w.Header().Set(HeaderExportID, res.ExportID)
	w.Header().Set(HeaderExportStatus, res.Status)
	w.Header().Set(HeaderExportPartial, strconv.FormatBool(res.Partial))
	if len(res.Warnings) > 0 {
		w.Header().Set(HeaderExportWarnings, strings.Join(res.Warnings, "; "))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
