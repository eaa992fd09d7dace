package http

import (
	"context"

	"twexport/internal/services"
	"twexport/internal/websocket"
	"twexport/pkg/contracts/domain"
)

// ExportServiceInterface is the part of services.ExportService the handlers use
type ExportServiceInterface interface {
	Validate(req domain.ExportRequest) ([]string, error)
	Export(ctx context.Context, req domain.ExportRequest) (*services.ExportResult, error)
	Prepare(ctx context.Context, req domain.ExportRequest) (*services.ExportResult, error)
	PreviewRows() int
}

// StatusNotifier announces finished exports to progress subscribers
type StatusNotifier interface {
	BroadcastStatus(ctx context.Context, status websocket.ExportStatus)
}
