package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"twexport/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "stdout"

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *OTelConfig
		wantErr bool
	}{
		{name: "exporters disabled", cfg: &OTelConfig{ServiceName: "t", TraceExporter: "none", MetricExporter: "none"}},
		{name: "unknown trace exporter", cfg: &OTelConfig{TraceExporter: "zipkin", MetricExporter: "none"}, wantErr: true},
		{name: "unknown metric exporter", cfg: &OTelConfig{TraceExporter: "none", MetricExporter: "statsd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, providers.TracerProvider)
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		SampleRatio:    0.5,
		Environment:    "test",
	})
	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, config.AppVersion, cfg.ServiceVersion)
	assert.Equal(t, 0.5, cfg.SampleRatio)
	assert.Equal(t, "test", cfg.Environment)
}

func TestTraceCorrelation(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "stdout"
	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx, span := otel.Tracer("test").Start(context.Background(), "export")
	defer span.End()
	assert.Len(t, TraceIDFromContext(ctx), 32)
}

func TestExportMetrics(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateExportMetrics(providers.Meter)
	require.NoError(t, err)

	metrics.RecordExport(context.Background(), "success", 1500*time.Millisecond, 42, 1)

	var nilMetrics *ExportMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordExport(context.Background(), "success", time.Second, 1, 0)
	})

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "exports_total")
}
