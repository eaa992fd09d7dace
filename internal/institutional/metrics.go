package institutional

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"twexport/pkg/contracts/domain"
)

const instrumentationName = "twexport/institutional"

// fetchMetrics counts daily report requests by outcome.
type fetchMetrics struct {
	requested metric.Int64Counter
	withData  metric.Int64Counter
	failed    metric.Int64Counter
}

func newFetchMetrics(meter metric.Meter) *fetchMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m, err := buildFetchMetrics(meter)
	if err != nil {
		m, _ = buildFetchMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	}
	return m
}

func buildFetchMetrics(meter metric.Meter) (*fetchMetrics, error) {
	requested, err := meter.Int64Counter("institutional_days_requested_total",
		metric.WithDescription("Daily institutional reports requested"),
		metric.WithUnit("{day}"))
	if err != nil {
		return nil, err
	}
	withData, err := meter.Int64Counter("institutional_days_with_data_total",
		metric.WithDescription("Daily reports that contained the requested security"),
		metric.WithUnit("{day}"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("institutional_days_failed_total",
		metric.WithDescription("Daily report requests that failed in transport"),
		metric.WithUnit("{day}"))
	if err != nil {
		return nil, err
	}
	return &fetchMetrics{requested: requested, withData: withData, failed: failed}, nil
}

func (m *fetchMetrics) record(ctx context.Context, status domain.DayStatus) {
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	if status == domain.DayCancelled {
		return
	}
	m.requested.Add(ctx, 1, attrs)
	switch status {
	case domain.DayFetched:
		m.withData.Add(ctx, 1)
	case domain.DayTransportError:
		m.failed.Add(ctx, 1)
	}
}
