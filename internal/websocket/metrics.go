package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "twexport.websocket"

// Metrics holds the OpenTelemetry instruments of the progress hub.
// A nil *Metrics records nothing.
type Metrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	messagesDropped    metric.Int64Counter
}

// NewMetrics creates the hub instruments on meter, or on the global
// meter provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	connectionsTotal, err := meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"))
	if err != nil {
		return nil, err
	}
	connectionsActive, err := meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"))
	if err != nil {
		return nil, err
	}
	connectionDuration, err := meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	messagesSent, err := meter.Int64Counter("websocket_messages_sent_total",
		metric.WithDescription("Messages delivered to client send buffers"))
	if err != nil {
		return nil, err
	}
	messagesDropped, err := meter.Int64Counter("websocket_messages_dropped_total",
		metric.WithDescription("Messages dropped because the broadcast queue was full"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		connectionsTotal:   connectionsTotal,
		connectionsActive:  connectionsActive,
		connectionDuration: connectionDuration,
		messagesSent:       messagesSent,
		messagesDropped:    messagesDropped,
	}, nil
}

func (m *Metrics) recordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *Metrics) recordDisconnect(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) recordSent(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.messagesSent.Add(ctx, int64(n))
}

func (m *Metrics) recordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesDropped.Add(ctx, 1)
}
