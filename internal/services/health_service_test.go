package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeHub struct{ clients int }

func (h fakeHub) ClientCount() int { return h.clients }

func TestHealthService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	tests := []struct {
		name      string
		hub       ClientCounter
		wantReady string
	}{
		{name: "with hub", hub: fakeHub{clients: 2}, wantReady: "ready"},
		{name: "without hub", hub: nil, wantReady: "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService("1.2.3", "build-1", tt.hub, logger)

			assert.Equal(t, "ok", hs.HealthCheck(ctx).Status)
			assert.Equal(t, tt.wantReady, hs.ReadinessCheck(ctx).Status)

			live := hs.LivenessCheck(ctx)
			assert.Equal(t, "alive", live.Status)
			assert.Contains(t, live.Runtime, "goroutines")

			v := hs.Version()
			assert.Equal(t, "1.2.3", v["version"])
			assert.Equal(t, "build-1", v["build_id"])
		})
	}
}
