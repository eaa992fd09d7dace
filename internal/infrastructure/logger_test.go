package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twexport/internal/config"
)

func lastEntry(t *testing.T, content []byte) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastEntry(t, content)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLogger_Once(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestTraceAndExportIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithExportID(ctx, "exp-456")
	logger.InfoContext(ctx, "export started")

	entry := lastEntry(t, buf.Bytes())
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "exp-456", entry["export_id"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level   string
		debugOn bool
		infoOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warning", false, false},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Debug("debug message")
			assert.Equal(t, tt.debugOn, strings.Contains(buf.String(), "debug message"))

			logger.Info("info message")
			assert.Equal(t, tt.infoOn, strings.Contains(buf.String(), "info message"))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetExportID(ctx))

	ctx = EnsureTraceID(ctx)
	traceID := GetTraceID(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)), "existing id is kept")

	ctx, exportID := EnsureExportID(ctx)
	assert.True(t, strings.HasPrefix(exportID, "exp-"))
	_, again := EnsureExportID(ctx)
	assert.Equal(t, exportID, again)
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	WithError(WithComponent(logger, "exporter"), assert.AnError).Info("failed")
	entry := lastEntry(t, buf.Bytes())
	assert.Equal(t, "exporter", entry["component"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])

	assert.Same(t, logger, WithError(logger, nil))
}
