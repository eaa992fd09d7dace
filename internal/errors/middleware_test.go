package errors

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMiddleware_LogsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success", status: http.StatusOK, wantLevel: "INFO"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "WARN"},
		{name: "server error", status: http.StatusBadGateway, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := testLogger(&buf)
			mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

			h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, buf.String(), `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, buf.String(), `"path":"/api/health"`)
		})
	}
}

func TestErrorMiddleware_RedactsBodyOnError(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)
	mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	body := `{"security_id":"2330","token":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exports", strings.NewReader(body))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "2330")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "abc")
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	logger := testLogger(nil)
	mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := NewErrorHandler(testLogger(nil), false)
	h := RecoveryMiddleware(handler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, TypeInternal, decodeProblem(t, rec)["type"])
}

func TestSanitizeRequestBody(t *testing.T) {
	assert.Equal(t, "not json", sanitizeRequestBody("not json"))
	assert.Contains(t, sanitizeRequestBody(`{"password":"p"}`), "[REDACTED]")
}
