package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmiddleware "ceapulse/internal/middleware"

	"log/slog"
)

func TestAppError(t *testing.T) {
	t.Run("message includes chained cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := NewStorageError("failed to upsert directory batch", cause)

		assert.Contains(t, err.Error(), "STORAGE")
		assert.Contains(t, err.Error(), "failed to upsert directory batch")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("auth distinct from config", func(t *testing.T) {
		authErr := NewAuthError("invalid sync key")
		cfgErr := NewConfigError("missing store credentials", nil)

		assert.True(t, IsType(authErr, ErrTypeAuth))
		assert.False(t, IsType(authErr, ErrTypeConfig))
		assert.True(t, IsType(cfgErr, ErrTypeConfig))
	})

	t.Run("IsType unwraps", func(t *testing.T) {
		wrapped := fmt.Errorf("sync run failed: %w", NewNetworkError("page fetch", nil))
		assert.True(t, IsType(wrapped, ErrTypeNetwork))
		assert.False(t, IsType(fmt.Errorf("plain"), ErrTypeNetwork))
	})
}

func TestErrorHandler(t *testing.T) {
	handler := NewErrorHandler(slog.Default(), false)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "auth error maps to 401",
			err:        NewAuthError("invalid sync key"),
			wantStatus: http.StatusUnauthorized,
			wantType:   TypeUnauthorized,
		},
		{
			name:       "config error maps to 500",
			err:        NewConfigError("missing store credentials", nil),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeConfigMissing,
		},
		{
			name:       "network error maps to 502",
			err:        NewNetworkError("registry page fetch failed", fmt.Errorf("status 503")),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstreamFetch,
		},
		{
			name:       "storage error maps to 500",
			err:        NewStorageError("batch upsert failed", fmt.Errorf("timeout")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeStoreFailure,
		},
		{
			name:       "api error keeps its status",
			err:        ErrSyncInProgress,
			wantStatus: http.StatusConflict,
			wantType:   TypeSyncInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sync/movements", nil)
			problem := handler.ErrorToProblem(tt.err, req)

			require.NotNil(t, problem)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
		})
	}
}

func TestHandleErrorWritesProblemMediaType(t *testing.T) {
	handler := NewErrorHandler(slog.Default(), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data/overview", nil)
	handler.HandleError(rec, req, NewNotFoundError("salesperson not found: R404"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeDataNotFound, body["type"])
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func TestHandleErrorCarriesRequestID(t *testing.T) {
	handler := NewErrorHandler(slog.Default(), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data/overview", nil)
	ctx := context.WithValue(req.Context(), appmiddleware.RequestIDKey, "req-42")
	handler.HandleError(rec, req.WithContext(ctx), NewStorageError("store down", fmt.Errorf("boom")))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body["trace_id"])
}

func TestNotFoundCarriesRequestID(t *testing.T) {
	handler := NewErrorHandler(slog.Default(), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	ctx := context.WithValue(req.Context(), appmiddleware.RequestIDKey, "req-7")
	handler.NotFound(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-7", body["trace_id"])
}
