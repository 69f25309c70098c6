package errors

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := New(http.StatusNotFound, "VIDEO_NOT_FOUND", "Video not found")

	assert.Equal(t, "Video not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "VIDEO_NOT_FOUND", err.ErrorCode)
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("top", "must be a positive integer")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	detail, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "top", detail.Field)
}

func TestErrorToProblem(t *testing.T) {
	handler := NewErrorHandler(slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/watch-rate", nil)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   string
	}{
		{"api error", ErrVideoNotFound, http.StatusNotFound, TypeNotFound},
		{"integrity error", IntegrityError(fmt.Errorf("bad metadata")), http.StatusUnprocessableEntity, TypeDataCorrupt},
		{"wrapped api error", fmt.Errorf("wrap: %w", ErrValidationFailed), http.StatusBadRequest, TypeValidation},
		{"context deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := handler.ErrorToProblem(tt.err, req)
			assert.Equal(t, tt.expectedStatus, problem.Status)
			assert.Equal(t, tt.expectedType, problem.Type)
			assert.Equal(t, req.URL.Path, problem.Instance)
		})
	}
}

func TestHandleErrorWritesProblemJSON(t *testing.T) {
	handler := NewErrorHandler(slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary", nil)
	rec := httptest.NewRecorder()

	handler.HandleError(rec, req, ErrNoEventData)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	assert.Contains(t, rec.Body.String(), "NO_EVENT_DATA")
}
