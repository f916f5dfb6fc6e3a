package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeByType(t *testing.T) {
	cases := []struct {
		errType ErrorType
		want    int
	}{
		{ValidationError, http.StatusBadRequest},
		{NotFoundError, http.StatusNotFound},
		{TimeoutError, http.StatusGatewayTimeout},
		{UnavailableError, http.StatusServiceUnavailable},
		{InternalError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		err := New(tc.errType, "CODE", "message")
		assert.Equal(t, tc.want, err.StatusCode, "type %s", tc.errType)
	}
}

func TestErrorStringAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := UnavailableErrorf("STORE_DOWN", "store unreachable").Wrap(cause)

	assert.Equal(t, "STORE_DOWN: store unreachable: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestWithDetail(t *testing.T) {
	err := ValidationErrorf("INVALID_LIMIT", "limit must be a positive integer").
		WithDetail("limit", "abc").
		WithDetail("max", 100)

	assert.Equal(t, "abc", err.Details["limit"])
	assert.Equal(t, 100, err.Details["max"])
}

func TestHandlerWritesAppError(t *testing.T) {
	h := NewHandler(false)
	rec := httptest.NewRecorder()

	h.Handle(rec, ValidationErrorf("INVALID_OFFSET", "offset must be a non-negative integer").
		WithDetail("offset", "-3"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp.Error.Type)
	assert.Equal(t, "INVALID_OFFSET", resp.Error.Code)
	assert.Equal(t, "-3", resp.Error.Details["offset"])
}

func TestHandlerWrapsUnknownErrors(t *testing.T) {
	h := NewHandler(false)
	rec := httptest.NewRecorder()

	h.Handle(rec, fmt.Errorf("something leaked through"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal", resp.Error.Type)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
}
