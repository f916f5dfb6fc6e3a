package errors

import (
	"encoding/json"
	"net/http"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
)

// ErrorResponse represents an error response to be sent to the client
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handler handles errors and writes appropriate HTTP responses
type Handler struct {
	logErrors bool
}

// NewHandler creates a new error handler
func NewHandler(logErrors bool) *Handler {
	return &Handler{logErrors: logErrors}
}

// Handle handles an error and writes the response
func (h *Handler) Handle(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	appErr, ok := err.(*AppError)
	if !ok {
		appErr = InternalErrorf("INTERNAL_ERROR", "An unexpected error occurred").Wrap(err)
	}

	if h.logErrors {
		logging.Get().WithError(appErr).Warnf("request failed: type=%s code=%s", appErr.Type, appErr.Code)
	}

	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		Error: ErrorDetail{
			Type:    string(appErr.Type),
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}
