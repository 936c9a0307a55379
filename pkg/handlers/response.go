package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/middleware"
)

// ApiResponse is the envelope every JSON API response uses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// errorStatus maps an error to its HTTP status and machine-readable code.
func errorStatus(err error) (int, string) {
	switch apperrors.Kind(err) {
	case apperrors.ErrValidation:
		return http.StatusBadRequest, "validation_error"
	case apperrors.ErrReference:
		return http.StatusUnprocessableEntity, "reference_error"
	case apperrors.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperrors.ErrStaleBaseline:
		return http.StatusConflict, "stale_baseline"
	case apperrors.ErrConnectivity:
		return http.StatusBadGateway, "connectivity_error"
	case apperrors.ErrAuth:
		return http.StatusBadGateway, "auth_error"
	case apperrors.ErrQuery:
		return http.StatusBadRequest, "query_error"
	case apperrors.ErrPersistence:
		return http.StatusInternalServerError, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError reports err to the client with the status its kind maps to.
// Server-side failures are logged; client mistakes are not.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("op", op),
			zap.String("code", code),
			zap.String("error", logging.SanitizeError(err)))
	}

	message := apperrors.UserMessage(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, apperrors.ErrPersistence) {
		message = "internal error"
	}
	if status == http.StatusBadGateway {
		message = logging.SanitizeError(err)
	}

	if werr := ErrorResponse(w, status, code, message); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}

// writeData wraps data in a successful envelope.
func writeData(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON reads a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", apperrors.ErrValidation, err)
	}
	return nil
}
