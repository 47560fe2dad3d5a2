package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/logger"
	"github.com/VictorEZCodes/clothing-shop/pkg/validator"
)

// ContentTypeJSON is the media type of every API response body.
const ContentTypeJSON = "application/json"

// DefaultMaxBodyBytes caps request bodies decoded with DecodeJSON.
const DefaultMaxBodyBytes = 1 << 20

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads at most DefaultMaxBodyBytes from the request body into dst.
// Unknown fields are rejected. The returned error wraps ErrInvalidInput.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is empty")
		}
		return apperrors.InvalidInput(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// WriteError writes a standardized error response based on the error kind.
// Validation failures keep their field map. AppErrors carry their own code and
// status; bare sentinels are mapped here and anything else becomes an internal
// error. 5xx responses are logged with the request-scoped logger when one is present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteValidationError(w, err)
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = sentinelError(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteAppError(w, r, appErr)
}

// WriteAppError writes appErr's status and envelope without logging.
func WriteAppError(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError) {
	WriteJSON(w, appErr.Status, Response{
		Error: &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

func sentinelError(err error) *apperrors.AppError {
	body := func(code, message string) *apperrors.AppError {
		return &apperrors.AppError{Code: code, Message: message, Status: apperrors.HTTPStatus(err), Err: err}
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return body("NOT_FOUND", "resource not found")
	case errors.Is(err, apperrors.ErrConflict):
		return body("CONFLICT", "resource was modified concurrently")
	case errors.Is(err, apperrors.ErrInvalidInput):
		return body("INVALID_INPUT", err.Error())
	case errors.Is(err, apperrors.ErrUnauthorized):
		return body("UNAUTHORIZED", "authentication required")
	case errors.Is(err, apperrors.ErrForbidden):
		return body("FORBIDDEN", "access denied")
	case errors.Is(err, apperrors.ErrRateUnavailable):
		return body("RATE_UNAVAILABLE", "exchange rate is not available yet; please retry")
	case errors.Is(err, apperrors.ErrPaymentCancelled):
		return body("PAYMENT_CANCELLED", "payment was cancelled")
	case errors.Is(err, apperrors.ErrRateLimited):
		return body("RATE_LIMITED", "too many requests")
	case errors.Is(err, apperrors.ErrServiceUnavail):
		return body("SERVICE_UNAVAILABLE", "a downstream service is unavailable")
	default:
		return apperrors.Internal(err)
	}
}

// WriteValidationError writes a 400 with field-level details when err is a
// validator.ValidationError, or a plain INVALID_INPUT otherwise.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: message},
	})
}

// ParseUUID validates that the given string is a valid UUID and returns it.
// If invalid, it writes a 400 Bad Request response with code INVALID_PARAMETER
// and returns uuid.Nil plus false, signaling the caller to return early.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid UUID: " + param,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
