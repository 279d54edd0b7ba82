package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/converti/converti-api/internal/errors"
)

// statusForCode maps application error codes to HTTP statuses.
var statusForCode = map[apperrors.ErrorCode]int{ //nolint:gochecknoglobals // read-only lookup table
	apperrors.ErrCodeNotFound:    http.StatusNotFound,
	apperrors.ErrCodeValidation:  http.StatusBadRequest,
	apperrors.ErrCodeConflict:    http.StatusConflict,
	apperrors.ErrCodeUnavailable: http.StatusServiceUnavailable,
	apperrors.ErrCodeTimeout:     http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:    http.StatusServiceUnavailable,
	apperrors.ErrCodeInternal:    http.StatusInternalServerError,
}

// writeServiceError renders a service error as the JSON error envelope.
// Internal causes are logged and never sent to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			appErr = &apperrors.AppError{Code: apperrors.ErrCodeTimeout, Message: "Request timed out", Cause: err}
		case errors.Is(err, context.Canceled):
			appErr = &apperrors.AppError{Code: apperrors.ErrCodeCanceled, Message: "Request canceled", Cause: err}
		default:
			appErr = &apperrors.AppError{Code: apperrors.ErrCodeInternal, Message: "Internal server error", Cause: err}
		}
	}

	status, ok := statusForCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if apperrors.IsValidation(err) && logger != nil {
		logger.DebugContext(r.Context(), "request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"field", apperrors.GetField(err),
			"reason", appErr.Message,
		)
	}
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", appErr.Code,
			"error", err,
		)
	}

	writeErrorMessage(w, status, string(appErr.Code), appErr.Message)
}
