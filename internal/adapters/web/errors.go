package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"stockmaster/internal/app"
	"stockmaster/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a service error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, core.ErrConcurrencyConflict):
		return http.StatusConflict, "CONCURRENCY_CONFLICT"
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, core.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"
	case errors.Is(err, core.ErrNegativeStock):
		return http.StatusUnprocessableEntity, "NEGATIVE_STOCK"
	case errors.Is(err, core.ErrOverReservation):
		return http.StatusUnprocessableEntity, "OVER_RESERVATION"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// errorDetails exposes the context carried by typed domain errors.
func errorDetails(err error) map[string]string {
	var (
		validation   *core.ValidationError
		notFound     *core.NotFoundError
		invalidState *core.InvalidStateError
		insufficient *core.InsufficientStockError
		negative     *core.NegativeStockError
		over         *core.OverReservationError
	)
	switch {
	case errors.As(err, &validation):
		return map[string]string{"field": validation.Field}
	case errors.As(err, &notFound):
		return map[string]string{"entity": notFound.Entity, "id": notFound.ID}
	case errors.As(err, &invalidState):
		return map[string]string{"entity": invalidState.Entity, "id": invalidState.ID, "status": invalidState.Status}
	case errors.As(err, &insufficient):
		return map[string]string{
			"product_id":  insufficient.ProductID,
			"location_id": insufficient.LocationID,
			"requested":   insufficient.Requested.String(),
			"available":   insufficient.Available.String(),
		}
	case errors.As(err, &negative):
		return map[string]string{
			"product_id":  negative.ProductID,
			"location_id": negative.LocationID,
			"on_hand":     negative.OnHand.String(),
			"delta":       negative.Delta.String(),
		}
	case errors.As(err, &over):
		return map[string]string{
			"product_id":  over.ProductID,
			"location_id": over.LocationID,
			"reserved":    over.Reserved.String(),
			"delta":       over.Delta.String(),
		}
	}
	return nil
}

// writeServiceError translates an ApplicationService error into a JSON error response.
// Infrastructure failures are logged and their message is not exposed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, "internal server error", code, status)
		return
	}
	writeErrorDetails(w, r, err.Error(), code, status, errorDetails(err))
}
