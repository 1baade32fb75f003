package web

import (
	"net/http"
	"time"

	"stockmaster/internal/app"
	"stockmaster/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createReservationBody struct {
	ProductID       string          `json:"product_id" validate:"required"`
	LocationID      string          `json:"location_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	ReservationType string          `json:"reservation_type" validate:"max=50"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	ReservedFor     string          `json:"reserved_for" validate:"max=255"`
	Notes           string          `json:"notes"`
	ExpiresAt       *time.Time      `json:"expires_at"`
}

func (h *Handler) createReservation(w http.ResponseWriter, r *http.Request) {
	var body createReservationBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.svc.CreateReservation(r.Context(), actor(r), app.CreateReservationRequest{
		ProductID:       body.ProductID,
		LocationID:      body.LocationID,
		Quantity:        body.Quantity,
		ReservationType: body.ReservationType,
		ReferenceNumber: body.ReferenceNumber,
		ReservedFor:     body.ReservedFor,
		Notes:           body.Notes,
		ExpiresAt:       body.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Reservation)
}

// listReservations handles GET /api/reservations?product_id=&location_id=&status=&reference=.
func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ReservationFilter{
		ProductID:       q.Get("product_id"),
		LocationID:      q.Get("location_id"),
		Status:          core.ReservationStatus(q.Get("status")),
		ReferenceNumber: q.Get("reference"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, r, "status must be one of ACTIVE, EXPIRED, FULFILLED, CANCELLED", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ListReservations(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetReservation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Reservation)
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CancelReservation(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Reservation)
}
