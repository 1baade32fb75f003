package web

import (
	"net/http"
	"time"

	"stockmaster/internal/app"
	"stockmaster/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createOperationBody struct {
	ProductID             string          `json:"product_id" validate:"required"`
	SourceLocationID      string          `json:"source_location_id"`
	DestinationLocationID string          `json:"destination_location_id"`
	Quantity              decimal.Decimal `json:"quantity"`
	UnitCost              decimal.Decimal `json:"unit_cost"`
	DocumentNumber        string          `json:"document_number" validate:"max=64"`
	Priority              core.Priority   `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	ContactName           string          `json:"contact_name" validate:"max=255"`
	Notes                 string          `json:"notes"`
	ScheduledDate         *time.Time      `json:"scheduled_date"`
}

// createOperation handles POST /api/operations/{receipt|delivery|transfer}.
// Location shape per document type is checked by the ledger itself.
func (h *Handler) createOperation(docType core.DocumentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createOperationBody
		if !decodeAndValidate(w, r, &body) {
			return
		}

		result, err := h.svc.CreateOperation(r.Context(), actor(r), app.CreateOperationRequest{
			DocumentType:          docType,
			ProductID:             body.ProductID,
			SourceLocationID:      body.SourceLocationID,
			DestinationLocationID: body.DestinationLocationID,
			Quantity:              body.Quantity,
			UnitCost:              body.UnitCost,
			DocumentNumber:        body.DocumentNumber,
			Priority:              body.Priority,
			ContactName:           body.ContactName,
			Notes:                 body.Notes,
			ScheduledDate:         body.ScheduledDate,
		})
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, result.Operation)
	}
}

// validateOperation handles POST /api/operations/{id}/validate.
// The body is optional: {"reservation_id": "..."} names the reservation a delivery fulfills.
func (h *Handler) validateOperation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReservationID string `json:"reservation_id"`
	}
	if !decodeOptionalJSON(w, r, &body) {
		return
	}

	result, err := h.svc.ValidateOperation(r.Context(), actor(r), chi.URLParam(r, "id"), body.ReservationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// cancelOperation handles POST /api/operations/{id}/cancel and DELETE /api/operations/{id}.
func (h *Handler) cancelOperation(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CancelOperation(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Operation)
}

func (h *Handler) getOperation(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Operation)
}

func (h *Handler) listOperations(w http.ResponseWriter, r *http.Request) {
	filter, ok := operationFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListOperations(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
