package web

import (
	"net/http"

	"stockmaster/internal/core"
)

// stockLevels handles GET /api/inventory/stock-levels?product_id=&location_id=&location_type=&in_stock=true.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.StockLevelFilter{
		ProductID:    q.Get("product_id"),
		LocationID:   q.Get("location_id"),
		LocationType: core.LocationType(q.Get("location_type")),
		InStockOnly:  q.Get("in_stock") == "true",
	}
	if filter.LocationType != "" && !filter.LocationType.Valid() {
		writeError(w, r, "location_type must be one of WAREHOUSE, RACK, SUPPLIER, CUSTOMER", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.GetStockLevels(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// stockLedger handles GET /api/inventory/stock-ledger. Only validated movements are listed.
func (h *Handler) stockLedger(w http.ResponseWriter, r *http.Request) {
	filter, ok := operationFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetStockLedger(r.Context(), actor(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLowStock(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
