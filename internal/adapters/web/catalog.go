package web

import (
	"net/http"

	"stockmaster/internal/app"
	"stockmaster/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createProductBody struct {
	SKUCode      string              `json:"sku_code" validate:"required,max=50"`
	Name         string              `json:"name" validate:"required,max=255"`
	Category     string              `json:"category" validate:"max=100"`
	UOM          string              `json:"uom" validate:"max=20"`
	ReorderLevel decimal.NullDecimal `json:"reorder_level"`
	UnitCost     decimal.Decimal     `json:"unit_cost"`
	SellingPrice decimal.Decimal     `json:"selling_price"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	p, err := h.svc.CreateProduct(r.Context(), actor(r), app.CreateProductRequest{
		SKUCode:      body.SKUCode,
		Name:         body.Name,
		Category:     body.Category,
		UOM:          body.UOM,
		ReorderLevel: body.ReorderLevel,
		UnitCost:     body.UnitCost,
		SellingPrice: body.SellingPrice,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createLocationBody struct {
	Name        string            `json:"name" validate:"required,max=255"`
	Type        core.LocationType `json:"type" validate:"required,oneof=WAREHOUSE RACK SUPPLIER CUSTOMER"`
	Description string            `json:"description"`
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var body createLocationBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	l, err := h.svc.CreateLocation(r.Context(), actor(r), app.CreateLocationRequest{
		Name:        body.Name,
		Type:        body.Type,
		Description: body.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, l)
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListLocations(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getLocation(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, l)
}
