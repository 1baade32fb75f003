package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LocationType classifies a location. SUPPLIER and CUSTOMER are virtual endpoints
// standing for "outside the warehouse".
type LocationType string

const (
	LocationWarehouse LocationType = "WAREHOUSE"
	LocationRack      LocationType = "RACK"
	LocationSupplier  LocationType = "SUPPLIER"
	LocationCustomer  LocationType = "CUSTOMER"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationWarehouse, LocationRack, LocationSupplier, LocationCustomer:
		return true
	}
	return false
}

// Product is a stocked item identified by its SKU code.
// ReorderLevel is null when the product is not monitored for low stock.
type Product struct {
	ID           string              `json:"id"`
	SKUCode      string              `json:"sku_code"`
	Name         string              `json:"name"`
	Category     string              `json:"category"`
	UOM          string              `json:"uom"`
	ReorderLevel decimal.NullDecimal `json:"reorder_level"`
	UnitCost     decimal.Decimal     `json:"unit_cost"`
	SellingPrice decimal.Decimal     `json:"selling_price"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Location is a place that can hold stock, or a virtual endpoint.
type Location struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        LocationType `json:"type"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ProductInput is used when creating a product.
type ProductInput struct {
	SKUCode      string
	Name         string
	Category     string
	UOM          string
	ReorderLevel decimal.NullDecimal
	UnitCost     decimal.Decimal
	SellingPrice decimal.Decimal
}

// Normalize trims text fields and applies the default unit of measure.
func (in *ProductInput) Normalize() {
	in.SKUCode = strings.ToUpper(strings.TrimSpace(in.SKUCode))
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.UOM = strings.TrimSpace(in.UOM)
	if in.UOM == "" {
		in.UOM = "pcs"
	}
}

func (in ProductInput) Validate() error {
	if in.SKUCode == "" {
		return invalid("sku_code", "is required")
	}
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.ReorderLevel.Valid && in.ReorderLevel.Decimal.IsNegative() {
		return invalid("reorder_level", "cannot be negative, got %s", in.ReorderLevel.Decimal)
	}
	if in.UnitCost.IsNegative() {
		return invalid("unit_cost", "cannot be negative, got %s", in.UnitCost)
	}
	if in.SellingPrice.IsNegative() {
		return invalid("selling_price", "cannot be negative, got %s", in.SellingPrice)
	}
	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"reorder_level", in.ReorderLevel.Decimal},
		{"unit_cost", in.UnitCost},
		{"selling_price", in.SellingPrice},
	}
	for _, a := range amounts {
		if exceedsScale(a.value) {
			return invalid(a.field, "must have at most %d decimal places, got %s", decimalScale, a.value)
		}
	}
	return nil
}

// LocationInput is used when creating a location.
type LocationInput struct {
	Name        string
	Type        LocationType
	Description string
}

func (in *LocationInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Type = LocationType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	in.Description = strings.TrimSpace(in.Description)
}

func (in LocationInput) Validate() error {
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if !in.Type.Valid() {
		return invalid("type", "must be one of WAREHOUSE, RACK, SUPPLIER, CUSTOMER, got %q", in.Type)
	}
	return nil
}
