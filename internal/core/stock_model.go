package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLevel is the materialized quantity of one product at one location.
// Available is always OnHand - Reserved.
type StockLevel struct {
	ProductID    string          `json:"product_id"`
	ProductSKU   string          `json:"product_sku,omitempty"`   // joined from products
	ProductName  string          `json:"product_name,omitempty"`  // joined from products
	LocationID   string          `json:"location_id"`
	LocationName string          `json:"location_name,omitempty"` // joined from locations
	LocationType LocationType    `json:"location_type,omitempty"` // joined from locations
	OnHand       decimal.Decimal `json:"on_hand_quantity"`
	Reserved     decimal.Decimal `json:"reserved_quantity"`
	Available    decimal.Decimal `json:"available_quantity"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// withOnHandDelta returns a copy of the level with delta applied to on-hand.
// The result must keep on-hand non-negative and at least the reserved quantity.
func (sl StockLevel) withOnHandDelta(delta decimal.Decimal) (StockLevel, error) {
	next := sl
	next.OnHand = sl.OnHand.Add(delta)
	if next.OnHand.IsNegative() || next.Reserved.GreaterThan(next.OnHand) {
		return sl, &NegativeStockError{
			ProductID:  sl.ProductID,
			LocationID: sl.LocationID,
			OnHand:     sl.OnHand,
			Reserved:   sl.Reserved,
			Delta:      delta,
		}
	}
	next.Available = next.OnHand.Sub(next.Reserved)
	return next, nil
}

// withReservedDelta returns a copy of the level with delta applied to reserved.
func (sl StockLevel) withReservedDelta(delta decimal.Decimal) (StockLevel, error) {
	next := sl
	next.Reserved = sl.Reserved.Add(delta)
	if next.Reserved.IsNegative() || next.Reserved.GreaterThan(next.OnHand) {
		return sl, &OverReservationError{
			ProductID:  sl.ProductID,
			LocationID: sl.LocationID,
			OnHand:     sl.OnHand,
			Reserved:   sl.Reserved,
			Delta:      delta,
		}
	}
	next.Available = next.OnHand.Sub(next.Reserved)
	return next, nil
}

// invariantViolations lists every aggregate invariant the level breaks. Empty means consistent.
func (sl StockLevel) invariantViolations() []string {
	var out []string
	if sl.OnHand.IsNegative() {
		out = append(out, "on-hand quantity is negative")
	}
	if sl.Reserved.IsNegative() {
		out = append(out, "reserved quantity is negative")
	}
	if sl.Reserved.GreaterThan(sl.OnHand) {
		out = append(out, "reserved quantity exceeds on-hand quantity")
	}
	if !sl.Available.Equal(sl.OnHand.Sub(sl.Reserved)) {
		out = append(out, "available quantity differs from on-hand minus reserved")
	}
	return out
}

// StockLevelFilter narrows getStockLevels. Zero values mean "no filter".
type StockLevelFilter struct {
	ProductID    string
	LocationID   string
	LocationType LocationType
	InStockOnly  bool
}

// LowStockItem flags a product whose total on-hand quantity is below its reorder level.
type LowStockItem struct {
	ProductID    string          `json:"product_id"`
	SKUCode      string          `json:"sku_code"`
	Name         string          `json:"name"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	OnHand       decimal.Decimal `json:"on_hand_quantity"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

// isLowStock reports whether total on-hand is below a configured reorder level.
// Products without a reorder level are never low.
func isLowStock(totalOnHand decimal.Decimal, reorderLevel decimal.NullDecimal) bool {
	return reorderLevel.Valid && totalOnHand.LessThan(reorderLevel.Decimal)
}
