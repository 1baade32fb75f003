package app

import "stockmaster/internal/core"

// UserSession is returned on successful authentication.
type UserSession struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   core.Role `json:"role"`
}

// OperationResult is returned by single-operation calls.
type OperationResult struct {
	Operation *core.LedgerEntry `json:"operation"`
}

// OperationListResult is returned by ListOperations and GetStockLedger.
type OperationListResult struct {
	Operations []core.LedgerEntry `json:"operations"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels []core.StockLevel `json:"stock_levels"`
}

// LowStockResult is returned by GetLowStock.
type LowStockResult struct {
	Items []core.LowStockItem `json:"items"`
}

// ReservationResult is returned by single-reservation calls.
type ReservationResult struct {
	Reservation *core.StockReservation `json:"reservation"`
}

// ReservationListResult is returned by ListReservations.
type ReservationListResult struct {
	Reservations []core.StockReservation `json:"reservations"`
}

// ExpireResult is returned by ExpireReservations.
type ExpireResult struct {
	Expired []core.StockReservation `json:"expired"`
}

// ReconcileResult is returned by Reconcile. An empty Discrepancies slice means the store is consistent.
type ReconcileResult struct {
	Discrepancies []core.Discrepancy `json:"discrepancies"`
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// LocationListResult is returned by ListLocations.
type LocationListResult struct {
	Locations []core.Location `json:"locations"`
}
