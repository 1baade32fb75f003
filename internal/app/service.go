package app

import (
	"context"
	"errors"

	"stockmaster/internal/core"
)

// ErrForbidden is returned when the actor's role does not permit the operation.
var ErrForbidden = errors.New("operation not permitted for role")

// Actor identifies the authenticated user a request is made on behalf of.
type Actor struct {
	UserID string
	Role   core.Role
}

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It enforces roles, publishes domain events after commit and records metrics.
// Implementations must contain no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, email, password string) (*UserSession, error)

	// GetUser returns the user profile by ID.
	GetUser(ctx context.Context, userID string) (*core.User, error)

	// Ping reports whether the database is reachable.
	Ping(ctx context.Context) error

	// CreateOperation creates a DRAFT receipt, delivery or transfer. No stock changes.
	CreateOperation(ctx context.Context, actor Actor, req CreateOperationRequest) (*OperationResult, error)

	// ValidateOperation commits a DRAFT entry's stock effect. reservationID is optional and
	// names the reservation a delivery fulfills. ADMIN and MANAGER only.
	ValidateOperation(ctx context.Context, actor Actor, id, reservationID string) (*core.ValidationResult, error)

	// CancelOperation moves a DRAFT entry to CANCELLED. ADMIN and MANAGER only.
	CancelOperation(ctx context.Context, actor Actor, id string) (*OperationResult, error)

	GetOperation(ctx context.Context, id string) (*OperationResult, error)
	ListOperations(ctx context.Context, filter core.OperationFilter) (*OperationListResult, error)

	// GetStockLedger lists validated movements. ADMIN and MANAGER only.
	GetStockLedger(ctx context.Context, actor Actor, filter core.OperationFilter) (*OperationListResult, error)

	GetStockLevels(ctx context.Context, filter core.StockLevelFilter) (*StockResult, error)

	// GetLowStock lists monitored products whose total on-hand is below the reorder level.
	GetLowStock(ctx context.Context) (*LowStockResult, error)

	CreateReservation(ctx context.Context, actor Actor, req CreateReservationRequest) (*ReservationResult, error)
	CancelReservation(ctx context.Context, actor Actor, id string) (*ReservationResult, error)
	GetReservation(ctx context.Context, id string) (*ReservationResult, error)
	ListReservations(ctx context.Context, filter core.ReservationFilter) (*ReservationListResult, error)

	// ExpireReservations runs one expiry sweep over ACTIVE reservations past their expiry.
	ExpireReservations(ctx context.Context) (*ExpireResult, error)

	// Reconcile compares stock levels with the quantities implied by ledger history.
	Reconcile(ctx context.Context) (*ReconcileResult, error)

	// CreateProduct adds a product to the catalog. ADMIN and MANAGER only.
	CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*core.Product, error)
	ListProducts(ctx context.Context) (*ProductListResult, error)
	GetProduct(ctx context.Context, id string) (*core.Product, error)
	// DeleteProduct removes a product with its stock, ledger and reservations. ADMIN only.
	DeleteProduct(ctx context.Context, actor Actor, id string) error

	// CreateLocation adds a location. ADMIN and MANAGER only.
	CreateLocation(ctx context.Context, actor Actor, req CreateLocationRequest) (*core.Location, error)
	ListLocations(ctx context.Context) (*LocationListResult, error)
	GetLocation(ctx context.Context, id string) (*core.Location, error)
}
