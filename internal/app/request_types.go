package app

import (
	"time"

	"stockmaster/internal/core"

	"github.com/shopspring/decimal"
)

// CreateOperationRequest is the input for creating a DRAFT stock movement.
type CreateOperationRequest struct {
	DocumentType          core.DocumentType
	ProductID             string
	SourceLocationID      string
	DestinationLocationID string
	Quantity              decimal.Decimal
	UnitCost              decimal.Decimal
	DocumentNumber        string // empty means next number in the document type's sequence
	Priority              core.Priority
	ContactName           string
	Notes                 string
	ScheduledDate         *time.Time
}

func (r CreateOperationRequest) movementInput(createdBy string) core.MovementInput {
	return core.MovementInput{
		DocumentType:          r.DocumentType,
		ProductID:             r.ProductID,
		SourceLocationID:      r.SourceLocationID,
		DestinationLocationID: r.DestinationLocationID,
		Quantity:              r.Quantity,
		UnitCost:              r.UnitCost,
		DocumentNumber:        r.DocumentNumber,
		Priority:              r.Priority,
		ContactName:           r.ContactName,
		Notes:                 r.Notes,
		ScheduledDate:         r.ScheduledDate,
		CreatedBy:             createdBy,
	}
}

// CreateReservationRequest is the input for holding stock at a location.
type CreateReservationRequest struct {
	ProductID       string
	LocationID      string
	Quantity        decimal.Decimal
	ReservationType string
	ReferenceNumber string
	ReservedFor     string
	Notes           string
	ExpiresAt       *time.Time // nil means the configured default TTL
}

// CreateProductRequest is the input for adding a product to the catalog.
type CreateProductRequest struct {
	SKUCode      string
	Name         string
	Category     string
	UOM          string
	ReorderLevel decimal.NullDecimal
	UnitCost     decimal.Decimal
	SellingPrice decimal.Decimal
}

// CreateLocationRequest is the input for adding a location.
type CreateLocationRequest struct {
	Name        string
	Type        core.LocationType
	Description string
}
