package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a stock reservation.
// Only ACTIVE reservations hold stock; every other status is terminal.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationExpired, ReservationFulfilled, ReservationCancelled:
		return true
	}
	return false
}

// DefaultReservationTTL applies when a reservation is created without an expiry.
const DefaultReservationTTL = 7 * 24 * time.Hour

// StockReservation is a temporary hold that lowers available quantity without touching on-hand.
type StockReservation struct {
	ID                 string            `json:"id"`
	ProductID          string            `json:"product_id"`
	LocationID         string            `json:"location_id"`
	Quantity           decimal.Decimal   `json:"quantity"`
	ReservationType    string            `json:"reservation_type"`
	ReferenceNumber    string            `json:"reference_number"`
	ReservedFor        string            `json:"reserved_for"`
	Notes              string            `json:"notes"`
	Status             ReservationStatus `json:"status"`
	ExpiresAt          time.Time         `json:"expires_at"`
	CreatedBy          string            `json:"created_by"`
	CreatedAt          time.Time         `json:"created_at"`
	ReleasedAt         *time.Time        `json:"released_at,omitempty"`
	FulfilledByEntryID *string           `json:"fulfilled_by_entry_id,omitempty"`
}

// checkRelease returns an InvalidStateError unless the reservation still holds stock.
func (r *StockReservation) checkRelease(action string) error {
	if r.Status != ReservationActive {
		return &InvalidStateError{
			Entity:   "reservation",
			ID:       r.ID,
			Action:   action,
			Status:   string(r.Status),
			Required: string(ReservationActive),
		}
	}
	return nil
}

// isDue reports whether the sweep should expire the reservation at now.
func (r *StockReservation) isDue(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}

// ReservationInput is the payload of a reservation request.
type ReservationInput struct {
	ProductID       string
	LocationID      string
	Quantity        decimal.Decimal
	ReservationType string
	ReferenceNumber string
	ReservedFor     string
	Notes           string
	ExpiresAt       *time.Time // nil means now + ttl
	CreatedBy       string
}

// Normalize trims text fields and fills the expiry from ttl when none was given.
func (in *ReservationInput) Normalize(now time.Time, ttl time.Duration) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.LocationID = strings.TrimSpace(in.LocationID)
	in.ReservationType = strings.ToUpper(strings.TrimSpace(in.ReservationType))
	if in.ReservationType == "" {
		in.ReservationType = "SALES_ORDER"
	}
	in.ReferenceNumber = strings.TrimSpace(in.ReferenceNumber)
	in.ReservedFor = strings.TrimSpace(in.ReservedFor)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.ExpiresAt == nil {
		if ttl <= 0 {
			ttl = DefaultReservationTTL
		}
		exp := now.Add(ttl)
		in.ExpiresAt = &exp
	}
}

func (in ReservationInput) Validate(now time.Time) error {
	if in.ProductID == "" {
		return invalid("product_id", "is required")
	}
	if in.LocationID == "" {
		return invalid("location_id", "is required")
	}
	if !in.Quantity.IsPositive() {
		return invalid("quantity", "must be greater than 0, got %s", in.Quantity)
	}
	if exceedsScale(in.Quantity) {
		return invalid("quantity", "must have at most %d decimal places, got %s", decimalScale, in.Quantity)
	}
	if in.ExpiresAt == nil || !in.ExpiresAt.After(now) {
		return invalid("expires_at", "must be in the future")
	}
	if in.CreatedBy == "" {
		return invalid("created_by", "is required")
	}
	return nil
}

// ReservationFilter narrows reservation listings. Zero values mean "no filter".
type ReservationFilter struct {
	ProductID       string
	LocationID      string
	Status          ReservationStatus
	ReferenceNumber string
}
