package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Sentinels for errors.Is. Every typed error below matches exactly one of them.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrNegativeStock       = errors.New("negative stock")
	ErrOverReservation     = errors.New("over reservation")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// ValidationError reports malformed or missing input. It is raised before any persistence access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateError reports an illegal lifecycle transition.
type InvalidStateError struct {
	Entity   string
	ID       string
	Action   string
	Status   string
	Required string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s: status is %s (must be %s)", e.Action, e.Entity, e.ID, e.Status, e.Required)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// InsufficientStockError reports a requested quantity above the available quantity of a stock level.
type InsufficientStockError struct {
	ProductID  string
	LocationID string
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s at location %s: available %s, requested %s",
		e.ProductID, e.LocationID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NegativeStockError is raised by the stock level store when an on-hand delta would break the
// aggregate invariants. Callers check availability first, so this signals a bug or a race.
type NegativeStockError struct {
	ProductID  string
	LocationID string
	OnHand     decimal.Decimal
	Reserved   decimal.Decimal
	Delta      decimal.Decimal
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("on-hand delta %s for product %s at location %s rejected: on hand %s, reserved %s",
		e.Delta.String(), e.ProductID, e.LocationID, e.OnHand.String(), e.Reserved.String())
}

func (e *NegativeStockError) Is(target error) bool { return target == ErrNegativeStock }

// OverReservationError is raised by the stock level store when a reserved delta would push the
// reserved quantity below zero or above the on-hand quantity.
type OverReservationError struct {
	ProductID  string
	LocationID string
	OnHand     decimal.Decimal
	Reserved   decimal.Decimal
	Delta      decimal.Decimal
}

func (e *OverReservationError) Error() string {
	return fmt.Sprintf("reserved delta %s for product %s at location %s rejected: on hand %s, reserved %s",
		e.Delta.String(), e.ProductID, e.LocationID, e.OnHand.String(), e.Reserved.String())
}

func (e *OverReservationError) Is(target error) bool { return target == ErrOverReservation }

// ConcurrencyConflictError reports that a transaction lost a race on a locked row
// (serialization failure, deadlock or lock timeout). It is the only retryable error.
type ConcurrencyConflictError struct {
	Operation string
	Err       error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict during %s: %v", e.Operation, e.Err)
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

// PostgreSQL SQLSTATE codes that mean "another transaction got there first".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// wrapDBError classifies a database error. Lock contention becomes a ConcurrencyConflictError;
// everything else is wrapped with the operation name.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return &ConcurrencyConflictError{Operation: op, Err: err}
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
