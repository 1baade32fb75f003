package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationService holds and releases stock for pending orders.
//
// A reservation raises reserved_quantity on its stock level while ACTIVE. Each of the three
// release paths (expire, fulfill, cancel) locks the reservation row first and requires ACTIVE,
// so the hold is returned exactly once even when releases race.
type ReservationService interface {
	CreateReservation(ctx context.Context, in ReservationInput) (*StockReservation, error)
	CancelReservation(ctx context.Context, id string) (*StockReservation, error)
	GetReservation(ctx context.Context, id string) (*StockReservation, error)
	GetReservations(ctx context.Context, filter ReservationFilter) ([]StockReservation, error)
	// ExpireDue releases every ACTIVE reservation whose expiry is before now, one transaction each.
	// Returns the reservations it expired; failures of individual reservations are joined.
	ExpireDue(ctx context.Context, now time.Time) ([]StockReservation, error)

	// FulfillTx releases a reservation consumed by the delivery entry being validated in tx.
	// It never touches on-hand: the delivery's own effect does that.
	FulfillTx(ctx context.Context, tx pgx.Tx, id string, entry *LedgerEntry) (*StockReservation, error)
}

type reservationService struct {
	pool  *pgxpool.Pool
	stock StockLevelStore
	opts  Options
}

func NewReservationService(pool *pgxpool.Pool, stock StockLevelStore, opts Options) ReservationService {
	return &reservationService{pool: pool, stock: stock, opts: opts.withDefaults()}
}

const reservationColumns = `id, product_id, location_id, quantity, reservation_type, reference_number,
	reserved_for, notes, status, expires_at, created_by, created_at, released_at, fulfilled_by_entry_id`

func scanReservation(row pgx.Row) (*StockReservation, error) {
	var r StockReservation
	if err := row.Scan(
		&r.ID, &r.ProductID, &r.LocationID, &r.Quantity, &r.ReservationType, &r.ReferenceNumber,
		&r.ReservedFor, &r.Notes, &r.Status, &r.ExpiresAt, &r.CreatedBy, &r.CreatedAt,
		&r.ReleasedAt, &r.FulfilledByEntryID,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *reservationService) CreateReservation(ctx context.Context, in ReservationInput) (*StockReservation, error) {
	now := s.opts.Now()
	in.Normalize(now, s.opts.ReservationTTL)
	if err := in.Validate(now); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx, s.opts.LockTimeout); err != nil {
		return nil, err
	}
	if _, err := requireProduct(ctx, tx, in.ProductID); err != nil {
		return nil, err
	}
	if _, err := requireLocation(ctx, tx, in.LocationID); err != nil {
		return nil, err
	}

	level, err := s.stock.LockTx(ctx, tx, in.ProductID, in.LocationID)
	if err != nil {
		return nil, err
	}
	if level == nil || level.Available.LessThan(in.Quantity) {
		e := &InsufficientStockError{ProductID: in.ProductID, LocationID: in.LocationID, Requested: in.Quantity}
		if level != nil {
			e.Available = level.Available
		}
		return nil, e
	}
	if _, err := s.stock.AdjustReservedTx(ctx, tx, in.ProductID, in.LocationID, in.Quantity); err != nil {
		return nil, err
	}

	r, err := scanReservation(tx.QueryRow(ctx, `
		INSERT INTO stock_reservations (id, product_id, location_id, quantity, reservation_type,
		                                reference_number, reserved_for, notes, status, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+reservationColumns,
		uuid.NewString(), in.ProductID, in.LocationID, in.Quantity, in.ReservationType,
		in.ReferenceNumber, in.ReservedFor, in.Notes, string(ReservationActive), *in.ExpiresAt, in.CreatedBy))
	if err != nil {
		return nil, wrapDBError("create reservation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBError("commit reservation", err)
	}
	return r, nil
}

func (s *reservationService) CancelReservation(ctx context.Context, id string) (*StockReservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx, s.opts.LockTimeout); err != nil {
		return nil, err
	}
	r, err := s.lockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := r.checkRelease("cancel"); err != nil {
		return nil, err
	}
	released, err := s.releaseTx(ctx, tx, r, ReservationCancelled, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBError("commit reservation cancel", err)
	}
	return released, nil
}

func (s *reservationService) FulfillTx(ctx context.Context, tx pgx.Tx, id string, entry *LedgerEntry) (*StockReservation, error) {
	r, err := s.lockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := r.checkRelease("fulfill"); err != nil {
		return nil, err
	}
	if !s.opts.Now().Before(r.ExpiresAt) {
		return nil, invalid("reservation_id", "reservation %s expired at %s", r.ID, r.ExpiresAt.Format(time.RFC3339))
	}
	if entry.DocumentType != DocumentDelivery {
		return nil, invalid("reservation_id", "only a delivery can fulfill a reservation, entry %s is a %s", entry.ID, entry.DocumentType)
	}
	if r.ProductID != entry.ProductID {
		return nil, invalid("reservation_id", "reservation %s holds product %s, delivery moves product %s", r.ID, r.ProductID, entry.ProductID)
	}
	if entry.SourceLocationID == nil || r.LocationID != *entry.SourceLocationID {
		return nil, invalid("reservation_id", "reservation %s holds stock at location %s, not at the delivery source", r.ID, r.LocationID)
	}
	return s.releaseTx(ctx, tx, r, ReservationFulfilled, &entry.ID)
}

func (s *reservationService) ExpireDue(ctx context.Context, now time.Time) ([]StockReservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM stock_reservations
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at, id
	`, string(ReservationActive), now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reservations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read due reservations: %w", err)
	}

	var expired []StockReservation
	var errs []error
	for _, id := range ids {
		r, err := s.expireOne(ctx, id, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("reservation %s: %w", id, err))
			continue
		}
		if r != nil {
			expired = append(expired, *r)
		}
	}
	return expired, errors.Join(errs...)
}

// expireOne expires a single reservation. Returns nil, nil when another transaction released it first.
func (s *reservationService) expireOne(ctx context.Context, id string, now time.Time) (*StockReservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx, s.opts.LockTimeout); err != nil {
		return nil, err
	}
	r, err := s.lockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !r.isDue(now) {
		return nil, nil
	}
	released, err := s.releaseTx(ctx, tx, r, ReservationExpired, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBError("commit reservation expiry", err)
	}
	return released, nil
}

func (s *reservationService) lockTx(ctx context.Context, tx pgx.Tx, id string) (*StockReservation, error) {
	r, err := scanReservation(tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM stock_reservations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "reservation", ID: id}
		}
		return nil, wrapDBError("lock reservation", err)
	}
	return r, nil
}

// releaseTx returns the held quantity to the stock level and moves r to a terminal status.
// r must be locked by tx and ACTIVE.
func (s *reservationService) releaseTx(ctx context.Context, tx pgx.Tx, r *StockReservation, status ReservationStatus, entryID *string) (*StockReservation, error) {
	if _, err := s.stock.AdjustReservedTx(ctx, tx, r.ProductID, r.LocationID, r.Quantity.Neg()); err != nil {
		return nil, err
	}
	released, err := scanReservation(tx.QueryRow(ctx, `
		UPDATE stock_reservations
		SET status = $2, released_at = NOW(), fulfilled_by_entry_id = $3
		WHERE id = $1
		RETURNING `+reservationColumns,
		r.ID, string(status), entryID))
	if err != nil {
		return nil, wrapDBError("release reservation", err)
	}
	return released, nil
}

func (s *reservationService) GetReservation(ctx context.Context, id string) (*StockReservation, error) {
	r, err := scanReservation(s.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM stock_reservations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "reservation", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch reservation: %w", err)
	}
	return r, nil
}

func (s *reservationService) GetReservations(ctx context.Context, filter ReservationFilter) ([]StockReservation, error) {
	var c conditions
	if filter.ProductID != "" {
		c.add("product_id = %s", filter.ProductID)
	}
	if filter.LocationID != "" {
		c.add("location_id = %s", filter.LocationID)
	}
	if filter.Status != "" {
		c.add("status = %s", string(filter.Status))
	}
	if filter.ReferenceNumber != "" {
		c.add("reference_number = %s", filter.ReferenceNumber)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+reservationColumns+` FROM stock_reservations`+c.where()+` ORDER BY created_at DESC, id`,
		c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var out []StockReservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", err)
	}
	return out, nil
}
