package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperationService records stock movements in the ledger and drives their lifecycle.
//
// Entries are created in DRAFT with no stock effect. Validate applies the effect to the
// stock levels and flips the entry to VALIDATED in one transaction; Cancel flips a DRAFT
// entry to CANCELLED. Both transitions are terminal.
type OperationService interface {
	CreateReceipt(ctx context.Context, in MovementInput) (*LedgerEntry, error)
	CreateDelivery(ctx context.Context, in MovementInput) (*LedgerEntry, error)
	CreateTransfer(ctx context.Context, in MovementInput) (*LedgerEntry, error)
	// Create dispatches on in.DocumentType.
	Create(ctx context.Context, in MovementInput) (*LedgerEntry, error)

	// Validate commits a DRAFT entry's stock effect. When opts names a reservation, the delivery
	// consumes it: the hold is released in the same transaction, before the availability check.
	// Concurrency conflicts are retried with backoff up to Options.MaxValidationAttempts.
	Validate(ctx context.Context, id, actorID string, opts ValidateOptions) (*ValidationResult, error)
	Cancel(ctx context.Context, id, actorID string) (*LedgerEntry, error)

	GetOperation(ctx context.Context, id string) (*LedgerEntry, error)
	GetOperations(ctx context.Context, filter OperationFilter) ([]LedgerEntry, error)
	// GetStockLedger lists VALIDATED entries, newest completion first. From/To bound completed_date.
	GetStockLedger(ctx context.Context, filter OperationFilter) ([]LedgerEntry, error)
}

type operationService struct {
	pool         *pgxpool.Pool
	stock        StockLevelStore
	reservations ReservationService
	opts         Options
}

func NewOperationService(pool *pgxpool.Pool, stock StockLevelStore, reservations ReservationService, opts Options) OperationService {
	return &operationService{pool: pool, stock: stock, reservations: reservations, opts: opts.withDefaults()}
}

const entrySelect = `
	SELECT e.id, e.document_number, e.document_type, e.status,
	       e.product_id, p.sku_code, p.name,
	       e.source_location_id, COALESCE(src.name, ''),
	       e.destination_location_id, COALESCE(dst.name, ''),
	       e.quantity, e.unit_cost, e.total_value, e.priority, e.contact_name, e.notes,
	       e.scheduled_date, e.completed_date, e.created_by, e.validated_by,
	       e.cancelled_by, e.cancelled_at, e.created_at
	FROM stock_ledger e
	JOIN products p ON p.id = e.product_id
	LEFT JOIN locations src ON src.id = e.source_location_id
	LEFT JOIN locations dst ON dst.id = e.destination_location_id`

func scanEntry(row pgx.Row) (*LedgerEntry, error) {
	var e LedgerEntry
	if err := row.Scan(
		&e.ID, &e.DocumentNumber, &e.DocumentType, &e.Status,
		&e.ProductID, &e.ProductSKU, &e.ProductName,
		&e.SourceLocationID, &e.SourceLocationName,
		&e.DestinationLocationID, &e.DestinationName,
		&e.Quantity, &e.UnitCost, &e.TotalValue, &e.Priority, &e.ContactName, &e.Notes,
		&e.ScheduledDate, &e.CompletedDate, &e.CreatedBy, &e.ValidatedBy,
		&e.CancelledBy, &e.CancelledAt, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// ── Create ──────────────────────────────────────────────────────────────────

func (s *operationService) CreateReceipt(ctx context.Context, in MovementInput) (*LedgerEntry, error) {
	in.DocumentType = DocumentReceipt
	return s.Create(ctx, in)
}

func (s *operationService) CreateDelivery(ctx context.Context, in MovementInput) (*LedgerEntry, error) {
	in.DocumentType = DocumentDelivery
	return s.Create(ctx, in)
}

func (s *operationService) CreateTransfer(ctx context.Context, in MovementInput) (*LedgerEntry, error) {
	in.DocumentType = DocumentTransfer
	return s.Create(ctx, in)
}

func (s *operationService) Create(ctx context.Context, in MovementInput) (*LedgerEntry, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := requireProduct(ctx, tx, in.ProductID); err != nil {
		return nil, err
	}
	var source, destination *string
	if in.SourceLocationID != "" {
		if _, err := requireLocation(ctx, tx, in.SourceLocationID); err != nil {
			return nil, err
		}
		source = &in.SourceLocationID
	}
	if in.DestinationLocationID != "" {
		if _, err := requireLocation(ctx, tx, in.DestinationLocationID); err != nil {
			return nil, err
		}
		destination = &in.DestinationLocationID
	}

	docNumber := in.DocumentNumber
	if docNumber == "" {
		docNumber, err = nextDocumentNumber(ctx, tx, in.DocumentType)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_ledger (id, document_number, document_type, status, product_id,
		                          source_location_id, destination_location_id, quantity, unit_cost, total_value,
		                          priority, contact_name, notes, scheduled_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, id, docNumber, string(in.DocumentType), string(StatusDraft), in.ProductID,
		source, destination, in.Quantity, in.UnitCost, in.Quantity.Mul(in.UnitCost),
		string(in.Priority), in.ContactName, in.Notes, in.ScheduledDate, in.CreatedBy)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, invalid("document_number", "document number %s is already in use", docNumber)
		}
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	entry, err := scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read created ledger entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// nextDocumentNumber allocates the next gapless number for the document type inside tx.
func nextDocumentNumber(ctx context.Context, tx pgx.Tx, t DocumentType) (string, error) {
	var last int64
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (document_type, last_number)
		VALUES ($1, 1)
		ON CONFLICT (document_type)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, string(t)).Scan(&last)
	if err != nil {
		return "", wrapDBError("generate document number", err)
	}
	return fmt.Sprintf("%s/%05d", t.numberPrefix(), last), nil
}

// ── Validate / Cancel ───────────────────────────────────────────────────────

func (s *operationService) Validate(ctx context.Context, id, actorID string, opts ValidateOptions) (*ValidationResult, error) {
	if actorID == "" {
		return nil, invalid("validated_by", "is required")
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 25 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.opts.MaxValidationAttempts-1)), ctx)

	var result *ValidationResult
	err := backoff.RetryNotify(func() error {
		res, err := s.validateOnce(ctx, id, actorID, opts)
		if err != nil {
			if errors.Is(err, ErrConcurrencyConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}, b, func(err error, wait time.Duration) {
		if s.opts.OnValidationRetry != nil {
			s.opts.OnValidationRetry(err, wait)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateOnce runs one validation attempt. Lock order: ledger row, reservation row, stock rows
// by location id. Any error rolls back every change of the attempt.
func (s *operationService) validateOnce(ctx context.Context, id, actorID string, opts ValidateOptions) (*ValidationResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrapDBError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx, s.opts.LockTimeout); err != nil {
		return nil, err
	}

	entry, err := lockEntryTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusDraft {
		return nil, &InvalidStateError{
			Entity:   "operation",
			ID:       entry.ID,
			Action:   "validate",
			Status:   string(entry.Status),
			Required: string(StatusDraft),
		}
	}

	result := &ValidationResult{}
	if opts.ReservationID != "" {
		result.Reservation, err = s.reservations.FulfillTx(ctx, tx, opts.ReservationID, entry)
		if err != nil {
			return nil, err
		}
	}

	for _, eff := range entry.effects() {
		if eff.Delta.IsNegative() {
			level, err := s.stock.LockTx(ctx, tx, entry.ProductID, eff.LocationID)
			if err != nil {
				return nil, err
			}
			if level == nil || level.Available.LessThan(entry.Quantity) {
				e := &InsufficientStockError{ProductID: entry.ProductID, LocationID: eff.LocationID, Requested: entry.Quantity}
				if level != nil {
					e.Available = level.Available
				}
				return nil, e
			}
		}
		level, err := s.stock.UpsertOnHandDeltaTx(ctx, tx, entry.ProductID, eff.LocationID, eff.Delta)
		if err != nil {
			return nil, err
		}
		result.StockLevels = append(result.StockLevels, *level)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_ledger
		SET status = $2, completed_date = NOW(), validated_by = $3
		WHERE id = $1
	`, id, string(StatusValidated), actorID); err != nil {
		return nil, wrapDBError("mark operation validated", err)
	}

	result.Entry, err = scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, wrapDBError("read validated operation", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBError("commit validation", err)
	}
	return result, nil
}

func (s *operationService) Cancel(ctx context.Context, id, actorID string) (*LedgerEntry, error) {
	if actorID == "" {
		return nil, invalid("cancelled_by", "is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx, s.opts.LockTimeout); err != nil {
		return nil, err
	}
	entry, err := lockEntryTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusDraft {
		return nil, &InvalidStateError{
			Entity:   "operation",
			ID:       entry.ID,
			Action:   "cancel",
			Status:   string(entry.Status),
			Required: string(StatusDraft),
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_ledger
		SET status = $2, cancelled_by = $3, cancelled_at = NOW()
		WHERE id = $1
	`, id, string(StatusCancelled), actorID); err != nil {
		return nil, wrapDBError("mark operation cancelled", err)
	}

	cancelled, err := scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read cancelled operation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBError("commit cancellation", err)
	}
	return cancelled, nil
}

// lockEntryTx reads a ledger entry and locks its row until tx ends.
func lockEntryTx(ctx context.Context, tx pgx.Tx, id string) (*LedgerEntry, error) {
	entry, err := scanEntry(tx.QueryRow(ctx, entrySelect+` WHERE e.id = $1 FOR UPDATE OF e`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "operation", ID: id}
		}
		return nil, wrapDBError("lock operation", err)
	}
	return entry, nil
}

// ── Read ────────────────────────────────────────────────────────────────────

func (s *operationService) GetOperation(ctx context.Context, id string) (*LedgerEntry, error) {
	entry, err := scanEntry(s.pool.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "operation", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch operation: %w", err)
	}
	return entry, nil
}

func (s *operationService) GetOperations(ctx context.Context, filter OperationFilter) ([]LedgerEntry, error) {
	c := entryConditions(filter)
	if filter.Status != "" {
		c.add("e.status = %s", string(filter.Status))
	}
	if filter.From != nil {
		c.add("e.created_at >= %s", *filter.From)
	}
	if filter.To != nil {
		c.add("e.created_at < %s", *filter.To)
	}
	return s.listEntries(ctx, c, "e.created_at DESC, e.id", filter.Limit)
}

func (s *operationService) GetStockLedger(ctx context.Context, filter OperationFilter) ([]LedgerEntry, error) {
	c := entryConditions(filter)
	c.add("e.status = %s", string(StatusValidated))
	if filter.From != nil {
		c.add("e.completed_date >= %s", *filter.From)
	}
	if filter.To != nil {
		c.add("e.completed_date < %s", *filter.To)
	}
	return s.listEntries(ctx, c, "e.completed_date DESC, e.id", filter.Limit)
}

// entryConditions builds the filters shared by operation and stock-ledger listings.
func entryConditions(filter OperationFilter) *conditions {
	c := &conditions{}
	if filter.DocumentType != "" {
		c.add("e.document_type = %s", string(filter.DocumentType))
	}
	if filter.ProductID != "" {
		c.add("e.product_id = %s", filter.ProductID)
	}
	if filter.LocationID != "" {
		c.add("(e.source_location_id = %s OR e.destination_location_id = %s)", filter.LocationID)
	}
	return c
}

func (s *operationService) listEntries(ctx context.Context, c *conditions, orderBy string, limit int) ([]LedgerEntry, error) {
	query := entrySelect + c.where() + " ORDER BY " + orderBy
	args := c.args
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read operations: %w", err)
	}
	return entries, nil
}
