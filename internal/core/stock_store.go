package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLevelStore owns every mutation of the stock_levels aggregate.
//
// Mutating methods take the caller's transaction: the Operation Validator and the
// Reservation Manager apply them in the same atomic unit as their own status change.
// Rows are locked with SELECT ... FOR UPDATE, so writers of the same (product, location)
// pair are serialized by PostgreSQL until the enclosing transaction ends.
type StockLevelStore interface {
	// Get returns the current row, or nil when the product has never been stocked at the location.
	Get(ctx context.Context, q pgxQuerier, productID, locationID string) (*StockLevel, error)
	// LockTx is Get with a row lock held until tx ends. Returns nil when the row is absent.
	LockTx(ctx context.Context, tx pgx.Tx, productID, locationID string) (*StockLevel, error)
	// UpsertOnHandDeltaTx creates the row with zero quantities if absent, then applies delta to on-hand.
	// Fails with NegativeStockError if on-hand would drop below zero or below the reserved quantity.
	UpsertOnHandDeltaTx(ctx context.Context, tx pgx.Tx, productID, locationID string, delta decimal.Decimal) (*StockLevel, error)
	// AdjustReservedTx applies delta to the reserved quantity of an existing row.
	// Fails with OverReservationError if reserved would leave [0, on-hand].
	AdjustReservedTx(ctx context.Context, tx pgx.Tx, productID, locationID string, delta decimal.Decimal) (*StockLevel, error)
	// List returns stock levels joined with product and location names.
	List(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error)
}

type stockLevelStore struct {
	pool *pgxpool.Pool
}

func NewStockLevelStore(pool *pgxpool.Pool) StockLevelStore {
	return &stockLevelStore{pool: pool}
}

const stockLevelColumns = `product_id, location_id, on_hand_quantity, reserved_quantity, available_quantity, updated_at`

func scanStockLevel(row pgx.Row) (*StockLevel, error) {
	var sl StockLevel
	if err := row.Scan(&sl.ProductID, &sl.LocationID, &sl.OnHand, &sl.Reserved, &sl.Available, &sl.UpdatedAt); err != nil {
		return nil, err
	}
	return &sl, nil
}

func (s *stockLevelStore) Get(ctx context.Context, q pgxQuerier, productID, locationID string) (*StockLevel, error) {
	sl, err := scanStockLevel(q.QueryRow(ctx,
		`SELECT `+stockLevelColumns+` FROM stock_levels WHERE product_id = $1 AND location_id = $2`,
		productID, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stock level: %w", err)
	}
	return sl, nil
}

func (s *stockLevelStore) LockTx(ctx context.Context, tx pgx.Tx, productID, locationID string) (*StockLevel, error) {
	sl, err := scanStockLevel(tx.QueryRow(ctx,
		`SELECT `+stockLevelColumns+` FROM stock_levels WHERE product_id = $1 AND location_id = $2 FOR UPDATE`,
		productID, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBError("lock stock level", err)
	}
	return sl, nil
}

func (s *stockLevelStore) UpsertOnHandDeltaTx(ctx context.Context, tx pgx.Tx, productID, locationID string, delta decimal.Decimal) (*StockLevel, error) {
	// Lazy creation. A concurrent creator of the same row makes this a no-op.
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_levels (product_id, location_id, on_hand_quantity, reserved_quantity)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (product_id, location_id) DO NOTHING
	`, productID, locationID); err != nil {
		return nil, wrapDBError("create stock level", err)
	}

	current, err := s.LockTx(ctx, tx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("stock level for product %s at location %s vanished after insert", productID, locationID)
	}

	next, err := current.withOnHandDelta(delta)
	if err != nil {
		return nil, err
	}
	return s.writeTx(ctx, tx, next)
}

func (s *stockLevelStore) AdjustReservedTx(ctx context.Context, tx pgx.Tx, productID, locationID string, delta decimal.Decimal) (*StockLevel, error) {
	current, err := s.LockTx(ctx, tx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &OverReservationError{
			ProductID:  productID,
			LocationID: locationID,
			OnHand:     decimal.Zero,
			Reserved:   decimal.Zero,
			Delta:      delta,
		}
	}

	next, err := current.withReservedDelta(delta)
	if err != nil {
		return nil, err
	}
	return s.writeTx(ctx, tx, next)
}

// writeTx persists on-hand and reserved of a row already locked by tx.
// available_quantity is a generated column, so it is read back rather than written.
func (s *stockLevelStore) writeTx(ctx context.Context, tx pgx.Tx, sl StockLevel) (*StockLevel, error) {
	updated, err := scanStockLevel(tx.QueryRow(ctx, `
		UPDATE stock_levels
		SET on_hand_quantity = $3, reserved_quantity = $4, updated_at = NOW()
		WHERE product_id = $1 AND location_id = $2
		RETURNING `+stockLevelColumns,
		sl.ProductID, sl.LocationID, sl.OnHand, sl.Reserved))
	if err != nil {
		return nil, wrapDBError("update stock level", err)
	}
	return updated, nil
}

func (s *stockLevelStore) List(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error) {
	var c conditions
	if filter.ProductID != "" {
		c.add("sl.product_id = %s", filter.ProductID)
	}
	if filter.LocationID != "" {
		c.add("sl.location_id = %s", filter.LocationID)
	}
	if filter.LocationType != "" {
		c.add("l.type = %s", string(filter.LocationType))
	}
	if filter.InStockOnly {
		c.addRaw("sl.on_hand_quantity > 0")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sl.product_id, p.sku_code, p.name, sl.location_id, l.name, l.type,
		       sl.on_hand_quantity, sl.reserved_quantity, sl.available_quantity, sl.updated_at
		FROM stock_levels sl
		JOIN products p  ON p.id = sl.product_id
		JOIN locations l ON l.id = sl.location_id`+c.where()+`
		ORDER BY p.sku_code, l.name
	`, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(
			&sl.ProductID, &sl.ProductSKU, &sl.ProductName,
			&sl.LocationID, &sl.LocationName, &sl.LocationType,
			&sl.OnHand, &sl.Reserved, &sl.Available, &sl.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stock levels: %w", err)
	}
	return levels, nil
}
