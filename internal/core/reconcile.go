package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Discrepancy is a stock level that disagrees with the ledger and reservations, or that
// breaks an aggregate invariant on its own.
type Discrepancy struct {
	ProductID        string          `json:"product_id"`
	LocationID       string          `json:"location_id"`
	RecordedOnHand   decimal.Decimal `json:"recorded_on_hand"`
	ExpectedOnHand   decimal.Decimal `json:"expected_on_hand"`
	RecordedReserved decimal.Decimal `json:"recorded_reserved"`
	ExpectedReserved decimal.Decimal `json:"expected_reserved"`
	Problems         []string        `json:"problems"`
}

// Reconciler audits stock_levels against the history that produced it: on-hand must equal the
// net of VALIDATED ledger entries and reserved must equal the sum of ACTIVE reservations.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]Discrepancy, error)
}

type reconciler struct {
	pool *pgxpool.Pool
}

func NewReconciler(pool *pgxpool.Pool) Reconciler {
	return &reconciler{pool: pool}
}

type stockKey struct {
	ProductID  string
	LocationID string
}

func (r *reconciler) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	// One snapshot for all three reads.
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+stockLevelColumns+` FROM stock_levels`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	var recorded []StockLevel
	for rows.Next() {
		sl, err := scanStockLevel(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		recorded = append(recorded, *sl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stock levels: %w", err)
	}

	onHand, err := sumByStockKey(ctx, tx, `
		SELECT product_id, location_id, SUM(delta)
		FROM (
			SELECT product_id, destination_location_id AS location_id, quantity AS delta
			FROM stock_ledger
			WHERE status = 'VALIDATED' AND destination_location_id IS NOT NULL
			UNION ALL
			SELECT product_id, source_location_id AS location_id, -quantity AS delta
			FROM stock_ledger
			WHERE status = 'VALIDATED' AND source_location_id IS NOT NULL
		) movements
		GROUP BY product_id, location_id
	`)
	if err != nil {
		return nil, err
	}
	reserved, err := sumByStockKey(ctx, tx, `
		SELECT product_id, location_id, SUM(quantity)
		FROM stock_reservations
		WHERE status = 'ACTIVE'
		GROUP BY product_id, location_id
	`)
	if err != nil {
		return nil, err
	}
	return compareStock(recorded, onHand, reserved), nil
}

func sumByStockKey(ctx context.Context, q pgxRowQuerier, query string) (map[stockKey]decimal.Decimal, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query expected quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[stockKey]decimal.Decimal)
	for rows.Next() {
		var k stockKey
		var sum decimal.Decimal
		if err := rows.Scan(&k.ProductID, &k.LocationID, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan expected quantity: %w", err)
		}
		out[k] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expected quantities: %w", err)
	}
	return out, nil
}

// compareStock reports every recorded row that breaks an invariant or differs from the expected
// quantities, plus expected non-zero quantities that have no row at all. Sorted by product, location.
func compareStock(recorded []StockLevel, expectedOnHand, expectedReserved map[stockKey]decimal.Decimal) []Discrepancy {
	var out []Discrepancy
	seen := make(map[stockKey]bool, len(recorded))

	for _, sl := range recorded {
		k := stockKey{ProductID: sl.ProductID, LocationID: sl.LocationID}
		seen[k] = true
		d := Discrepancy{
			ProductID:        sl.ProductID,
			LocationID:       sl.LocationID,
			RecordedOnHand:   sl.OnHand,
			ExpectedOnHand:   expectedOnHand[k],
			RecordedReserved: sl.Reserved,
			ExpectedReserved: expectedReserved[k],
		}
		d.Problems = append(d.Problems, sl.invariantViolations()...)
		if !d.RecordedOnHand.Equal(d.ExpectedOnHand) {
			d.Problems = append(d.Problems, fmt.Sprintf("on-hand %s differs from validated ledger net %s", d.RecordedOnHand, d.ExpectedOnHand))
		}
		if !d.RecordedReserved.Equal(d.ExpectedReserved) {
			d.Problems = append(d.Problems, fmt.Sprintf("reserved %s differs from active reservations %s", d.RecordedReserved, d.ExpectedReserved))
		}
		if len(d.Problems) > 0 {
			out = append(out, d)
		}
	}

	missing := func(m map[stockKey]decimal.Decimal) {
		for k, v := range m {
			if seen[k] || v.IsZero() {
				continue
			}
			seen[k] = true
			out = append(out, Discrepancy{
				ProductID:        k.ProductID,
				LocationID:       k.LocationID,
				ExpectedOnHand:   expectedOnHand[k],
				ExpectedReserved: expectedReserved[k],
				Problems:         []string{"no stock level row for quantities recorded in history"},
			})
		}
	}
	missing(expectedOnHand)
	missing(expectedReserved)

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out
}
