package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LowStockMonitor reports products whose total on-hand quantity across all locations
// is below their reorder level. It only reads.
type LowStockMonitor interface {
	GetLowStock(ctx context.Context) ([]LowStockItem, error)
}

type lowStockMonitor struct {
	pool *pgxpool.Pool
}

func NewLowStockMonitor(pool *pgxpool.Pool) LowStockMonitor {
	return &lowStockMonitor{pool: pool}
}

// productTotal is the on-hand sum of one monitored product.
type productTotal struct {
	ProductID    string
	SKUCode      string
	Name         string
	ReorderLevel decimal.NullDecimal
	OnHand       decimal.Decimal
}

func (m *lowStockMonitor) GetLowStock(ctx context.Context) ([]LowStockItem, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT p.id, p.sku_code, p.name, p.reorder_level,
		       COALESCE(SUM(sl.on_hand_quantity), 0) AS total_on_hand
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id
		WHERE p.reorder_level IS NOT NULL
		GROUP BY p.id, p.sku_code, p.name, p.reorder_level
		ORDER BY p.sku_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query product totals: %w", err)
	}
	defer rows.Close()

	var totals []productTotal
	for rows.Next() {
		var t productTotal
		if err := rows.Scan(&t.ProductID, &t.SKUCode, &t.Name, &t.ReorderLevel, &t.OnHand); err != nil {
			return nil, fmt.Errorf("failed to scan product total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product totals: %w", err)
	}
	return flagLowStock(totals), nil
}

// flagLowStock keeps the totals below their reorder level, with the shortfall filled in.
func flagLowStock(totals []productTotal) []LowStockItem {
	var items []LowStockItem
	for _, t := range totals {
		if !isLowStock(t.OnHand, t.ReorderLevel) {
			continue
		}
		items = append(items, LowStockItem{
			ProductID:    t.ProductID,
			SKUCode:      t.SKUCode,
			Name:         t.Name,
			ReorderLevel: t.ReorderLevel.Decimal,
			OnHand:       t.OnHand,
			Shortfall:    t.ReorderLevel.Decimal.Sub(t.OnHand),
		})
	}
	return items
}
