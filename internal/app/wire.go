package app

import (
	"stockmaster/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewFromPool builds the core services on pool and wraps them in an ApplicationService.
// Service fields already set in d are kept. When opts has no retry hook, retries are logged and counted.
func NewFromPool(pool *pgxpool.Pool, opts core.Options, d Deps) ApplicationService {
	if opts.OnValidationRetry == nil && d.Metrics != nil && d.Logger != nil {
		opts.OnValidationRetry = ValidationRetryHook(d.Metrics, d.Logger)
	}

	stock := core.NewStockLevelStore(pool)
	reservations := core.NewReservationService(pool, stock, opts)

	d.DB = pool
	if d.Stock == nil {
		d.Stock = stock
	}
	if d.Catalog == nil {
		d.Catalog = core.NewCatalogService(pool)
	}
	if d.Reservations == nil {
		d.Reservations = reservations
	}
	if d.Operations == nil {
		d.Operations = core.NewOperationService(pool, stock, reservations, opts)
	}
	if d.LowStock == nil {
		d.LowStock = core.NewLowStockMonitor(pool)
	}
	if d.Reconciler == nil {
		d.Reconciler = core.NewReconciler(pool)
	}
	if d.Users == nil {
		d.Users = core.NewUserService(pool)
	}
	return NewAppService(d)
}
