// verify-db checks that the schema is fully migrated and that every stock level agrees
// with the ledger history and reservations behind it. Exits non-zero on any finding.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"stockmaster/internal/config"
	"stockmaster/internal/core"
	"stockmaster/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	pending, err := db.PendingMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("[SCHEMA] %v", err)
	}
	if len(pending) > 0 {
		log.Printf("[SCHEMA] pending migrations: %s", strings.Join(pending, ", "))
		pool.Close()
		os.Exit(1)
	}
	log.Println("[SCHEMA] up to date")

	report, err := core.NewReconciler(pool).Reconcile(ctx)
	if err != nil {
		log.Fatalf("[RECONCILE] %v", err)
	}
	for _, d := range report {
		log.Printf("[MISMATCH] product=%s location=%s on_hand=%s (expected %s) reserved=%s (expected %s): %s",
			d.ProductID, d.LocationID,
			d.RecordedOnHand, d.ExpectedOnHand,
			d.RecordedReserved, d.ExpectedReserved,
			strings.Join(d.Problems, "; "))
	}
	if len(report) > 0 {
		pool.Close()
		os.Exit(1)
	}
	log.Println("[DONE] stock levels agree with ledger history.")
}
