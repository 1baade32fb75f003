// migrate applies the embedded SQL migrations to DATABASE_URL.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"log"

	"stockmaster/internal/config"
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
	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{MaxConns: 1})
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	log.Println("[CONNECT] success")

	applied, err := db.Migrate(ctx, pool)
	for _, v := range applied {
		log.Printf("[APPLY] %s", v)
	}
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	if len(applied) == 0 {
		log.Println("[SKIP] schema is up to date")
	}
	log.Println("[DONE] All migrations processed.")
}
