// app runs one-shot stock commands against the database.
//
// Usage: go run ./cmd/app <command> [args]
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"stockmaster/internal/adapters/cli"
	"stockmaster/internal/app"
	"stockmaster/internal/config"
	"stockmaster/internal/core"
	"stockmaster/internal/db"
	"stockmaster/internal/logging"

	"github.com/joho/godotenv"
)

// cliActor is recorded as validated_by/cancelled_by for commands run from the terminal.
var cliActor = app.Actor{UserID: "cli", Role: core.RoleAdmin}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{})
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	svc := app.NewFromPool(pool, core.Options{
		LockTimeout:           cfg.Database.LockTimeout,
		MaxValidationAttempts: cfg.Validation.MaxAttempts,
		ReservationTTL:        cfg.Reservations.DefaultTTL,
	}, app.Deps{Logger: logger})

	if err := cli.Run(ctx, svc, cliActor, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		pool.Close()
		os.Exit(1)
	}
}
