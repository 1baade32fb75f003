package db_test

import (
	"context"
	"os"
	"testing"

	"stockmaster/internal/db"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_RejectsEmptyURL(t *testing.T) {
	_, err := db.NewPool(context.Background(), "", db.PoolOptions{})
	assert.Error(t, err)

	_, err = db.NewPool(context.Background(), "://not a url", db.PoolOptions{})
	assert.Error(t, err)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	_ = godotenv.Load("../../.env")
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, db.PoolOptions{MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	applied, err := db.Migrate(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, applied, "second run applies nothing")

	pending, err := db.PendingMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
