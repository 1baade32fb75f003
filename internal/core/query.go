package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx (for Query).
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// conditions accumulates optional WHERE clauses with positional arguments.
type conditions struct {
	clauses []string
	args    []any
}

// add appends a clause; every %s in clause is replaced by the placeholder of v.
func (c *conditions) add(clause string, v any) {
	c.args = append(c.args, v)
	placeholder := fmt.Sprintf("$%d", len(c.args))
	c.clauses = append(c.clauses, strings.ReplaceAll(clause, "%s", placeholder))
}

// addRaw appends a clause without an argument.
func (c *conditions) addRaw(clause string) {
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// setLockTimeout bounds how long tx waits for row locks. Exceeding it fails with SQLSTATE 55P03,
// which wrapDBError reports as a ConcurrencyConflictError.
func setLockTimeout(ctx context.Context, tx pgx.Tx, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", fmt.Sprintf("%dms", d.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}
