package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"stockmaster/internal/app"
	"stockmaster/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	app.ApplicationService
	filter        core.OperationFilter
	validatedWith string
	discrepancies []core.Discrepancy
}

func (f *fakeApp) GetStockLevels(context.Context, core.StockLevelFilter) (*app.StockResult, error) {
	return &app.StockResult{Levels: []core.StockLevel{{
		ProductSKU:   "LAPTOP-001",
		LocationName: "Rack A",
		OnHand:       decimal.NewFromInt(10),
		Reserved:     decimal.NewFromInt(3),
		Available:    decimal.NewFromInt(7),
	}}}, nil
}

func (f *fakeApp) ListOperations(_ context.Context, filter core.OperationFilter) (*app.OperationListResult, error) {
	f.filter = filter
	return &app.OperationListResult{}, nil
}

func (f *fakeApp) ValidateOperation(_ context.Context, _ app.Actor, id, reservationID string) (*core.ValidationResult, error) {
	f.validatedWith = reservationID
	if id == "missing" {
		return nil, &core.NotFoundError{Entity: "operation", ID: id}
	}
	return &core.ValidationResult{Entry: &core.LedgerEntry{ID: id, DocumentNumber: "WH/OUT/00001"}}, nil
}

func (f *fakeApp) Reconcile(context.Context) (*app.ReconcileResult, error) {
	return &app.ReconcileResult{Discrepancies: f.discrepancies}, nil
}

var cliActor = app.Actor{UserID: "cli", Role: core.RoleAdmin}

func TestRun_Stock(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), &fakeApp{}, cliActor, []string{"stock"}, &out))
	assert.Contains(t, out.String(), "LAPTOP-001")
	assert.Contains(t, out.String(), "Rack A")
}

func TestRun_OperationsStatusFilter(t *testing.T) {
	svc := &fakeApp{}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), svc, cliActor, []string{"ops", "draft"}, &out))
	assert.Equal(t, core.StatusDraft, svc.filter.Status)

	assert.Error(t, Run(context.Background(), svc, cliActor, []string{"operations", "done"}, &out))
}

func TestRun_Validate(t *testing.T) {
	svc := &fakeApp{}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), svc, cliActor, []string{"validate", "entry-1", "res-1"}, &out))
	assert.Equal(t, "res-1", svc.validatedWith)
	assert.Contains(t, out.String(), "WH/OUT/00001 validated.")

	err := Run(context.Background(), svc, cliActor, []string{"validate", "missing"}, &out)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Error(t, Run(context.Background(), svc, cliActor, []string{"validate"}, &out))
}

func TestRun_ReconcileFailsOnDiscrepancies(t *testing.T) {
	svc := &fakeApp{}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), svc, cliActor, []string{"reconcile"}, &out))

	svc.discrepancies = []core.Discrepancy{{ProductID: "p", LocationID: "l", Problems: []string{"on-hand quantity is negative"}}}
	out.Reset()
	err := Run(context.Background(), svc, cliActor, []string{"reconcile"}, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "on-hand quantity is negative")
}

func TestRun_UnknownCommand(t *testing.T) {
	err := Run(context.Background(), &fakeApp{}, cliActor, []string{"balances"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "unknown command")
}
