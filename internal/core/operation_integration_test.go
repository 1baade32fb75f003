package core_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"stockmaster/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperations_ReceiptTouchesOnlyDestination(t *testing.T) {
	f := setupStockTestDB(t)

	entry, err := f.ops.CreateReceipt(f.ctx, core.MovementInput{
		ProductID:             f.laptop.ID,
		DestinationLocationID: f.rackA.ID,
		Quantity:              qty(10),
		UnitCost:              qty(800),
		ContactName:           "Acme Supplies",
		CreatedBy:             f.actor,
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, entry.Status)
	assert.Equal(t, "WH/IN/00001", entry.DocumentNumber)
	assert.True(t, entry.TotalValue.Equal(qty(8000)))
	assert.Equal(t, "Rack A", entry.DestinationName)

	// DRAFT has no stock effect.
	f.requireLevel(t, f.laptop, f.rackA, 0, 0)

	res, err := f.ops.Validate(f.ctx, entry.ID, f.actor, core.ValidateOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusValidated, res.Entry.Status)
	require.NotNil(t, res.Entry.CompletedDate)
	require.NotNil(t, res.Entry.ValidatedBy)
	assert.Equal(t, f.actor, *res.Entry.ValidatedBy)
	require.Len(t, res.StockLevels, 1)

	f.requireLevel(t, f.laptop, f.rackA, 10, 0)
	f.requireLevel(t, f.laptop, f.rackB, 0, 0)
	f.requireLevel(t, f.laptop, f.mainWarehouse, 0, 0)
}

func TestOperations_LaptopDeliveryCannotBeValidatedTwice(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.laptop, f.rackA, 10)

	entry := f.delivery(t, f.laptop, f.rackA, 3)
	assert.Equal(t, "WH/OUT/00001", entry.DocumentNumber)

	_, err := f.ops.Validate(f.ctx, entry.ID, f.actor, core.ValidateOptions{})
	require.NoError(t, err)
	f.requireLevel(t, f.laptop, f.rackA, 7, 0)

	_, err = f.ops.Validate(f.ctx, entry.ID, f.actor, core.ValidateOptions{})
	var stateErr *core.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, string(core.StatusValidated), stateErr.Status)
	f.requireLevel(t, f.laptop, f.rackA, 7, 0)

	_, err = f.ops.Cancel(f.ctx, entry.ID, f.actor)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestOperations_DeliveryRespectsReservedStock(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.mouse, f.rackA, 50)

	_, err := f.reservations.CreateReservation(f.ctx, core.ReservationInput{
		ProductID:       f.mouse.ID,
		LocationID:      f.rackA.ID,
		Quantity:        qty(5),
		ReferenceNumber: "SO-2024-001",
		CreatedBy:       f.actor,
	})
	require.NoError(t, err)
	f.requireLevel(t, f.mouse, f.rackA, 50, 5)

	tooMany := f.delivery(t, f.mouse, f.rackA, 46)
	_, err = f.ops.Validate(f.ctx, tooMany.ID, f.actor, core.ValidateOptions{})
	var insufficient *core.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(qty(45)))
	assert.True(t, insufficient.Requested.Equal(qty(46)))
	f.requireLevel(t, f.mouse, f.rackA, 50, 5)

	stillDraft, err := f.ops.GetOperation(f.ctx, tooMany.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, stillDraft.Status)

	exact := f.delivery(t, f.mouse, f.rackA, 45)
	_, err = f.ops.Validate(f.ctx, exact.ID, f.actor, core.ValidateOptions{})
	require.NoError(t, err)
	f.requireLevel(t, f.mouse, f.rackA, 5, 5)
}

func TestOperations_ConcurrentDeliveriesNeverOversell(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.laptop, f.rackA, 10)

	first := f.delivery(t, f.laptop, f.rackA, 6)
	second := f.delivery(t, f.laptop, f.rackA, 6)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.ops.Validate(f.ctx, id, f.actor, core.ValidateOptions{})
		}(i, id)
	}
	close(start)
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected validation error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	f.requireLevel(t, f.laptop, f.rackA, 4, 0)
}

func TestOperations_TransferMovesBothSidesAtomically(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.laptop, f.rackA, 10)

	_, err := f.ops.CreateTransfer(f.ctx, core.MovementInput{
		ProductID:             f.laptop.ID,
		SourceLocationID:      f.rackA.ID,
		DestinationLocationID: f.rackA.ID,
		Quantity:              qty(1),
		CreatedBy:             f.actor,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	move, err := f.ops.CreateTransfer(f.ctx, core.MovementInput{
		ProductID:             f.laptop.ID,
		SourceLocationID:      f.rackA.ID,
		DestinationLocationID: f.rackB.ID,
		Quantity:              qty(4),
		CreatedBy:             f.actor,
	})
	require.NoError(t, err)
	assert.Equal(t, "WH/INT/00001", move.DocumentNumber)

	res, err := f.ops.Validate(f.ctx, move.ID, f.actor, core.ValidateOptions{})
	require.NoError(t, err)
	assert.Len(t, res.StockLevels, 2)
	f.requireLevel(t, f.laptop, f.rackA, 6, 0)
	f.requireLevel(t, f.laptop, f.rackB, 4, 0)

	tooBig, err := f.ops.CreateTransfer(f.ctx, core.MovementInput{
		ProductID:             f.laptop.ID,
		SourceLocationID:      f.rackA.ID,
		DestinationLocationID: f.rackB.ID,
		Quantity:              qty(7),
		CreatedBy:             f.actor,
	})
	require.NoError(t, err)
	_, err = f.ops.Validate(f.ctx, tooBig.ID, f.actor, core.ValidateOptions{})
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	f.requireLevel(t, f.laptop, f.rackA, 6, 0)
	f.requireLevel(t, f.laptop, f.rackB, 4, 0)
}

func TestOperations_OppositeTransfersDoNotDeadlock(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.mouse, f.rackA, 20)
	f.receive(t, f.mouse, f.rackB, 20)

	var ids []string
	for i := 0; i < 4; i++ {
		src, dst := f.rackA, f.rackB
		if i%2 == 1 {
			src, dst = f.rackB, f.rackA
		}
		e, err := f.ops.CreateTransfer(f.ctx, core.MovementInput{
			ProductID:             f.mouse.ID,
			SourceLocationID:      src.ID,
			DestinationLocationID: dst.ID,
			Quantity:              qty(3),
			CreatedBy:             f.actor,
		})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.ops.Validate(f.ctx, id, f.actor, core.ValidateOptions{})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	f.requireLevel(t, f.mouse, f.rackA, 20, 0)
	f.requireLevel(t, f.mouse, f.rackB, 20, 0)
}

func TestOperations_CancelDraft(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.laptop, f.rackA, 10)

	entry := f.delivery(t, f.laptop, f.rackA, 3)
	cancelled, err := f.ops.Cancel(f.ctx, entry.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Nil(t, cancelled.CompletedDate)
	f.requireLevel(t, f.laptop, f.rackA, 10, 0)

	_, err = f.ops.Validate(f.ctx, entry.ID, f.actor, core.ValidateOptions{})
	var stateErr *core.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, string(core.StatusCancelled), stateErr.Status)

	_, err = f.ops.Cancel(f.ctx, entry.ID, f.actor)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	f.requireLevel(t, f.laptop, f.rackA, 10, 0)
}

func TestOperations_NotFoundAndUnknownReferences(t *testing.T) {
	f := setupStockTestDB(t)

	_, err := f.ops.Validate(f.ctx, "missing", f.actor, core.ValidateOptions{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.ops.Cancel(f.ctx, "missing", f.actor)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.ops.CreateReceipt(f.ctx, core.MovementInput{
		ProductID:             "no-such-product",
		DestinationLocationID: f.rackA.ID,
		Quantity:              qty(1),
		CreatedBy:             f.actor,
	})
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Entity)

	_, err = f.ops.CreateDelivery(f.ctx, core.MovementInput{
		ProductID:        f.laptop.ID,
		SourceLocationID: "no-such-location",
		Quantity:         qty(1),
		CreatedBy:        f.actor,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	// A delivery from a location that never held the product fails the availability check.
	empty := f.delivery(t, f.cable, f.rackB, 1)
	_, err = f.ops.Validate(f.ctx, empty.ID, f.actor, core.ValidateOptions{})
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
}

func TestOperations_DocumentNumbers(t *testing.T) {
	f := setupStockTestDB(t)

	var numbers []string
	for i := 0; i < 3; i++ {
		e, err := f.ops.CreateReceipt(f.ctx, core.MovementInput{
			ProductID:             f.cable.ID,
			DestinationLocationID: f.rackB.ID,
			Quantity:              qty(1),
			CreatedBy:             f.actor,
		})
		require.NoError(t, err)
		numbers = append(numbers, e.DocumentNumber)
	}
	assert.Equal(t, []string{"WH/IN/00001", "WH/IN/00002", "WH/IN/00003"}, numbers)

	custom, err := f.ops.CreateReceipt(f.ctx, core.MovementInput{
		ProductID:             f.cable.ID,
		DestinationLocationID: f.rackB.ID,
		Quantity:              qty(1),
		DocumentNumber:        "PO-2024-006",
		CreatedBy:             f.actor,
	})
	require.NoError(t, err)
	assert.Equal(t, "PO-2024-006", custom.DocumentNumber)

	_, err = f.ops.CreateReceipt(f.ctx, core.MovementInput{
		ProductID:             f.cable.ID,
		DestinationLocationID: f.rackB.ID,
		Quantity:              qty(1),
		DocumentNumber:        "PO-2024-006",
		CreatedBy:             f.actor,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	// Generated numbers cannot be claimed ahead of the sequence.
	_, err = f.ops.CreateReceipt(f.ctx, core.MovementInput{
		ProductID:             f.cable.ID,
		DestinationLocationID: f.rackB.ID,
		Quantity:              qty(1),
		DocumentNumber:        "WH/IN/00004",
		CreatedBy:             f.actor,
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "document_number", verr.Field)

	next, err := f.ops.CreateReceipt(f.ctx, core.MovementInput{
		ProductID:             f.cable.ID,
		DestinationLocationID: f.rackB.ID,
		Quantity:              qty(1),
		CreatedBy:             f.actor,
	})
	require.NoError(t, err)
	assert.Equal(t, "WH/IN/00004", next.DocumentNumber)
}

func TestOperations_ListingFilters(t *testing.T) {
	f := setupStockTestDB(t)
	f.receive(t, f.laptop, f.rackA, 10)
	f.receive(t, f.mouse, f.rackB, 30)
	draft := f.delivery(t, f.laptop, f.rackA, 2)

	drafts, err := f.ops.GetOperations(f.ctx, core.OperationFilter{Status: core.StatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)

	atRackA, err := f.ops.GetOperations(f.ctx, core.OperationFilter{LocationID: f.rackA.ID})
	require.NoError(t, err)
	assert.Len(t, atRackA, 2)

	receipts, err := f.ops.GetOperations(f.ctx, core.OperationFilter{DocumentType: core.DocumentReceipt, ProductID: f.mouse.ID})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "MOUSE-001", receipts[0].ProductSKU)

	future := time.Now().Add(time.Hour)
	none, err := f.ops.GetOperations(f.ctx, core.OperationFilter{From: &future})
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := f.ops.GetOperations(f.ctx, core.OperationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	history, err := f.ops.GetStockLedger(f.ctx, core.OperationFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
	for _, e := range history {
		assert.Equal(t, core.StatusValidated, e.Status)
	}

	levels, err := f.stock.List(f.ctx, core.StockLevelFilter{LocationType: core.LocationRack, InStockOnly: true})
	require.NoError(t, err)
	assert.Len(t, levels, 2)
}
