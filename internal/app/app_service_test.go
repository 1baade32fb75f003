package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stockmaster/internal/core"
	"stockmaster/internal/events"
	"stockmaster/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Fakes embed the core interfaces so each test only provides the methods it exercises.

type fakeOperations struct {
	core.OperationService
	created   []core.MovementInput
	validated int
	validate  func(id string, opts core.ValidateOptions) (*core.ValidationResult, error)
}

func (f *fakeOperations) Create(_ context.Context, in core.MovementInput) (*core.LedgerEntry, error) {
	f.created = append(f.created, in)
	return &core.LedgerEntry{ID: "entry-1", DocumentType: in.DocumentType, Status: core.StatusDraft, CreatedBy: in.CreatedBy}, nil
}

func (f *fakeOperations) Validate(_ context.Context, id, _ string, opts core.ValidateOptions) (*core.ValidationResult, error) {
	f.validated++
	return f.validate(id, opts)
}

type fakeReservations struct {
	core.ReservationService
	expire func(now time.Time) ([]core.StockReservation, error)
}

func (f *fakeReservations) ExpireDue(_ context.Context, now time.Time) ([]core.StockReservation, error) {
	return f.expire(now)
}

type fakeCatalog struct {
	core.CatalogService
	deleted []string
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.events = append(p.events, evs...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var (
	manager = Actor{UserID: "user-manager", Role: core.RoleManager}
	staff   = Actor{UserID: "user-staff", Role: core.RoleStaff}
	admin   = Actor{UserID: "user-admin", Role: core.RoleAdmin}
)

func newTestService(d Deps) (*appService, *recordingPublisher, *metrics.Metrics) {
	pub := &recordingPublisher{}
	m := metrics.New()
	if d.Publisher == nil {
		d.Publisher = pub
	}
	d.Metrics = m
	return NewAppService(d).(*appService), pub, m
}

func TestValidateOperation_RequiresElevatedRole(t *testing.T) {
	ops := &fakeOperations{}
	svc, pub, m := newTestService(Deps{Operations: ops})

	_, err := svc.ValidateOperation(context.Background(), staff, "entry-1", "")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, ops.validated)
	assert.Empty(t, pub.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockOperations.WithLabelValues("validate", metrics.OutcomeRejected)))

	_, err = svc.CancelOperation(context.Background(), staff, "entry-1")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetStockLedger(context.Background(), staff, core.OperationFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestValidateOperation_PublishesAfterSuccess(t *testing.T) {
	reservationID := "res-1"
	ops := &fakeOperations{validate: func(id string, opts core.ValidateOptions) (*core.ValidationResult, error) {
		assert.Equal(t, reservationID, opts.ReservationID)
		return &core.ValidationResult{
			Entry:       &core.LedgerEntry{ID: id, Status: core.StatusValidated},
			Reservation: &core.StockReservation{ID: opts.ReservationID, Status: core.ReservationFulfilled},
		}, nil
	}}
	svc, pub, m := newTestService(Deps{Operations: ops})

	res, err := svc.ValidateOperation(context.Background(), manager, "entry-1", reservationID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusValidated, res.Entry.Status)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.MovementValidated, pub.events[0].Type)
	assert.Equal(t, "entry-1", pub.events[0].Subject)
	assert.Equal(t, manager.UserID, pub.events[0].ActorID)
	assert.Equal(t, events.ReservationReleased, pub.events[1].Type)
	assert.Equal(t, reservationID, pub.events[1].Subject)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockOperations.WithLabelValues("validate", metrics.OutcomeSuccess)))
}

func TestValidateOperation_FailuresPublishNothing(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"insufficient stock", &core.InsufficientStockError{ProductID: "p", LocationID: "l"}, metrics.OutcomeRejected},
		{"already validated", &core.InvalidStateError{Entity: "operation", ID: "entry-1"}, metrics.OutcomeRejected},
		{"conflict", &core.ConcurrencyConflictError{Operation: "validate", Err: errors.New("deadlock")}, metrics.OutcomeConflict},
		{"database down", errors.New("connection reset"), metrics.OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := &fakeOperations{validate: func(string, core.ValidateOptions) (*core.ValidationResult, error) {
				return nil, tt.err
			}}
			svc, pub, m := newTestService(Deps{Operations: ops})

			_, err := svc.ValidateOperation(context.Background(), admin, "entry-1", "")
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, pub.events)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.StockOperations.WithLabelValues("validate", tt.outcome)))
		})
	}
}

func TestCreateOperation_StampsActorAndPublishes(t *testing.T) {
	ops := &fakeOperations{}
	svc, pub, _ := newTestService(Deps{Operations: ops})

	res, err := svc.CreateOperation(context.Background(), staff, CreateOperationRequest{
		DocumentType:     core.DocumentDelivery,
		ProductID:        "p",
		SourceLocationID: "l",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, res.Operation.Status)
	require.Len(t, ops.created, 1)
	assert.Equal(t, staff.UserID, ops.created[0].CreatedBy)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.MovementCreated, pub.events[0].Type)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ops := &fakeOperations{}
	pub := &recordingPublisher{err: events.ErrPublisherUnavailable}
	svc, _, m := newTestService(Deps{Operations: ops, Publisher: pub})

	_, err := svc.CreateOperation(context.Background(), staff, CreateOperationRequest{DocumentType: core.DocumentReceipt})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(events.MovementCreated, "failed")))
}

func TestDeleteProduct_AdminOnly(t *testing.T) {
	catalog := &fakeCatalog{}
	svc, _, _ := newTestService(Deps{Catalog: catalog})

	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), manager, "p-1"), ErrForbidden)
	assert.Empty(t, catalog.deleted)

	require.NoError(t, svc.DeleteProduct(context.Background(), admin, "p-1"))
	assert.Equal(t, []string{"p-1"}, catalog.deleted)

	_, err := svc.CreateProduct(context.Background(), staff, CreateProductRequest{SKUCode: "X"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateLocation(context.Background(), staff, CreateLocationRequest{Name: "Dock"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExpireReservations_ReportsPartialProgress(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweepErr := errors.New("reservation res-2: lock timeout")
	reservations := &fakeReservations{expire: func(at time.Time) ([]core.StockReservation, error) {
		assert.Equal(t, now, at)
		return []core.StockReservation{{ID: "res-1", Status: core.ReservationExpired}}, sweepErr
	}}
	svc, pub, m := newTestService(Deps{Reservations: reservations, Now: func() time.Time { return now }})

	res, err := svc.ExpireReservations(context.Background())
	assert.ErrorIs(t, err, sweepErr)
	require.NotNil(t, res)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReservationsExpired))
	require.Len(t, pub.events, 1)
	assert.Equal(t, "res-1", pub.events[0].Subject)
}

type countingApp struct {
	ApplicationService
	sweeps atomic.Int32
}

func (c *countingApp) ExpireReservations(context.Context) (*ExpireResult, error) {
	c.sweeps.Add(1)
	return &ExpireResult{}, nil
}

func TestReservationSweeper_RunsUntilCancelled(t *testing.T) {
	svc := &countingApp{}
	ctx, cancel := context.WithCancel(context.Background())

	done := NewReservationSweeper(svc, 5*time.Millisecond, zap.NewNop()).Start(ctx)
	require.Eventually(t, func() bool { return svc.sweeps.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
