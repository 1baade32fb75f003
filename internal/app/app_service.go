package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockmaster/internal/core"
	"stockmaster/internal/events"
	"stockmaster/internal/metrics"

	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the application service.
type Deps struct {
	DB           Pinger
	Catalog      core.CatalogService
	Stock        core.StockLevelStore
	Operations   core.OperationService
	Reservations core.ReservationService
	LowStock     core.LowStockMonitor
	Reconciler   core.Reconciler
	Users        core.UserService
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
}

type appService struct {
	db           Pinger
	catalog      core.CatalogService
	stock        core.StockLevelStore
	operations   core.OperationService
	reservations core.ReservationService
	lowStock     core.LowStockMonitor
	reconciler   core.Reconciler
	users        core.UserService
	publisher    events.Publisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
// A nil Publisher drops events, a nil Metrics gets a private registry and a nil Logger is silent.
func NewAppService(d Deps) ApplicationService {
	s := &appService{
		db:           d.DB,
		catalog:      d.Catalog,
		stock:        d.Stock,
		operations:   d.Operations,
		reservations: d.Reservations,
		lowStock:     d.LowStock,
		reconciler:   d.Reconciler,
		users:        d.Users,
		publisher:    d.Publisher,
		metrics:      d.Metrics,
		logger:       d.Logger,
		now:          d.Now,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ValidationRetryHook returns a core.Options.OnValidationRetry callback that logs and counts retries.
func ValidationRetryHook(m *metrics.Metrics, logger *zap.Logger) func(err error, wait time.Duration) {
	return func(err error, wait time.Duration) {
		m.IncValidationRetry()
		logger.Warn("validation conflicted, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
}

// requireElevated rejects actors that are neither ADMIN nor MANAGER.
func requireElevated(actor Actor, action string) error {
	if !actor.Role.Elevated() {
		return fmt.Errorf("%s requires ADMIN or MANAGER role, have %q: %w", action, actor.Role, ErrForbidden)
	}
	return nil
}

func requireAdmin(actor Actor, action string) error {
	if actor.Role != core.RoleAdmin {
		return fmt.Errorf("%s requires ADMIN role, have %q: %w", action, actor.Role, ErrForbidden)
	}
	return nil
}

// outcome classifies err for the stock operation counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, core.ErrConcurrencyConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrForbidden),
		errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrInsufficientStock),
		errors.Is(err, core.ErrNegativeStock),
		errors.Is(err, core.ErrOverReservation):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func (s *appService) record(operation string, err error) {
	s.metrics.RecordOperation(operation, outcome(err))
	if outcome(err) == metrics.OutcomeError {
		s.logger.Error("stock operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

// publish sends events after the state change has committed. Failures are logged and counted, never returned.
func (s *appService) publish(ctx context.Context, evs ...events.Event) {
	err := s.publisher.Publish(ctx, evs...)
	for _, e := range evs {
		s.metrics.RecordEvent(e.Type, err)
	}
	if err != nil {
		s.logger.Warn("failed to publish events", zap.Int("count", len(evs)), zap.Error(err))
	}
}

// ── Identity ──────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, email, password string) (*UserSession, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &UserSession{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.FirstName + " " + u.LastName,
		Role:   u.Role,
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID string) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *appService) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database not configured")
	}
	return s.db.Ping(ctx)
}

// ── Operations ────────────────────────────────────────────────────────────────

func (s *appService) CreateOperation(ctx context.Context, actor Actor, req CreateOperationRequest) (*OperationResult, error) {
	entry, err := s.operations.Create(ctx, req.movementInput(actor.UserID))
	s.record("create_"+string(req.DocumentType), err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.MovementCreated, entry.ID, actor.UserID, entry))
	return &OperationResult{Operation: entry}, nil
}

func (s *appService) ValidateOperation(ctx context.Context, actor Actor, id, reservationID string) (*core.ValidationResult, error) {
	if err := requireElevated(actor, "validating an operation"); err != nil {
		s.record("validate", err)
		return nil, err
	}

	res, err := s.operations.Validate(ctx, id, actor.UserID, core.ValidateOptions{ReservationID: reservationID})
	s.record("validate", err)
	if err != nil {
		return nil, err
	}

	evs := []events.Event{events.New(events.MovementValidated, res.Entry.ID, actor.UserID, res)}
	if res.Reservation != nil {
		evs = append(evs, events.New(events.ReservationReleased, res.Reservation.ID, actor.UserID, res.Reservation))
	}
	s.publish(ctx, evs...)
	return res, nil
}

func (s *appService) CancelOperation(ctx context.Context, actor Actor, id string) (*OperationResult, error) {
	if err := requireElevated(actor, "cancelling an operation"); err != nil {
		s.record("cancel", err)
		return nil, err
	}

	entry, err := s.operations.Cancel(ctx, id, actor.UserID)
	s.record("cancel", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.MovementCancelled, entry.ID, actor.UserID, entry))
	return &OperationResult{Operation: entry}, nil
}

func (s *appService) GetOperation(ctx context.Context, id string) (*OperationResult, error) {
	entry, err := s.operations.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OperationResult{Operation: entry}, nil
}

func (s *appService) ListOperations(ctx context.Context, filter core.OperationFilter) (*OperationListResult, error) {
	entries, err := s.operations.GetOperations(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OperationListResult{Operations: entries}, nil
}

func (s *appService) GetStockLedger(ctx context.Context, actor Actor, filter core.OperationFilter) (*OperationListResult, error) {
	if err := requireElevated(actor, "reading the stock ledger"); err != nil {
		return nil, err
	}
	entries, err := s.operations.GetStockLedger(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OperationListResult{Operations: entries}, nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context, filter core.StockLevelFilter) (*StockResult, error) {
	levels, err := s.stock.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) GetLowStock(ctx context.Context) (*LowStockResult, error) {
	items, err := s.lowStock.GetLowStock(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetLowStock(len(items))
	return &LowStockResult{Items: items}, nil
}

func (s *appService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(report) > 0 {
		s.logger.Warn("stock levels disagree with ledger history", zap.Int("discrepancies", len(report)))
	}
	return &ReconcileResult{Discrepancies: report}, nil
}

// ── Reservations ──────────────────────────────────────────────────────────────

func (s *appService) CreateReservation(ctx context.Context, actor Actor, req CreateReservationRequest) (*ReservationResult, error) {
	r, err := s.reservations.CreateReservation(ctx, core.ReservationInput{
		ProductID:       req.ProductID,
		LocationID:      req.LocationID,
		Quantity:        req.Quantity,
		ReservationType: req.ReservationType,
		ReferenceNumber: req.ReferenceNumber,
		ReservedFor:     req.ReservedFor,
		Notes:           req.Notes,
		ExpiresAt:       req.ExpiresAt,
		CreatedBy:       actor.UserID,
	})
	s.record("reserve", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.ReservationCreated, r.ID, actor.UserID, r))
	return &ReservationResult{Reservation: r}, nil
}

func (s *appService) CancelReservation(ctx context.Context, actor Actor, id string) (*ReservationResult, error) {
	r, err := s.reservations.CancelReservation(ctx, id)
	s.record("cancel_reservation", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.ReservationReleased, r.ID, actor.UserID, r))
	return &ReservationResult{Reservation: r}, nil
}

func (s *appService) GetReservation(ctx context.Context, id string) (*ReservationResult, error) {
	r, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReservationResult{Reservation: r}, nil
}

func (s *appService) ListReservations(ctx context.Context, filter core.ReservationFilter) (*ReservationListResult, error) {
	rs, err := s.reservations.GetReservations(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ReservationListResult{Reservations: rs}, nil
}

// ExpireReservations reports the reservations it released even when others failed;
// the error then joins the individual failures.
func (s *appService) ExpireReservations(ctx context.Context) (*ExpireResult, error) {
	expired, err := s.reservations.ExpireDue(ctx, s.now())
	s.metrics.AddExpired(len(expired))

	if len(expired) > 0 {
		evs := make([]events.Event, 0, len(expired))
		for i := range expired {
			evs = append(evs, events.New(events.ReservationReleased, expired[i].ID, "", &expired[i]))
		}
		s.publish(ctx, evs...)
	}
	return &ExpireResult{Expired: expired}, err
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*core.Product, error) {
	if err := requireElevated(actor, "creating a product"); err != nil {
		return nil, err
	}
	return s.catalog.CreateProduct(ctx, core.ProductInput{
		SKUCode:      req.SKUCode,
		Name:         req.Name,
		Category:     req.Category,
		UOM:          req.UOM,
		ReorderLevel: req.ReorderLevel,
		UnitCost:     req.UnitCost,
		SellingPrice: req.SellingPrice,
	})
}

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.catalog.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	return s.catalog.GetProduct(ctx, id)
}

func (s *appService) DeleteProduct(ctx context.Context, actor Actor, id string) error {
	if err := requireAdmin(actor, "deleting a product"); err != nil {
		return err
	}
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id), zap.String("actor", actor.UserID))
	return nil
}

func (s *appService) CreateLocation(ctx context.Context, actor Actor, req CreateLocationRequest) (*core.Location, error) {
	if err := requireElevated(actor, "creating a location"); err != nil {
		return nil, err
	}
	return s.catalog.CreateLocation(ctx, core.LocationInput{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
	})
}

func (s *appService) ListLocations(ctx context.Context) (*LocationListResult, error) {
	locations, err := s.catalog.GetLocations(ctx)
	if err != nil {
		return nil, err
	}
	return &LocationListResult{Locations: locations}, nil
}

func (s *appService) GetLocation(ctx context.Context, id string) (*core.Location, error) {
	return s.catalog.GetLocation(ctx, id)
}
