package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockmaster/internal/app"
	"stockmaster/internal/core"
	"stockmaster/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// fakeApp embeds the interface so each test overrides only what it calls.
type fakeApp struct {
	app.ApplicationService

	pingErr          error
	validateErr      error
	validatedID      string
	validatedResv    string
	validateCalls    int
	createdOperation *app.CreateOperationRequest
	createdBy        app.Actor
	listFilter       core.OperationFilter
}

func (f *fakeApp) Ping(context.Context) error { return f.pingErr }

func (f *fakeApp) AuthenticateUser(_ context.Context, email, password string) (*app.UserSession, error) {
	if email == "manager@stockmaster.com" && password == "manager123" {
		return &app.UserSession{UserID: "user-manager", Email: email, Role: core.RoleManager}, nil
	}
	return nil, core.ErrInvalidCredentials
}

func (f *fakeApp) GetUser(_ context.Context, id string) (*core.User, error) {
	return &core.User{ID: id, Email: "manager@stockmaster.com", Role: core.RoleManager}, nil
}

func (f *fakeApp) ValidateOperation(_ context.Context, _ app.Actor, id, reservationID string) (*core.ValidationResult, error) {
	f.validateCalls++
	f.validatedID, f.validatedResv = id, reservationID
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &core.ValidationResult{Entry: &core.LedgerEntry{ID: id, Status: core.StatusValidated}}, nil
}

func (f *fakeApp) CreateOperation(_ context.Context, a app.Actor, req app.CreateOperationRequest) (*app.OperationResult, error) {
	f.createdOperation, f.createdBy = &req, a
	return &app.OperationResult{Operation: &core.LedgerEntry{ID: "entry-1", DocumentType: req.DocumentType, Status: core.StatusDraft}}, nil
}

func (f *fakeApp) ListOperations(_ context.Context, filter core.OperationFilter) (*app.OperationListResult, error) {
	f.listFilter = filter
	return &app.OperationListResult{}, nil
}

func newTestHandler(svc app.ApplicationService) (http.Handler, *metrics.Metrics) {
	m := metrics.New()
	return NewHandler(svc, Options{JWTSecret: testSecret, TokenTTL: time.Hour, Metrics: m}), m
}

func bearer(t *testing.T, userID string, role core.Role) string {
	t.Helper()
	h := &Handler{jwtSecret: testSecret, tokenTTL: time.Hour}
	tok, err := h.signToken(userID, role, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	svc := &fakeApp{}
	h, _ := newTestHandler(svc)

	rec := do(h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	svc.pingErr = errors.New("connection refused")
	rec = do(h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth_LoginIssuesUsableToken(t *testing.T) {
	h, _ := newTestHandler(&fakeApp{})

	rec := do(h, http.MethodPost, "/api/auth/login", "", `{"email":"manager@stockmaster.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/auth/login", "", `{"email":"not-an-email","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be a valid email address", decodeError(t, rec).Details["email"])

	rec = do(h, http.MethodPost, "/api/auth/login", "", `{"email":"manager@stockmaster.com","password":"manager123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string    `json:"token"`
		Role  core.Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, core.RoleManager, login.Role)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, authCookie, rec.Result().Cookies()[0].Name)

	rec = do(h, http.MethodGet, "/api/auth/me", "Bearer "+login.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: authCookie, Value: login.Token})
	cookieRec := httptest.NewRecorder()
	h.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)
}

func TestAuth_RejectsMissingAndForgedTokens(t *testing.T) {
	h, _ := newTestHandler(&fakeApp{})

	rec := do(h, http.MethodGet, "/api/operations", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := &Handler{jwtSecret: "other-secret", tokenTTL: time.Hour}
	tok, err := forged.signToken("user-admin", core.RoleAdmin, time.Now())
	require.NoError(t, err)
	rec = do(h, http.MethodGet, "/api/operations", "Bearer "+tok, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := &Handler{jwtSecret: testSecret, tokenTTL: time.Minute}
	tok, err = expired.signToken("user-admin", core.RoleAdmin, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	rec = do(h, http.MethodGet, "/api/operations", "Bearer "+tok, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateOperation_RoleAndBody(t *testing.T) {
	svc := &fakeApp{}
	h, _ := newTestHandler(svc)

	rec := do(h, http.MethodPost, "/api/operations/entry-1/validate", bearer(t, "user-staff", core.RoleStaff), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	assert.Zero(t, svc.validateCalls)

	rec = do(h, http.MethodPost, "/api/operations/entry-1/validate", bearer(t, "user-manager", core.RoleManager), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "entry-1", svc.validatedID)
	assert.Empty(t, svc.validatedResv)

	rec = do(h, http.MethodPost, "/api/operations/entry-2/validate", bearer(t, "user-admin", core.RoleAdmin), `{"reservation_id":"res-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "res-1", svc.validatedResv)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient stock", &core.InsufficientStockError{ProductID: "p", LocationID: "l", Requested: decimal.NewFromInt(46), Available: decimal.NewFromInt(45)}, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
		{"already validated", &core.InvalidStateError{Entity: "operation", ID: "entry-1", Status: "VALIDATED"}, http.StatusConflict, "INVALID_STATE"},
		{"not found", &core.NotFoundError{Entity: "operation", ID: "entry-1"}, http.StatusNotFound, "NOT_FOUND"},
		{"bad input", &core.ValidationError{Field: "quantity", Message: "must be positive"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &core.ConcurrencyConflictError{Operation: "validate", Err: errors.New("deadlock detected")}, http.StatusConflict, "CONCURRENCY_CONFLICT"},
		{"over reservation", &core.OverReservationError{ProductID: "p", LocationID: "l"}, http.StatusUnprocessableEntity, "OVER_RESERVATION"},
		{"forbidden", app.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"infrastructure", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(&fakeApp{validateErr: tt.err})
			rec := do(h, http.MethodPost, "/api/operations/entry-1/validate", bearer(t, "user-admin", core.RoleAdmin), "")
			require.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}

	h, _ := newTestHandler(&fakeApp{validateErr: &core.InsufficientStockError{
		ProductID: "p", LocationID: "l", Requested: decimal.NewFromInt(46), Available: decimal.NewFromInt(45),
	}})
	rec := do(h, http.MethodPost, "/api/operations/entry-1/validate", bearer(t, "user-admin", core.RoleAdmin), "")
	details := decodeError(t, rec).Details
	assert.Equal(t, "45", details["available"])
	assert.Equal(t, "46", details["requested"])

	h, _ = newTestHandler(&fakeApp{validateErr: errors.New("pq: connection reset")})
	rec = do(h, http.MethodPost, "/api/operations/entry-1/validate", bearer(t, "user-admin", core.RoleAdmin), "")
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestCreateReceipt(t *testing.T) {
	svc := &fakeApp{}
	h, _ := newTestHandler(svc)
	auth := bearer(t, "user-staff", core.RoleStaff)

	rec := do(h, http.MethodPost, "/api/operations/receipt", auth, `{"quantity":"5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeError(t, rec).Details["product_id"])

	rec = do(h, http.MethodPost, "/api/operations/receipt", auth, `{"product_id":"p","quantity":"5","priority":"ASAP"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "priority")

	rec = do(h, http.MethodPost, "/api/operations/receipt", auth,
		`{"product_id":"p","destination_location_id":"rack-a","quantity":"10.5","document_number":"PO-2024-006"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.createdOperation)
	assert.Equal(t, core.DocumentReceipt, svc.createdOperation.DocumentType)
	assert.True(t, svc.createdOperation.Quantity.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, "user-staff", svc.createdBy.UserID)
	assert.Equal(t, core.RoleStaff, svc.createdBy.Role)
}

func TestListOperations_Filters(t *testing.T) {
	svc := &fakeApp{}
	h, _ := newTestHandler(svc)
	auth := bearer(t, "user-staff", core.RoleStaff)

	rec := do(h, http.MethodGet, "/api/operations?status=DONE", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/operations?from=yesterday", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/operations?status=DRAFT&document_type=DELIVERY&from=2024-01-01&limit=20", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusDraft, svc.listFilter.Status)
	assert.Equal(t, core.DocumentDelivery, svc.listFilter.DocumentType)
	require.NotNil(t, svc.listFilter.From)
	assert.Equal(t, 2024, svc.listFilter.From.Year())
	assert.Equal(t, 20, svc.listFilter.Limit)
}

func TestStockLedger_RequiresElevatedRole(t *testing.T) {
	h, _ := newTestHandler(&fakeApp{})
	rec := do(h, http.MethodGet, "/api/inventory/stock-ledger", bearer(t, "user-staff", core.RoleStaff), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodDelete, "/api/products/p-1", bearer(t, "user-manager", core.RoleManager), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(&fakeApp{})
	do(h, http.MethodGet, "/api/health", "", "")

	rec := do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/health"`)
}
