package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"stockmaster/internal/app"
	"stockmaster/internal/core"
	"stockmaster/internal/metrics"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = time.Hour
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}

	elevated := RequireRole(core.RoleAdmin, core.RoleManager)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(Recoverer(h.logger))
	r.Use(Instrument(h.metrics))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Handle("/metrics", h.metrics.Handler())
	r.With(RequestBodyLimit(1<<16)).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Operations
		r.Post("/api/operations/receipt", h.createOperation(core.DocumentReceipt))
		r.Post("/api/operations/delivery", h.createOperation(core.DocumentDelivery))
		r.Post("/api/operations/transfer", h.createOperation(core.DocumentTransfer))
		r.Get("/api/operations", h.listOperations)
		r.Get("/api/operations/{id}", h.getOperation)
		r.With(elevated).Post("/api/operations/{id}/validate", h.validateOperation)
		r.With(elevated).Post("/api/operations/{id}/cancel", h.cancelOperation)
		r.With(elevated).Delete("/api/operations/{id}", h.cancelOperation)

		// Inventory
		r.Get("/api/inventory/stock-levels", h.stockLevels)
		r.Get("/api/inventory/low-stock", h.lowStock)
		r.With(elevated).Get("/api/inventory/stock-ledger", h.stockLedger)

		// Reservations
		r.Post("/api/reservations", h.createReservation)
		r.Get("/api/reservations", h.listReservations)
		r.Get("/api/reservations/{id}", h.getReservation)
		r.Post("/api/reservations/{id}/cancel", h.cancelReservation)

		// Catalog
		r.Get("/api/products", h.listProducts)
		r.With(elevated).Post("/api/products", h.createProduct)
		r.Get("/api/products/{id}", h.getProduct)
		r.With(RequireRole(core.RoleAdmin)).Delete("/api/products/{id}", h.deleteProduct)
		r.Get("/api/locations", h.listLocations)
		r.With(elevated).Post("/api/locations", h.createLocation)
		r.Get("/api/locations/{id}", h.getLocation)
	})

	h.router = r
	return r
}

// health reports liveness and whether the database answers a ping.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// ── Query helpers ─────────────────────────────────────────────────────────────

// parseTimeParam accepts RFC 3339 timestamps or plain dates. Returns nil when the parameter is absent.
func parseTimeParam(r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func parseLimit(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// operationFilter builds a filter from document_type, status, product_id, location_id, from, to and limit.
func operationFilter(w http.ResponseWriter, r *http.Request) (core.OperationFilter, bool) {
	q := r.URL.Query()
	f := core.OperationFilter{
		DocumentType: core.DocumentType(q.Get("document_type")),
		Status:       core.MovementStatus(q.Get("status")),
		ProductID:    q.Get("product_id"),
		LocationID:   q.Get("location_id"),
	}
	if f.DocumentType != "" && !f.DocumentType.Valid() {
		writeError(w, r, "document_type must be one of RECEIPT, DELIVERY, TRANSFER", "BAD_REQUEST", http.StatusBadRequest)
		return f, false
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, r, "status must be one of DRAFT, VALIDATED, CANCELLED", "BAD_REQUEST", http.StatusBadRequest)
		return f, false
	}
	var ok bool
	if f.From, ok = parseTimeParam(r, "from"); !ok {
		writeError(w, r, "from must be a date (YYYY-MM-DD) or RFC 3339 timestamp", "BAD_REQUEST", http.StatusBadRequest)
		return f, false
	}
	if f.To, ok = parseTimeParam(r, "to"); !ok {
		writeError(w, r, "to must be a date (YYYY-MM-DD) or RFC 3339 timestamp", "BAD_REQUEST", http.StatusBadRequest)
		return f, false
	}
	if f.Limit, ok = parseLimit(r); !ok {
		writeError(w, r, "limit must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
		return f, false
	}
	return f, true
}
