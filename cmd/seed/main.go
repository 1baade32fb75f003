// seed loads the reference data set: users, locations, products, validated receipts that
// stock them, one active reservation and a few DRAFT operations. Stock enters only through
// validated ledger entries, so the result passes verify-db.
//
// Usage: go run ./cmd/seed [-reset]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"stockmaster/internal/config"
	"stockmaster/internal/core"
	"stockmaster/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const seedActor = "seed"

type seeder struct {
	ctx          context.Context
	catalog      core.CatalogService
	users        core.UserService
	ops          core.OperationService
	reservations core.ReservationService
}

func main() {
	reset := flag.Bool("reset", false, "truncate all stock tables before seeding")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	if *reset {
		log.Println("Clearing stock data...")
		if _, err := pool.Exec(ctx, `
			TRUNCATE TABLE stock_reservations, stock_ledger, stock_levels, document_sequences,
			               products, locations, users CASCADE
		`); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
	}

	s := newSeeder(ctx, pool, cfg.Database.LockTimeout)
	if _, err := s.catalog.GetProductBySKU(ctx, "LAPTOP-001"); err == nil {
		log.Println("Reference data already present; run with -reset to reload.")
		return
	} else if !errors.Is(err, core.ErrNotFound) {
		log.Fatalf("Failed to check existing data: %v", err)
	}

	if err := s.run(); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	log.Println("Seed complete.")
	log.Println("  admin@stockmaster.com / manager@stockmaster.com / staff@stockmaster.com, password: password123")
}

func newSeeder(ctx context.Context, pool *pgxpool.Pool, lockTimeout time.Duration) *seeder {
	opts := core.Options{LockTimeout: lockTimeout}
	stock := core.NewStockLevelStore(pool)
	reservations := core.NewReservationService(pool, stock, opts)
	return &seeder{
		ctx:          ctx,
		catalog:      core.NewCatalogService(pool),
		users:        core.NewUserService(pool),
		ops:          core.NewOperationService(pool, stock, reservations, opts),
		reservations: reservations,
	}
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func (s *seeder) run() error {
	log.Println("Creating users...")
	for _, u := range []core.UserInput{
		{Email: "admin@stockmaster.com", FirstName: "Admin", LastName: "User", Role: core.RoleAdmin},
		{Email: "manager@stockmaster.com", FirstName: "Inventory", LastName: "Manager", Role: core.RoleManager},
		{Email: "staff@stockmaster.com", FirstName: "Warehouse", LastName: "Staff", Role: core.RoleStaff},
	} {
		u.Password = "password123"
		if _, err := s.users.CreateUser(s.ctx, u); err != nil {
			return err
		}
	}

	log.Println("Creating locations...")
	locs := map[string]*core.Location{}
	for _, in := range []core.LocationInput{
		{Name: "Main Warehouse", Type: core.LocationWarehouse, Description: "Primary storage facility"},
		{Name: "Rack A", Type: core.LocationRack, Description: "Electronics section"},
		{Name: "Rack B", Type: core.LocationRack, Description: "Office supplies section"},
		{Name: "Supplier Location", Type: core.LocationSupplier, Description: "Virtual location for incoming stock"},
		{Name: "Customer Location", Type: core.LocationCustomer, Description: "Virtual location for outgoing stock"},
	} {
		l, err := s.catalog.CreateLocation(s.ctx, in)
		if err != nil {
			return err
		}
		locs[l.Name] = l
	}

	log.Println("Creating products...")
	prods := map[string]*core.Product{}
	for _, in := range []core.ProductInput{
		{SKUCode: "LAPTOP-001", Name: "Dell Laptop XPS 15", Category: "Electronics", UnitCost: money("1200.00"), SellingPrice: money("1599.00"), ReorderLevel: decimal.NewNullDecimal(qty(5))},
		{SKUCode: "MOUSE-001", Name: "Wireless Mouse", Category: "Electronics", UnitCost: money("25.00"), SellingPrice: money("39.99"), ReorderLevel: decimal.NewNullDecimal(qty(20))},
		{SKUCode: "KEYBOARD-001", Name: "Mechanical Keyboard", Category: "Electronics", UnitCost: money("75.00"), SellingPrice: money("129.99"), ReorderLevel: decimal.NewNullDecimal(qty(10))},
		{SKUCode: "NOTEBOOK-001", Name: "Office Notebook A4", Category: "Office Supplies", UnitCost: money("3.50"), SellingPrice: money("6.99"), ReorderLevel: decimal.NewNullDecimal(qty(50))},
		{SKUCode: "PEN-001", Name: "Ballpoint Pen Blue", Category: "Office Supplies", UnitCost: money("0.50"), SellingPrice: money("1.25"), ReorderLevel: decimal.NewNullDecimal(qty(100))},
	} {
		in.UOM = "pcs"
		p, err := s.catalog.CreateProduct(s.ctx, in)
		if err != nil {
			return err
		}
		prods[p.SKUCode] = p
	}

	rackA, rackB, mainWarehouse := locs["Rack A"], locs["Rack B"], locs["Main Warehouse"]
	laptop, mouse, keyboard := prods["LAPTOP-001"], prods["MOUSE-001"], prods["KEYBOARD-001"]

	log.Println("Receiving initial stock...")
	validated := []core.MovementInput{
		{DocumentType: core.DocumentReceipt, DocumentNumber: "PO-2024-001", ProductID: laptop.ID, DestinationLocationID: rackA.ID, Quantity: qty(10), UnitCost: laptop.UnitCost, ContactName: "TechVendor Inc.", Notes: "Initial stock of laptops from TechVendor"},
		{DocumentType: core.DocumentReceipt, DocumentNumber: "PO-2024-002", ProductID: mouse.ID, DestinationLocationID: rackA.ID, Quantity: qty(60), UnitCost: mouse.UnitCost, ContactName: "TechVendor Inc.", Notes: "Initial stock of wireless mice"},
		{DocumentType: core.DocumentReceipt, DocumentNumber: "PO-2024-003", ProductID: keyboard.ID, DestinationLocationID: rackA.ID, Quantity: qty(25), UnitCost: keyboard.UnitCost, ContactName: "TechVendor Inc.", Notes: "Initial stock of keyboards"},
		{DocumentType: core.DocumentReceipt, DocumentNumber: "PO-2024-004", ProductID: prods["NOTEBOOK-001"].ID, DestinationLocationID: rackB.ID, Quantity: qty(200), UnitCost: money("3.50"), ContactName: "Office Supplies Co.", Priority: core.PriorityLow, Notes: "Initial stock of notebooks"},
		{DocumentType: core.DocumentReceipt, DocumentNumber: "PO-2024-005", ProductID: prods["PEN-001"].ID, DestinationLocationID: rackB.ID, Quantity: qty(75), UnitCost: money("0.50"), ContactName: "Office Supplies Co.", Priority: core.PriorityLow, Notes: "Initial stock of pens"},
		{DocumentType: core.DocumentDelivery, DocumentNumber: "DO-2024-003", ProductID: mouse.ID, SourceLocationID: rackA.ID, Quantity: qty(10), UnitCost: mouse.UnitCost, ContactName: "Acme Corporation", Notes: "Successfully delivered to Acme Corporation"},
	}
	for _, in := range validated {
		in.CreatedBy = seedActor
		entry, err := s.ops.Create(s.ctx, in)
		if err != nil {
			return err
		}
		if _, err := s.ops.Validate(s.ctx, entry.ID, seedActor, core.ValidateOptions{}); err != nil {
			return err
		}
	}

	log.Println("Reserving stock for SO-2024-001...")
	if _, err := s.reservations.CreateReservation(s.ctx, core.ReservationInput{
		ProductID:       mouse.ID,
		LocationID:      rackA.ID,
		Quantity:        qty(5),
		ReservationType: "SALES_ORDER",
		ReferenceNumber: "SO-2024-001",
		ReservedFor:     "Acme Corporation",
		Notes:           "Reserved for Acme Corporation order",
		CreatedBy:       seedActor,
	}); err != nil {
		return err
	}

	log.Println("Creating pending operations...")
	drafts := []core.MovementInput{
		{DocumentType: core.DocumentReceipt, DocumentNumber: "PO-2024-006", ProductID: laptop.ID, DestinationLocationID: mainWarehouse.ID, Quantity: qty(5), UnitCost: laptop.UnitCost, ContactName: "TechVendor Inc.", Notes: "Pending receipt - awaiting arrival"},
		{DocumentType: core.DocumentDelivery, DocumentNumber: "DO-2024-001", ProductID: laptop.ID, SourceLocationID: rackA.ID, Quantity: qty(3), UnitCost: laptop.UnitCost, ContactName: "Acme Corporation", Priority: core.PriorityHigh, Notes: "Urgent delivery to Acme Corporation"},
		{DocumentType: core.DocumentDelivery, DocumentNumber: "DO-2024-002", ProductID: keyboard.ID, SourceLocationID: rackA.ID, Quantity: qty(5), UnitCost: keyboard.UnitCost, ContactName: "StartUp LLC", Priority: core.PriorityUrgent, Notes: "OVERDUE - needs immediate attention"},
	}
	for _, in := range drafts {
		in.CreatedBy = seedActor
		if _, err := s.ops.Create(s.ctx, in); err != nil {
			return err
		}
	}
	return nil
}
