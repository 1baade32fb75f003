package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService manages product and location master data and answers the existence
// checks the ledger and reservation services depend on.
type CatalogService interface {
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	GetProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*Product, error)
	// DeleteProduct removes the product together with its stock levels, ledger entries and reservations.
	DeleteProduct(ctx context.Context, id string) error

	CreateLocation(ctx context.Context, in LocationInput) (*Location, error)
	GetLocations(ctx context.Context) ([]Location, error)
	GetLocation(ctx context.Context, id string) (*Location, error)
	GetLocationByName(ctx context.Context, name string) (*Location, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

const productColumns = `id, sku_code, name, category, uom, reorder_level, unit_cost, selling_price, is_active, created_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.SKUCode, &p.Name, &p.Category, &p.UOM, &p.ReorderLevel,
		&p.UnitCost, &p.SellingPrice, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

const locationColumns = `id, name, type, description, created_at`

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	if err := row.Scan(&l.ID, &l.Name, &l.Type, &l.Description, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p, err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (id, sku_code, name, category, uom, reorder_level, unit_cost, selling_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		uuid.NewString(), in.SKUCode, in.Name, in.Category, in.UOM, in.ReorderLevel, in.UnitCost, in.SellingPrice))
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, invalid("sku_code", "product with SKU %s already exists", in.SKUCode)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (s *catalogService) GetProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*Product, error) {
	return requireProduct(ctx, s.pool, id)
}

func (s *catalogService) GetProductBySKU(ctx context.Context, sku string) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku_code = $1`, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", ID: sku}
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return p, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return wrapDBError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "product", ID: id}
	}
	return nil
}

func (s *catalogService) CreateLocation(ctx context.Context, in LocationInput) (*Location, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	l, err := scanLocation(s.pool.QueryRow(ctx, `
		INSERT INTO locations (id, name, type, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+locationColumns,
		uuid.NewString(), in.Name, string(in.Type), in.Description))
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, invalid("name", "location %q already exists", in.Name)
		}
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return l, nil
}

func (s *catalogService) GetLocations(ctx context.Context) ([]Location, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read locations: %w", err)
	}
	return locations, nil
}

func (s *catalogService) GetLocation(ctx context.Context, id string) (*Location, error) {
	return requireLocation(ctx, s.pool, id)
}

func (s *catalogService) GetLocationByName(ctx context.Context, name string) (*Location, error) {
	l, err := scanLocation(s.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "location", ID: name}
		}
		return nil, fmt.Errorf("failed to fetch location: %w", err)
	}
	return l, nil
}

// requireProduct loads a product or returns NotFoundError. q may be the pool or a transaction.
func requireProduct(ctx context.Context, q pgxQuerier, id string) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return p, nil
}

// requireLocation loads a location or returns NotFoundError. q may be the pool or a transaction.
func requireLocation(ctx context.Context, q pgxQuerier, id string) (*Location, error) {
	l, err := scanLocation(q.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "location", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch location: %w", err)
	}
	return l, nil
}
