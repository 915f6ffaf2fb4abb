package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/shared"
)

// CatalogStore runs catalogue queries against a pool or a transaction.
type CatalogStore struct {
	db db.DBTX
}

// NewCatalogStore wraps q.
func NewCatalogStore(q db.DBTX) *CatalogStore {
	return &CatalogStore{db: q}
}

// Repository persists master data in PostgreSQL.
type Repository struct {
	*CatalogStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{CatalogStore: NewCatalogStore(pool), pool: pool}
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewCatalogStore(tx))
	})
}

func (s *CatalogStore) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := s.db.Query(ctx, `SELECT id, code, name FROM units ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *CatalogStore) GetUnit(ctx context.Context, id uuid.UUID) (Unit, error) {
	var u Unit
	err := s.db.QueryRow(ctx, `SELECT id, code, name FROM units WHERE id = $1`, id).Scan(&u.ID, &u.Code, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, shared.NotFound("unit", id)
	}
	return u, err
}

func (s *CatalogStore) PieceUnitCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT code FROM piece_unit_codes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

const productColumns = `id, name, product_type, category, unit_sale, margin_target, active, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var kind string
	if err := row.Scan(&p.ID, &p.Name, &kind, &p.Category, &p.UnitSale, &p.MarginTarget, &p.Active, &p.CreatedAt); err != nil {
		return Product{}, err
	}
	p.Type = ProductType(kind)
	return p, nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NotFound("product", id)
	}
	return p, err
}

func (s *CatalogStore) ListProducts(ctx context.Context, includeInactive bool) ([]Product, error) {
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active OR $1 ORDER BY name`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *CatalogStore) InsertUnit(ctx context.Context, unit Unit) error {
	_, err := s.db.Exec(ctx, `INSERT INTO units (id, code, name) VALUES ($1, $2, $3)`, unit.ID, unit.Code, unit.Name)
	return err
}

func (s *CatalogStore) InsertPieceUnitCode(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO piece_unit_codes (code) VALUES ($1) ON CONFLICT (code) DO NOTHING`, code)
	return err
}

func (s *CatalogStore) InsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.Exec(ctx, `INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, string(p.Type), p.Category, p.UnitSale, p.MarginTarget, p.Active, p.CreatedAt)
	return err
}

func (s *CatalogStore) UpdateProductMargin(ctx context.Context, id uuid.UUID, margin float64) error {
	tag, err := s.db.Exec(ctx, `UPDATE products SET margin_target = $2 WHERE id = $1`, id, margin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s", shared.ErrNotFound, id)
	}
	return nil
}
