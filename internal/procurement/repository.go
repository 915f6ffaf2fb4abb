package procurement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/shared"
)

// PurchaseStore runs procurement queries against a pool or a transaction.
type PurchaseStore struct {
	db db.DBTX
}

// NewPurchaseStore wraps q.
func NewPurchaseStore(q db.DBTX) *PurchaseStore {
	return &PurchaseStore{db: q}
}

// Repository persists procurement data in PostgreSQL.
type Repository struct {
	*PurchaseStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{PurchaseStore: NewPurchaseStore(pool), pool: pool}
}

type txStore struct {
	*PurchaseStore
	*inventory.SupplyStore
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txStore{PurchaseStore: NewPurchaseStore(tx), SupplyStore: inventory.NewSupplyStore(tx)})
	})
}

func (s *PurchaseStore) GetPresentation(ctx context.Context, id uuid.UUID) (Presentation, error) {
	var p Presentation
	err := s.db.QueryRow(ctx, `SELECT id, supply_id, name, units_in_base, created_at FROM presentations WHERE id = $1`, id).
		Scan(&p.ID, &p.SupplyID, &p.Name, &p.UnitsInBase, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Presentation{}, shared.NotFound("presentation", id)
	}
	return p, err
}

func (s *PurchaseStore) ListPresentations(ctx context.Context, supplyID *uuid.UUID) ([]Presentation, error) {
	rows, err := s.db.Query(ctx, `SELECT id, supply_id, name, units_in_base, created_at FROM presentations
WHERE ($1::uuid IS NULL OR supply_id = $1) ORDER BY name`, supplyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Presentation
	for rows.Next() {
		var p Presentation
		if err := rows.Scan(&p.ID, &p.SupplyID, &p.Name, &p.UnitsInBase, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PurchaseStore) GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error) {
	var p Purchase
	err := s.db.QueryRow(ctx, `SELECT id, supplier_name, notes, created_at FROM purchases WHERE id = $1`, id).
		Scan(&p.ID, &p.SupplierName, &p.Notes, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, shared.NotFound("purchase", id)
	}
	if err != nil {
		return Purchase{}, err
	}
	rows, err := s.db.Query(ctx, `SELECT id, purchase_id, supply_id, presentation_id, packs_qty, units_in_base, total_cost, unit_cost
FROM purchase_items WHERE purchase_id = $1`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it PurchaseItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.SupplyID, &it.PresentationID, &it.PacksQty, &it.UnitsInBase, &it.TotalCost, &it.UnitCost); err != nil {
			return Purchase{}, err
		}
		p.Items = append(p.Items, it)
	}
	return p, rows.Err()
}

func (s *PurchaseStore) ListPurchases(ctx context.Context, page shared.Page) ([]Purchase, error) {
	rows, err := s.db.Query(ctx, `SELECT id, supplier_name, notes, created_at FROM purchases ORDER BY created_at DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.SupplierName, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PurchaseStore) InsertPresentation(ctx context.Context, p Presentation) error {
	_, err := s.db.Exec(ctx, `INSERT INTO presentations (id, supply_id, name, units_in_base, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.SupplyID, p.Name, p.UnitsInBase, p.CreatedAt)
	return err
}

func (s *PurchaseStore) InsertPurchase(ctx context.Context, p Purchase) error {
	_, err := s.db.Exec(ctx, `INSERT INTO purchases (id, supplier_name, notes, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.SupplierName, p.Notes, p.CreatedAt)
	return err
}

func (s *PurchaseStore) InsertPurchaseItem(ctx context.Context, it PurchaseItem) error {
	_, err := s.db.Exec(ctx, `INSERT INTO purchase_items (id, purchase_id, supply_id, presentation_id, packs_qty, units_in_base, total_cost, unit_cost)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		it.ID, it.PurchaseID, it.SupplyID, it.PresentationID, it.PacksQty, it.UnitsInBase, it.TotalCost, it.UnitCost)
	return err
}
