package production

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

// OrderStore runs production queries against a pool or a transaction.
type OrderStore struct {
	db db.DBTX
}

// NewOrderStore wraps q.
func NewOrderStore(q db.DBTX) *OrderStore {
	return &OrderStore{db: q}
}

// Repository persists production orders in PostgreSQL.
type Repository struct {
	*OrderStore
	*inventory.SupplyStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{OrderStore: NewOrderStore(pool), SupplyStore: inventory.NewSupplyStore(pool), pool: pool}
}

type txStore struct {
	*OrderStore
	*inventory.SupplyStore
	*recipes.RecipeStore
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txStore{
			OrderStore:  NewOrderStore(tx),
			SupplyStore: inventory.NewSupplyStore(tx),
			RecipeStore: recipes.NewRecipeStore(tx),
		})
	})
}

const orderColumns = `id, product_id, recipe_id, qty, total_cost, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ProductID, &o.RecipeID, &o.Qty, &o.TotalCost, &o.Notes, &o.CreatedAt)
	return o, err
}

func (s *OrderStore) InsertProductionOrder(ctx context.Context, o Order) error {
	_, err := s.db.Exec(ctx, `INSERT INTO production_orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.ProductID, o.RecipeID, o.Qty, o.TotalCost, o.Notes, o.CreatedAt)
	return err
}

func (s *OrderStore) GetProductionOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.NotFound("production order", id)
	}
	return o, err
}

func (s *OrderStore) ListProductionOrders(ctx context.Context, page shared.Page) ([]Order, error) {
	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM production_orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
