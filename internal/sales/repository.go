package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

// SaleStore runs sales queries against a pool or a transaction.
type SaleStore struct {
	db db.DBTX
}

// NewSaleStore wraps q.
func NewSaleStore(q db.DBTX) *SaleStore {
	return &SaleStore{db: q}
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	*SaleStore
	*inventory.SupplyStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{SaleStore: NewSaleStore(pool), SupplyStore: inventory.NewSupplyStore(pool), pool: pool}
}

// TxStore is the PostgreSQL unit of work for a sale.
type TxStore struct {
	*SaleStore
	*inventory.SupplyStore
	*recipes.RecipeStore
	*fixedcosts.PeriodStore
}

// NewTxStore binds every store a sale touches to q.
func NewTxStore(q db.DBTX) TxStore {
	return TxStore{
		SaleStore:   NewSaleStore(q),
		SupplyStore: inventory.NewSupplyStore(q),
		RecipeStore: recipes.NewRecipeStore(q),
		PeriodStore: fixedcosts.NewPeriodStore(q),
	}
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

const saleColumns = `id, customer_name, notes, currency, margin, total_sale, total_cost, total_profit,
materials_cost_total, operational_cost_total, fixed_cost_period_id, voided, voided_at, void_reason, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CustomerName, &s.Notes, &s.Currency, &s.Margin, &s.TotalSale, &s.TotalCost, &s.TotalProfit,
		&s.MaterialsCostTotal, &s.OperationalCostTotal, &s.FixedCostPeriodID, &s.Voided, &s.VoidedAt, &s.VoidReason, &s.CreatedAt)
	return s, err
}

func (s *SaleStore) InsertSale(ctx context.Context, sale Sale) error {
	_, err := s.db.Exec(ctx, `INSERT INTO sales (`+saleColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sale.ID, sale.CustomerName, sale.Notes, sale.Currency, sale.Margin, sale.TotalSale, sale.TotalCost, sale.TotalProfit,
		sale.MaterialsCostTotal, sale.OperationalCostTotal, sale.FixedCostPeriodID, sale.Voided, sale.VoidedAt, sale.VoidReason, sale.CreatedAt)
	return err
}

func (s *SaleStore) InsertSaleItem(ctx context.Context, item Item) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("encode sale item payload: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO sale_items (id, sale_id, product_id, recipe_id, qty, width, height, var_payload,
    materials_cost, operational_cost, suggested_unit_price, sale_unit_price, line_total, profit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		item.ID, item.SaleID, item.ProductID, item.RecipeID, item.Qty, item.Width, item.Height, payload,
		item.MaterialsCost, item.OperationalCost, item.SuggestedUnitPrice, item.SaleUnitPrice, item.LineTotal, item.Profit)
	return err
}

func (s *SaleStore) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(s.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.NotFound("sale", id)
	}
	return sale, err
}

func (s *SaleStore) LockSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(s.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.NotFound("sale", id)
	}
	if err != nil {
		return Sale{}, fmt.Errorf("lock sale %s: %w", id, err)
	}
	return sale, nil
}

func (s *SaleStore) MarkSaleVoided(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE sales SET voided = TRUE, voided_at = $2, void_reason = NULLIF($3, '') WHERE id = $1`, id, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("sale", id)
	}
	return nil
}

func (s *SaleStore) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `SELECT si.id, si.sale_id, si.product_id, p.name, si.recipe_id, r.name, si.qty, si.width, si.height, si.var_payload,
    si.materials_cost, si.operational_cost, si.suggested_unit_price, si.sale_unit_price, si.line_total, si.profit
FROM sale_items si
JOIN products p ON p.id = si.product_id
JOIN recipes r ON r.id = si.recipe_id
WHERE si.sale_id = $1
ORDER BY si.seq`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			item    Item
			payload []byte
		)
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.RecipeID, &item.RecipeName,
			&item.Qty, &item.Width, &item.Height, &payload, &item.MaterialsCost, &item.OperationalCost,
			&item.SuggestedUnitPrice, &item.SaleUnitPrice, &item.LineTotal, &item.Profit); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &item.Payload); err != nil {
				return nil, fmt.Errorf("decode sale item payload: %w", err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SaleStore) ListSales(ctx context.Context, page shared.Page) ([]Sale, error) {
	rows, err := s.db.Query(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *SaleStore) SalesTotals(ctx context.Context, filter SummaryFilter) (Totals, error) {
	var t Totals
	err := s.db.QueryRow(ctx, `SELECT COUNT(*),
    COALESCE(SUM(total_sale), 0), COALESCE(SUM(total_cost), 0), COALESCE(SUM(total_profit), 0)
FROM sales
WHERE ($1::timestamptz IS NULL OR created_at >= $1) AND ($2 OR NOT voided)`, filter.Since, filter.IncludeVoided).
		Scan(&t.Count, &t.TotalSale, &t.TotalCost, &t.TotalProfit)
	return t, err
}
