package quotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/shared"
)

// QuoteStore runs quote queries against a pool or a transaction.
type QuoteStore struct {
	db db.DBTX
}

// NewQuoteStore wraps q.
func NewQuoteStore(q db.DBTX) *QuoteStore {
	return &QuoteStore{db: q}
}

// Repository persists quotes in PostgreSQL.
type Repository struct {
	*QuoteStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{QuoteStore: NewQuoteStore(pool), pool: pool}
}

type txStore struct {
	*QuoteStore
	sales.TxStore
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txStore{QuoteStore: NewQuoteStore(tx), TxStore: sales.NewTxStore(tx)})
	})
}

func (s *QuoteStore) LockQuoteSequence(ctx context.Context, year int) (int, bool, error) {
	var last int
	err := s.db.QueryRow(ctx, `SELECT last_value FROM quote_sequences WHERE year = $1 FOR UPDATE`, year).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lock quote sequence %d: %w", year, err)
	}
	return last, true, nil
}

func (s *QuoteStore) InsertQuoteSequence(ctx context.Context, year int) error {
	_, err := s.db.Exec(ctx, `INSERT INTO quote_sequences (year, last_value) VALUES ($1, 0) ON CONFLICT (year) DO NOTHING`, year)
	return err
}

func (s *QuoteStore) UpdateQuoteSequence(ctx context.Context, year, last int) error {
	_, err := s.db.Exec(ctx, `UPDATE quote_sequences SET last_value = $2 WHERE year = $1`, year, last)
	return err
}

const quoteColumns = `id, number, year, seq, status, customer_name, notes, currency, margin, valid_until,
total_sale, total_cost, total_profit, materials_cost_total, operational_cost_total,
fixed_cost_period_id, converted_sale_id, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q      Quote
		status string
	)
	err := row.Scan(&q.ID, &q.Number, &q.Year, &q.Seq, &status, &q.CustomerName, &q.Notes, &q.Currency, &q.Margin, &q.ValidUntil,
		&q.TotalSale, &q.TotalCost, &q.TotalProfit, &q.MaterialsCostTotal, &q.OperationalCostTotal,
		&q.FixedCostPeriodID, &q.ConvertedSaleID, &q.CreatedAt, &q.UpdatedAt)
	q.Status = Status(status)
	return q, err
}

func (s *QuoteStore) InsertQuote(ctx context.Context, q Quote) error {
	_, err := s.db.Exec(ctx, `INSERT INTO quotes (`+quoteColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		q.ID, q.Number, q.Year, q.Seq, string(q.Status), q.CustomerName, q.Notes, q.Currency, q.Margin, q.ValidUntil,
		q.TotalSale, q.TotalCost, q.TotalProfit, q.MaterialsCostTotal, q.OperationalCostTotal,
		q.FixedCostPeriodID, q.ConvertedSaleID, q.CreatedAt, q.UpdatedAt)
	return err
}

func (s *QuoteStore) InsertQuoteItem(ctx context.Context, it Item) error {
	payload, err := json.Marshal(it.Payload)
	if err != nil {
		return fmt.Errorf("encode quote item payload: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO quote_items (id, quote_id, product_id, recipe_id, qty, width, height, var_payload,
    materials_cost, operational_cost, suggested_unit_price, sale_unit_price, line_total, profit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		it.ID, it.QuoteID, it.ProductID, it.RecipeID, it.Qty, it.Width, it.Height, payload,
		it.MaterialsCost, it.OperationalCost, it.SuggestedUnitPrice, it.SaleUnitPrice, it.LineTotal, it.Profit)
	return err
}

func (s *QuoteStore) InsertQuoteStatusChange(ctx context.Context, c StatusChange) error {
	var from *string
	if c.From != nil {
		v := string(*c.From)
		from = &v
	}
	_, err := s.db.Exec(ctx, `INSERT INTO quote_status_history (id, quote_id, from_status, to_status, note, changed_at)
VALUES ($1, $2, $3, $4, $5, $6)`, c.ID, c.QuoteID, from, string(c.To), c.Note, c.ChangedAt)
	return err
}

func (s *QuoteStore) GetQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	q, err := scanQuote(s.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, shared.NotFound("quote", id)
	}
	return q, err
}

func (s *QuoteStore) LockQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	q, err := scanQuote(s.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, shared.NotFound("quote", id)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("lock quote %s: %w", id, err)
	}
	return q, nil
}

func (s *QuoteStore) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE quotes SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("quote", id)
	}
	return nil
}

func (s *QuoteStore) MarkQuoteConverted(ctx context.Context, id, saleID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE quotes SET status = 'converted', converted_sale_id = $2, updated_at = $3 WHERE id = $1`, id, saleID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("quote", id)
	}
	return nil
}

func (s *QuoteStore) ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `SELECT id, quote_id, product_id, recipe_id, qty, width, height, var_payload,
    materials_cost, operational_cost, suggested_unit_price, sale_unit_price, line_total, profit
FROM quote_items WHERE quote_id = $1 ORDER BY seq`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			it      Item
			payload []byte
		)
		if err := rows.Scan(&it.ID, &it.QuoteID, &it.ProductID, &it.RecipeID, &it.Qty, &it.Width, &it.Height, &payload,
			&it.MaterialsCost, &it.OperationalCost, &it.SuggestedUnitPrice, &it.SaleUnitPrice, &it.LineTotal, &it.Profit); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &it.Payload); err != nil {
				return nil, fmt.Errorf("decode quote item payload: %w", err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *QuoteStore) ListQuoteHistory(ctx context.Context, quoteID uuid.UUID) ([]StatusChange, error) {
	rows, err := s.db.Query(ctx, `SELECT id, quote_id, from_status, to_status, note, changed_at
FROM quote_status_history WHERE quote_id = $1 ORDER BY changed_at, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusChange
	for rows.Next() {
		var (
			c    StatusChange
			from *string
			to   string
		)
		if err := rows.Scan(&c.ID, &c.QuoteID, &from, &to, &c.Note, &c.ChangedAt); err != nil {
			return nil, err
		}
		if from != nil {
			st := Status(*from)
			c.From = &st
		}
		c.To = Status(to)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *QuoteStore) ListQuotes(ctx context.Context, status *Status, page shared.Page) ([]Quote, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.db.Query(ctx, `SELECT `+quoteColumns+` FROM quotes
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
