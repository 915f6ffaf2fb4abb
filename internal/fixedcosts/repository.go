package fixedcosts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/shared"
)

// PeriodStore runs fixed-cost queries against a pool or a transaction.
type PeriodStore struct {
	db db.DBTX
}

// NewPeriodStore wraps q.
func NewPeriodStore(q db.DBTX) *PeriodStore {
	return &PeriodStore{db: q}
}

// Repository persists fixed costs in PostgreSQL.
type Repository struct {
	*PeriodStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{PeriodStore: NewPeriodStore(pool), pool: pool}
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewPeriodStore(tx))
	})
}

const periodSelect = `SELECT id, year, month, estimated_orders, currency, active, created_at FROM fixed_cost_periods`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Year, &p.Month, &p.EstimatedOrders, &p.Currency, &p.Active, &p.CreatedAt)
	return p, err
}

func (s *PeriodStore) GetPeriod(ctx context.Context, id uuid.UUID) (Period, error) {
	p, err := scanPeriod(s.db.QueryRow(ctx, periodSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, shared.NotFound("fixed cost period", id)
	}
	return p, err
}

func (s *PeriodStore) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := s.db.Query(ctx, periodSelect+` ORDER BY year DESC, month DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PeriodStore) ActivePeriod(ctx context.Context) (Period, bool, error) {
	p, err := scanPeriod(s.db.QueryRow(ctx, periodSelect+` WHERE active LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}
	return p, true, nil
}

func (s *PeriodStore) ListFixedCostItems(ctx context.Context, periodID uuid.UUID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `SELECT id, period_id, name, amount, created_at FROM fixed_cost_items WHERE period_id = $1 ORDER BY created_at, name`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PeriodID, &it.Name, &it.Amount, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PeriodStore) SumFixedCostItems(ctx context.Context, periodID uuid.UUID) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM fixed_cost_items WHERE period_id = $1`, periodID).Scan(&total)
	return total, err
}

func (s *PeriodStore) InsertPeriod(ctx context.Context, p Period) error {
	_, err := s.db.Exec(ctx, `INSERT INTO fixed_cost_periods (id, year, month, estimated_orders, currency, active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Year, p.Month, p.EstimatedOrders, p.Currency, p.Active, p.CreatedAt)
	return err
}

func (s *PeriodStore) DeactivatePeriods(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `UPDATE fixed_cost_periods SET active = FALSE WHERE active`)
	return err
}

func (s *PeriodStore) SetPeriodActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE fixed_cost_periods SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("fixed cost period", id)
	}
	return nil
}

func (s *PeriodStore) InsertFixedCostItem(ctx context.Context, it Item) error {
	_, err := s.db.Exec(ctx, `INSERT INTO fixed_cost_items (id, period_id, name, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		it.ID, it.PeriodID, it.Name, it.Amount, it.CreatedAt)
	return err
}

func (s *PeriodStore) DeleteFixedCostItem(ctx context.Context, periodID, itemID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM fixed_cost_items WHERE id = $1 AND period_id = $2`, itemID, periodID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("fixed cost item", itemID)
	}
	return nil
}
