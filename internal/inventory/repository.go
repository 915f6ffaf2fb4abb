package inventory

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

// SupplyStore runs inventory queries against a pool or a transaction.
type SupplyStore struct {
	db db.DBTX
}

// NewSupplyStore wraps q.
func NewSupplyStore(q db.DBTX) *SupplyStore {
	return &SupplyStore{db: q}
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	*SupplyStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{SupplyStore: NewSupplyStore(pool), pool: pool}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewSupplyStore(tx))
	})
}

const supplySelect = `SELECT s.id, s.name, s.unit_base_id, u.code, u.name, s.stock_on_hand, s.stock_min, s.avg_unit_cost, s.active, s.created_at
FROM supplies s JOIN units u ON u.id = s.unit_base_id`

func scanSupply(row pgx.Row) (Supply, error) {
	var s Supply
	err := row.Scan(&s.ID, &s.Name, &s.UnitBaseID, &s.UnitCode, &s.UnitName, &s.StockOnHand, &s.StockMin, &s.AvgUnitCost, &s.Active, &s.CreatedAt)
	return s, err
}

func (s *SupplyStore) GetSupply(ctx context.Context, id uuid.UUID) (Supply, error) {
	supply, err := scanSupply(s.db.QueryRow(ctx, supplySelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supply{}, shared.NotFound("supply", id)
	}
	return supply, err
}

func (s *SupplyStore) LockSupply(ctx context.Context, id uuid.UUID) (Supply, error) {
	supply, err := scanSupply(s.db.QueryRow(ctx, supplySelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supply{}, shared.NotFound("supply", id)
	}
	if err != nil {
		return Supply{}, fmt.Errorf("lock supply %s: %w", id, err)
	}
	return supply, nil
}

func (s *SupplyStore) ListSupplies(ctx context.Context, includeInactive bool) ([]Supply, error) {
	rows, err := s.db.Query(ctx, supplySelect+` WHERE s.active OR $1 ORDER BY s.name`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supply
	for rows.Next() {
		supply, err := scanSupply(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, supply)
	}
	return out, rows.Err()
}

func (s *SupplyStore) InsertSupply(ctx context.Context, supply Supply) error {
	_, err := s.db.Exec(ctx, `INSERT INTO supplies (id, name, unit_base_id, stock_on_hand, stock_min, avg_unit_cost, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		supply.ID, supply.Name, supply.UnitBaseID, supply.StockOnHand, supply.StockMin, supply.AvgUnitCost, supply.Active, supply.CreatedAt)
	return err
}

func (s *SupplyStore) UpdateSupplyState(ctx context.Context, id uuid.UUID, stock, avgUnitCost float64) error {
	tag, err := s.db.Exec(ctx, `UPDATE supplies SET stock_on_hand = $2, avg_unit_cost = $3 WHERE id = $1`, id, stock, avgUnitCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("supply", id)
	}
	return nil
}

func (s *SupplyStore) SetSupplyActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE supplies SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("supply", id)
	}
	return nil
}

func (s *SupplyStore) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.db.Exec(ctx, `INSERT INTO inventory_movements (id, supply_id, movement_type, qty_base, unit_cost_snapshot, ref_type, ref_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.SupplyID, string(m.Type), m.QtyBase, m.UnitCostSnapshot, string(m.RefType), m.RefID, m.CreatedAt)
	return err
}

const movementColumns = `id, supply_id, movement_type, qty_base, unit_cost_snapshot, ref_type, ref_id, created_at`

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var kind, ref string
		if err := rows.Scan(&m.ID, &m.SupplyID, &kind, &m.QtyBase, &m.UnitCostSnapshot, &ref, &m.RefID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(kind)
		m.RefType = RefType(ref)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SupplyStore) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	rows, err := s.db.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE ($1::uuid IS NULL OR supply_id = $1)
ORDER BY seq DESC LIMIT $2 OFFSET $3`, filter.SupplyID, filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (s *SupplyStore) ListMovementsByRef(ctx context.Context, refType RefType, refIDs []uuid.UUID) ([]Movement, error) {
	if len(refIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE ref_type = $1 AND ref_id = ANY($2) ORDER BY seq`, string(refType), refIDs)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (s *SupplyStore) ListLedger(ctx context.Context, supplyID uuid.UUID) ([]Movement, error) {
	rows, err := s.db.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE supply_id = $1 ORDER BY seq`, supplyID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (s *SupplyStore) MovementSummary(ctx context.Context, supplyID uuid.UUID) (MovementSummary, error) {
	sum := MovementSummary{SupplyID: supplyID}
	err := s.db.QueryRow(ctx, `SELECT
    COALESCE(SUM(qty_base) FILTER (WHERE movement_type = 'IN'), 0),
    COALESCE(SUM(qty_base) FILTER (WHERE movement_type = 'OUT'), 0)
FROM inventory_movements WHERE supply_id = $1`, supplyID).Scan(&sum.TotalIn, &sum.TotalOut)
	if err != nil {
		return MovementSummary{}, err
	}
	sum.Balance = sum.TotalIn - sum.TotalOut
	return sum, nil
}

func (s *SupplyStore) ListLowStock(ctx context.Context) ([]LowStockAlert, error) {
	rows, err := s.db.Query(ctx, `SELECT s.id, s.name, u.code, s.stock_on_hand, s.stock_min, s.stock_min - s.stock_on_hand AS shortfall
FROM supplies s JOIN units u ON u.id = s.unit_base_id
WHERE s.active AND s.stock_on_hand <= s.stock_min
ORDER BY shortfall DESC, s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockAlert
	for rows.Next() {
		var a LowStockAlert
		if err := rows.Scan(&a.SupplyID, &a.Name, &a.UnitCode, &a.StockOnHand, &a.StockMin, &a.Shortfall); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
