package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/shared"
)

// MovementType enumerates ledger directions.
type MovementType string

const (
	// MovementIn increases stock.
	MovementIn MovementType = "IN"
	// MovementOut decreases stock.
	MovementOut MovementType = "OUT"
)

// RefType names the document a movement originates from.
type RefType string

const (
	RefPurchase   RefType = "purchase"
	RefProduction RefType = "production"
	RefSale       RefType = "sale"
	RefSaleVoid   RefType = "sale_void"
)

// stockEpsilon absorbs float noise when comparing stock to a requirement.
const stockEpsilon = 1e-9

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: inventory: quantity must be greater than zero", shared.ErrInvalidInput)
	// ErrInvalidUnitCost indicates a negative cost.
	ErrInvalidUnitCost = fmt.Errorf("%w: inventory: unit cost must be >= 0", shared.ErrInvalidInput)
)

// Supply is a raw material tracked in its base unit.
type Supply struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	UnitBaseID  uuid.UUID `json:"unit_base_id"`
	UnitCode    string    `json:"unit_code"`
	UnitName    string    `json:"unit_name"`
	StockOnHand float64   `json:"stock_on_hand"`
	StockMin    float64   `json:"stock_min"`
	AvgUnitCost float64   `json:"avg_unit_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Movement is an append-only ledger row.
type Movement struct {
	ID               uuid.UUID    `json:"id"`
	SupplyID         uuid.UUID    `json:"supply_id"`
	Type             MovementType `json:"movement_type"`
	QtyBase          float64      `json:"qty_base"`
	UnitCostSnapshot float64      `json:"unit_cost_snapshot"`
	RefType          RefType      `json:"ref_type"`
	RefID            uuid.UUID    `json:"ref_id"`
	CreatedAt        time.Time    `json:"created_at"`
}

// SupplyInput registers a supply.
type SupplyInput struct {
	Name       string
	UnitBaseID uuid.UUID
	StockMin   float64
}

// MovementFilter narrows kardex listings.
type MovementFilter struct {
	SupplyID *uuid.UUID
	Page     shared.Page
}

// MovementSummary aggregates a supply's ledger.
type MovementSummary struct {
	SupplyID uuid.UUID `json:"supply_id"`
	TotalIn  float64   `json:"total_in"`
	TotalOut float64   `json:"total_out"`
	Balance  float64   `json:"balance"`
}

// LowStockAlert flags an active supply at or below its threshold.
type LowStockAlert struct {
	SupplyID    uuid.UUID `json:"supply_id"`
	Name        string    `json:"name"`
	UnitCode    string    `json:"unit_code"`
	StockOnHand float64   `json:"stock_on_hand"`
	StockMin    float64   `json:"stock_min"`
	Shortfall   float64   `json:"shortfall"`
}

// Discrepancy reports a supply whose running state differs from its ledger fold.
type Discrepancy struct {
	SupplyID      uuid.UUID `json:"supply_id"`
	Name          string    `json:"name"`
	RecordedStock float64   `json:"recorded_stock"`
	LedgerStock   float64   `json:"ledger_stock"`
	RecordedAvg   float64   `json:"recorded_avg_unit_cost"`
	LedgerAvg     float64   `json:"ledger_avg_unit_cost"`
	Movements     int       `json:"movements"`
}

// Reader exposes inventory queries usable with or without a transaction.
type Reader interface {
	GetSupply(ctx context.Context, id uuid.UUID) (Supply, error)
	ListSupplies(ctx context.Context, includeInactive bool) ([]Supply, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListMovementsByRef(ctx context.Context, refType RefType, refIDs []uuid.UUID) ([]Movement, error)
	MovementSummary(ctx context.Context, supplyID uuid.UUID) (MovementSummary, error)
	ListLowStock(ctx context.Context) ([]LowStockAlert, error)
	ListLedger(ctx context.Context, supplyID uuid.UUID) ([]Movement, error)
}

// TxRepository exposes transactional operations used by the ledger.
type TxRepository interface {
	Reader
	// LockSupply reads the supply holding an exclusive row lock until the
	// transaction ends.
	LockSupply(ctx context.Context, id uuid.UUID) (Supply, error)
	InsertSupply(ctx context.Context, supply Supply) error
	UpdateSupplyState(ctx context.Context, id uuid.UUID, stock, avgUnitCost float64) error
	SetSupplyActive(ctx context.Context, id uuid.UUID, active bool) error
	InsertMovement(ctx context.Context, movement Movement) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
