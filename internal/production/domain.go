package production

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

// Order records one production run.
type Order struct {
	ID        uuid.UUID            `json:"id"`
	ProductID uuid.UUID            `json:"product_id"`
	RecipeID  uuid.UUID            `json:"recipe_id"`
	Qty       float64              `json:"qty"`
	TotalCost float64              `json:"materials_cost"`
	Notes     string               `json:"notes"`
	CreatedAt time.Time            `json:"created_at"`
	Movements []inventory.Movement `json:"movements,omitempty"`
}

// Input requests a production run. A zero Qty produces one unit.
type Input struct {
	ProductID uuid.UUID
	RecipeID  uuid.UUID
	Qty       float64
	Notes     string
}

// Consumption is the stock drawn for one supply.
type Consumption struct {
	SupplyID uuid.UUID `json:"supply_id"`
	QtyBase  float64   `json:"qty_base"`
	UnitCost float64   `json:"unit_cost"`
}

// Result summarizes a committed production run.
type Result struct {
	ProductionID  uuid.UUID     `json:"production_id"`
	MaterialsCost float64       `json:"materials_cost"`
	Currency      string        `json:"currency"`
	Consumptions  []Consumption `json:"consumptions"`
}

// Reader exposes production queries.
type Reader interface {
	GetProductionOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListProductionOrders(ctx context.Context, page shared.Page) ([]Order, error)
}

// TxRepository exposes the writes and reads a production run needs.
type TxRepository interface {
	Reader
	inventory.TxRepository
	recipes.Reader
	InsertProductionOrder(ctx context.Context, order Order) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	ListMovementsByRef(ctx context.Context, refType inventory.RefType, refIDs []uuid.UUID) ([]inventory.Movement, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
