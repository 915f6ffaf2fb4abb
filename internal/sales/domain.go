package sales

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

// VoidStatus reports the outcome of a void request.
type VoidStatus string

const (
	// VoidApplied means the sale's consumptions were reversed.
	VoidApplied VoidStatus = "voided"
	// VoidAlreadyVoided means the sale was voided earlier; nothing changed.
	VoidAlreadyVoided VoidStatus = "already_voided"
	// VoidNothingToReverse means the sale has no OUT movements.
	VoidNothingToReverse VoidStatus = "nothing_to_reverse"
)

// Sale is a committed sale with its aggregate totals.
type Sale struct {
	ID                   uuid.UUID            `json:"sale_id"`
	CustomerName         string               `json:"customer_name"`
	Notes                string               `json:"notes"`
	Currency             string               `json:"currency"`
	Margin               float64              `json:"margin"`
	TotalSale            float64              `json:"total_sale"`
	TotalCost            float64              `json:"total_cost"`
	TotalProfit          float64              `json:"total_profit"`
	MaterialsCostTotal   float64              `json:"materials_cost_total"`
	OperationalCostTotal float64              `json:"operational_cost_total"`
	FixedCostPeriodID    *uuid.UUID           `json:"fixed_cost_period_id"`
	Voided               bool                 `json:"voided"`
	VoidedAt             *time.Time           `json:"voided_at"`
	VoidReason           *string              `json:"void_reason"`
	CreatedAt            time.Time            `json:"created_at"`
	Items                []Item               `json:"items,omitempty"`
	Movements            []inventory.Movement `json:"movements,omitempty"`
}

// Item is one sale line. Money fields are line totals except the unit prices.
type Item struct {
	ID                 uuid.UUID `json:"sale_item_id"`
	SaleID             uuid.UUID `json:"sale_id"`
	ProductID          uuid.UUID `json:"product_id"`
	ProductName        string    `json:"product_name,omitempty"`
	RecipeID           uuid.UUID `json:"recipe_id"`
	RecipeName         string    `json:"recipe_name,omitempty"`
	Qty                float64   `json:"qty"`
	Width              *float64  `json:"width"`
	Height             *float64  `json:"height"`
	Payload            Payload   `json:"payload"`
	MaterialsCost      float64   `json:"materials_cost"`
	OperationalCost    float64   `json:"operational_cost"`
	SuggestedUnitPrice float64   `json:"suggested_unit_price"`
	SaleUnitPrice      float64   `json:"sale_unit_price"`
	LineTotal          float64   `json:"sale_price"`
	Profit             float64   `json:"profit"`
}

// Payload keeps the variable and option inputs a line was costed with.
type Payload struct {
	Vars map[string]float64 `json:"vars"`
	Opts map[string]string  `json:"opts"`
}

// LineInput is one requested line. SalePrice overrides the suggested unit price.
type LineInput struct {
	ProductID uuid.UUID
	RecipeID  uuid.UUID
	Qty       float64
	SalePrice *float64
	Width     *float64
	Height    *float64
	Vars      map[string]float64
	Opts      map[string]string
}

// Input requests a sale. A nil Margin uses the configured default.
type Input struct {
	Lines          []LineInput
	Margin         *float64
	CustomerName   string
	Notes          string
	Currency       string
	IdempotencyKey string
}

// VoidResult describes what a void request did.
type VoidResult struct {
	SaleID   uuid.UUID            `json:"sale_id"`
	Status   VoidStatus           `json:"status"`
	Message  string               `json:"message,omitempty"`
	Reversed []inventory.Movement `json:"reversed_movements"`
}

// SummaryFilter narrows the totals query. A nil Since covers all time.
type SummaryFilter struct {
	Since         *time.Time
	IncludeVoided bool
}

// Totals aggregates sale heads.
type Totals struct {
	Count       int
	TotalSale   float64
	TotalCost   float64
	TotalProfit float64
}

// Summary reports totals over a named period.
type Summary struct {
	IncludeVoided bool    `json:"include_voided"`
	Period        string  `json:"period"`
	CountSales    int     `json:"count_sales"`
	TotalSale     float64 `json:"total_sale"`
	TotalCost     float64 `json:"total_cost"`
	TotalProfit   float64 `json:"total_profit"`
	Margin        float64 `json:"margin"`
	Currency      string  `json:"currency"`
}

// Reader exposes sale queries.
type Reader interface {
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]Item, error)
	ListSales(ctx context.Context, page shared.Page) ([]Sale, error)
	SalesTotals(ctx context.Context, filter SummaryFilter) (Totals, error)
}

// PricingReader is what costing a set of lines needs.
type PricingReader interface {
	recipes.BundleLoader
	fixedcosts.Reader
}

// TxRepository is the unit of work a sale runs in.
type TxRepository interface {
	Reader
	PricingReader
	inventory.TxRepository
	InsertSale(ctx context.Context, sale Sale) error
	InsertSaleItem(ctx context.Context, item Item) error
	// LockSale reads the sale holding an exclusive row lock.
	LockSale(ctx context.Context, id uuid.UUID) (Sale, error)
	MarkSaleVoided(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	ListMovementsByRef(ctx context.Context, refType inventory.RefType, refIDs []uuid.UUID) ([]inventory.Movement, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
