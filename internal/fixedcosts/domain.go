package fixedcosts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Period is an operational-cost bucket. At most one period is active.
type Period struct {
	ID              uuid.UUID `json:"id"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	EstimatedOrders int       `json:"estimated_orders"`
	Currency        string    `json:"currency"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Item is one fixed cost of a period.
type Item struct {
	ID        uuid.UUID `json:"id"`
	PeriodID  uuid.UUID `json:"period_id"`
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a period's total fixed costs spread over its estimated orders.
// PeriodID is nil when no period is active.
type Summary struct {
	PeriodID        *uuid.UUID `json:"period_id"`
	Year            int        `json:"year,omitempty"`
	Month           int        `json:"month,omitempty"`
	EstimatedOrders int        `json:"estimated_orders"`
	Currency        string     `json:"currency"`
	Active          bool       `json:"active"`
	TotalFixedCosts float64    `json:"total_fixed_costs"`
	CostPerOrder    float64    `json:"operational_cost_per_order"`
}

// PeriodInput creates a period.
type PeriodInput struct {
	Year            int
	Month           int
	EstimatedOrders int
	Currency        string
	Active          bool
}

// ItemInput adds a cost item.
type ItemInput struct {
	Name   string
	Amount float64
}

// Reader exposes fixed-cost queries usable with or without a transaction.
type Reader interface {
	GetPeriod(ctx context.Context, id uuid.UUID) (Period, error)
	ListPeriods(ctx context.Context) ([]Period, error)
	// ActivePeriod returns the active period; ok is false when none is.
	ActivePeriod(ctx context.Context) (period Period, ok bool, err error)
	ListFixedCostItems(ctx context.Context, periodID uuid.UUID) ([]Item, error)
	SumFixedCostItems(ctx context.Context, periodID uuid.UUID) (float64, error)
}

// TxRepository exposes transactional writes.
type TxRepository interface {
	Reader
	InsertPeriod(ctx context.Context, period Period) error
	DeactivatePeriods(ctx context.Context) error
	SetPeriodActive(ctx context.Context, id uuid.UUID, active bool) error
	InsertFixedCostItem(ctx context.Context, item Item) error
	DeleteFixedCostItem(ctx context.Context, periodID, itemID uuid.UUID) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
