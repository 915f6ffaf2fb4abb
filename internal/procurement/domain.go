package procurement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/shared"
)

// Presentation is a purchasable packaging of a supply.
type Presentation struct {
	ID          uuid.UUID `json:"id"`
	SupplyID    uuid.UUID `json:"supply_id"`
	Name        string    `json:"name"`
	UnitsInBase float64   `json:"units_in_base"`
	CreatedAt   time.Time `json:"created_at"`
}

// Purchase is a purchase event.
type Purchase struct {
	ID           uuid.UUID      `json:"id"`
	SupplierName string         `json:"supplier_name"`
	Notes        string         `json:"notes"`
	CreatedAt    time.Time      `json:"created_at"`
	Items        []PurchaseItem `json:"items,omitempty"`
}

// PurchaseItem is the immutable line of a purchase.
type PurchaseItem struct {
	ID             uuid.UUID `json:"id"`
	PurchaseID     uuid.UUID `json:"purchase_id"`
	SupplyID       uuid.UUID `json:"supply_id"`
	PresentationID uuid.UUID `json:"presentation_id"`
	PacksQty       float64   `json:"packs_qty"`
	UnitsInBase    float64   `json:"units_in_base"`
	TotalCost      float64   `json:"total_cost"`
	UnitCost       float64   `json:"unit_cost"`
}

// PresentationInput creates a presentation.
type PresentationInput struct {
	SupplyID    uuid.UUID
	Name        string
	UnitsInBase float64
}

// PurchaseInput records a purchase of packsQty packs for totalCost.
type PurchaseInput struct {
	SupplyID       uuid.UUID
	PresentationID uuid.UUID
	PacksQty       float64
	TotalCost      float64
	SupplierName   string
	Notes          string
	IdempotencyKey string
}

// Receipt summarizes a committed purchase.
type Receipt struct {
	PurchaseID     uuid.UUID `json:"purchase_id"`
	PurchaseItemID uuid.UUID `json:"purchase_item_id"`
	SupplyID       uuid.UUID `json:"supply_id"`
	UnitsInBase    float64   `json:"units_in_base"`
	UnitCost       float64   `json:"unit_cost"`
	NewStock       float64   `json:"new_stock"`
	NewAvgUnitCost float64   `json:"new_avg_unit_cost"`
}

// Reader exposes procurement queries usable with or without a transaction.
type Reader interface {
	GetPresentation(ctx context.Context, id uuid.UUID) (Presentation, error)
	ListPresentations(ctx context.Context, supplyID *uuid.UUID) ([]Presentation, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error)
	ListPurchases(ctx context.Context, page shared.Page) ([]Purchase, error)
}

// TxRepository exposes procurement writes together with the inventory
// operations a purchase needs.
type TxRepository interface {
	Reader
	inventory.TxRepository
	InsertPresentation(ctx context.Context, p Presentation) error
	InsertPurchase(ctx context.Context, p Purchase) error
	InsertPurchaseItem(ctx context.Context, item PurchaseItem) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
