package masterdata

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductType decides whether a product's recipes use literal or formula quantities.
type ProductType string

const (
	// ProductFixed products consume literal quantities per unit.
	ProductFixed ProductType = "fixed"
	// ProductVariable products derive quantities from dimensions and variables.
	ProductVariable ProductType = "variable"
)

// DefaultMargin applies to products created without a margin target.
const DefaultMargin = 0.4

// Valid reports whether t is a known product type.
func (t ProductType) Valid() bool {
	return t == ProductFixed || t == ProductVariable
}

// Unit represents a unit of measure.
type Unit struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// Product is a sellable item built from a recipe.
type Product struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Type         ProductType `json:"product_type"`
	Category     string      `json:"category"`
	UnitSale     string      `json:"unit_sale"`
	MarginTarget float64     `json:"margin_target"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
}

// UnitInput registers a unit.
type UnitInput struct {
	Code string
	Name string
}

// ProductInput registers a product.
type ProductInput struct {
	Name         string
	Type         ProductType
	Category     string
	UnitSale     string
	MarginTarget *float64
}

// Reader exposes catalogue queries.
type Reader interface {
	ListUnits(ctx context.Context) ([]Unit, error)
	GetUnit(ctx context.Context, id uuid.UUID) (Unit, error)
	PieceUnitCodes(ctx context.Context) ([]string, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]Product, error)
}

// TxRepository exposes transactional catalogue writes.
type TxRepository interface {
	Reader
	InsertUnit(ctx context.Context, unit Unit) error
	InsertPieceUnitCode(ctx context.Context, code string) error
	InsertProduct(ctx context.Context, product Product) error
	UpdateProductMargin(ctx context.Context, id uuid.UUID, margin float64) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
