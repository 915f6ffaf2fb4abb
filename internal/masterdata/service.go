package masterdata

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/shared"
)

// PieceCache is refreshed when the piece-unit override table changes.
type PieceCache interface {
	Invalidate()
}

// Service manages units, piece-unit overrides and products.
type Service struct {
	repo   RepositoryPort
	pieces PieceCache
	now    func() time.Time
}

// NewService builds Service. pieces may be nil.
func NewService(repo RepositoryPort, pieces PieceCache) *Service {
	return &Service{repo: repo, pieces: pieces, now: time.Now}
}

// ListUnits returns all units.
func (s *Service) ListUnits(ctx context.Context) ([]Unit, error) {
	return s.repo.ListUnits(ctx)
}

// CreateUnit registers a unit of measure.
func (s *Service) CreateUnit(ctx context.Context, input UnitInput) (Unit, error) {
	unit := Unit{ID: uuid.New(), Code: strings.TrimSpace(input.Code), Name: strings.TrimSpace(input.Name)}
	if unit.Code == "" || unit.Name == "" {
		return Unit{}, shared.Invalid("unit code and name are required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertUnit(ctx, unit)
	})
	if err != nil {
		return Unit{}, err
	}
	return unit, nil
}

// ListPieceUnitCodes returns the persisted piece-unit overrides.
func (s *Service) ListPieceUnitCodes(ctx context.Context) ([]string, error) {
	return s.repo.PieceUnitCodes(ctx)
}

// AddPieceUnitCode persists a piece-unit override and drops the cached set.
func (s *Service) AddPieceUnitCode(ctx context.Context, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return shared.Invalid("piece unit code is required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertPieceUnitCode(ctx, code)
	})
	if err != nil {
		return err
	}
	if s.pieces != nil {
		s.pieces.Invalidate()
	}
	return nil
}

// CreateProduct registers a sellable product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	product := Product{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Type:         input.Type,
		Category:     strings.TrimSpace(input.Category),
		UnitSale:     strings.TrimSpace(input.UnitSale),
		MarginTarget: DefaultMargin,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if product.Name == "" {
		return Product{}, shared.Invalid("product name is required")
	}
	if !product.Type.Valid() {
		return Product{}, shared.Invalid("product_type must be fixed or variable")
	}
	if input.MarginTarget != nil {
		product.MarginTarget = *input.MarginTarget
	}
	if err := ValidateMargin(product.MarginTarget); err != nil {
		return Product{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertProduct(ctx, product)
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// GetProduct loads a product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products, active ones only unless includeInactive.
func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, includeInactive)
}

// ValidateMargin checks 0 <= m < 1.
func ValidateMargin(m float64) error {
	if m < 0 || m >= 1 {
		return shared.Invalid("margin must be >= 0 and < 1")
	}
	return nil
}
