package procurement

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/shared"
)

const idempotencyModule = "procurement.purchase"

// Service records presentations and purchases.
type Service struct {
	repo        RepositoryPort
	idempotency shared.IdempotencyPort
	audit       shared.AuditPort
	observer    inventory.Observer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs procurement service. idem, audit and obs may be nil.
func NewService(repo RepositoryPort, idem shared.IdempotencyPort, audit shared.AuditPort, obs inventory.Observer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idempotency: idem, audit: audit, observer: obs, logger: logger, now: time.Now}
}

// CreatePresentation registers a packaging for a supply.
func (s *Service) CreatePresentation(ctx context.Context, input PresentationInput) (Presentation, error) {
	p := Presentation{
		ID:          uuid.New(),
		SupplyID:    input.SupplyID,
		Name:        strings.TrimSpace(input.Name),
		UnitsInBase: input.UnitsInBase,
		CreatedAt:   s.now().UTC(),
	}
	if p.Name == "" {
		return Presentation{}, shared.Invalid("presentation name is required")
	}
	if p.UnitsInBase <= 0 {
		return Presentation{}, shared.Invalid("units_in_base must be > 0")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSupply(ctx, p.SupplyID); err != nil {
			return err
		}
		return tx.InsertPresentation(ctx, p)
	})
	if err != nil {
		return Presentation{}, err
	}
	return p, nil
}

// ListPresentations lists presentations, optionally for one supply.
func (s *Service) ListPresentations(ctx context.Context, supplyID *uuid.UUID) ([]Presentation, error) {
	return s.repo.ListPresentations(ctx, supplyID)
}

// GetPurchase loads a purchase with its items.
func (s *Service) GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases lists purchases, newest first.
func (s *Service) ListPurchases(ctx context.Context, page shared.Page) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, shared.NewPage(page.Limit, page.Offset))
}

// RecordPurchase converts packs into base units, reweights the supply's
// average cost and appends the purchase IN movement in one transaction.
func (s *Service) RecordPurchase(ctx context.Context, input PurchaseInput) (Receipt, error) {
	if input.PacksQty <= 0 {
		return Receipt{}, shared.Invalid("packs_qty must be > 0")
	}
	if input.TotalCost < 0 {
		return Receipt{}, shared.Invalid("total_cost must be >= 0")
	}
	release, err := shared.Guard(ctx, s.logger, s.idempotency, input.IdempotencyKey, idempotencyModule)
	if err != nil {
		return Receipt{}, err
	}

	var (
		receipt   Receipt
		movements []inventory.Movement
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pres, err := tx.GetPresentation(ctx, input.PresentationID)
		if err != nil {
			return err
		}
		if pres.SupplyID != input.SupplyID {
			return shared.Invalid("presentation %s does not belong to supply %s", pres.ID, input.SupplyID)
		}
		unitsInBase := input.PacksQty * pres.UnitsInBase
		if unitsInBase <= 0 {
			return shared.Invalid("units_in_base must be > 0")
		}
		unitCost := input.TotalCost / unitsInBase

		ledger := inventory.NewLedger(tx)
		supply, err := ledger.ApplyPurchase(ctx, input.SupplyID, unitsInBase, unitCost)
		if err != nil {
			return err
		}
		purchase := Purchase{
			ID:           uuid.New(),
			SupplierName: strings.TrimSpace(input.SupplierName),
			Notes:        strings.TrimSpace(input.Notes),
			CreatedAt:    s.now().UTC(),
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return err
		}
		item := PurchaseItem{
			ID:             uuid.New(),
			PurchaseID:     purchase.ID,
			SupplyID:       input.SupplyID,
			PresentationID: pres.ID,
			PacksQty:       input.PacksQty,
			UnitsInBase:    unitsInBase,
			TotalCost:      input.TotalCost,
			UnitCost:       unitCost,
		}
		if err := tx.InsertPurchaseItem(ctx, item); err != nil {
			return err
		}
		if _, err := ledger.RecordMovement(ctx, input.SupplyID, inventory.MovementIn, unitsInBase, unitCost, inventory.RefPurchase, item.ID); err != nil {
			return err
		}
		movements = ledger.Movements()
		receipt = Receipt{
			PurchaseID:     purchase.ID,
			PurchaseItemID: item.ID,
			SupplyID:       input.SupplyID,
			UnitsInBase:    unitsInBase,
			UnitCost:       shared.Round2(unitCost),
			NewStock:       supply.StockOnHand,
			NewAvgUnitCost: shared.Round2(supply.AvgUnitCost),
		}
		return nil
	})
	release(err != nil)
	if err != nil {
		return Receipt{}, err
	}
	inventory.ReportMovements(s.observer, movements)
	s.record(ctx, "purchase.recorded", receipt.PurchaseID, map[string]any{
		"supply_id":     receipt.SupplyID.String(),
		"units_in_base": receipt.UnitsInBase,
		"total_cost":    input.TotalCost,
	})
	return receipt, nil
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchase", EntityID: id.String(), Meta: meta, At: s.now().UTC()}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
