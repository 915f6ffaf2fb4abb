package production

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/shared"
)

// Service runs production orders against the inventory ledger.
type Service struct {
	repo     RepositoryPort
	policy   *quantity.Policy
	audit    shared.AuditPort
	observer inventory.Observer
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. policy, audit and obs may be nil.
func NewService(repo RepositoryPort, policy *quantity.Policy, audit shared.AuditPort, obs inventory.Observer, currency string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	return &Service{repo: repo, policy: policy, audit: audit, observer: obs, currency: currency, logger: logger, now: time.Now}
}

type need struct {
	supplyID uuid.UUID
	qty      float64
}

// Produce consumes the recipe's supplies for qty units. Only literal
// quantities are allowed. Stock is checked against a plain read first, then
// every supply is locked in id order and checked again before any mutation.
func (s *Service) Produce(ctx context.Context, input Input) (Result, error) {
	if input.Qty == 0 {
		input.Qty = 1
	}
	if input.Qty < 0 {
		return Result{}, shared.Invalid("qty must be > 0")
	}
	var (
		result    Result
		movements []inventory.Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bundle, err := tx.LoadRecipeBundle(ctx, input.RecipeID)
		if err != nil {
			return err
		}
		if bundle.Recipe.ProductID != input.ProductID {
			return shared.Invalid("recipe %s does not belong to product %s", input.RecipeID, input.ProductID)
		}
		if len(bundle.Items) == 0 {
			return shared.Invalid("recipe %s has no items", input.RecipeID)
		}

		var needs []need
		totals := make(map[uuid.UUID]float64)
		for _, item := range bundle.Items {
			if item.QtyFormula != "" {
				return shared.Invalid("recipes with formulas cannot be produced")
			}
			var base float64
			if item.QtyBase != nil {
				base = *item.QtyBase
			}
			qty, err := s.policy.ApplyWaste(ctx, base*input.Qty, item.WastePct, item.UnitCode, item.UnitName)
			if err != nil {
				return err
			}
			if qty <= 0 {
				continue
			}
			needs = append(needs, need{supplyID: item.SupplyID, qty: qty})
			totals[item.SupplyID] += qty
		}

		for id, qty := range totals {
			supply, err := tx.GetSupply(ctx, id)
			if err != nil {
				return err
			}
			if qty > supply.StockOnHand+1e-9 {
				return &shared.InsufficientStockError{SupplyID: id.String(), Required: qty, Available: supply.StockOnHand}
			}
		}

		ledger := inventory.NewLedger(tx)
		if err := ledger.EnsureAvailable(ctx, totals); err != nil {
			return err
		}
		order := Order{
			ID:        uuid.New(),
			ProductID: input.ProductID,
			RecipeID:  input.RecipeID,
			Qty:       input.Qty,
			Notes:     strings.TrimSpace(input.Notes),
			CreatedAt: s.now().UTC(),
		}
		for _, n := range needs {
			supply, err := ledger.LockSupply(ctx, n.supplyID)
			if err != nil {
				return err
			}
			order.TotalCost += n.qty * supply.AvgUnitCost
		}
		if err := tx.InsertProductionOrder(ctx, order); err != nil {
			return err
		}

		result = Result{ProductionID: order.ID, Currency: s.currency, MaterialsCost: shared.Round2(order.TotalCost)}
		for _, n := range needs {
			m, err := ledger.Consume(ctx, n.supplyID, n.qty, inventory.RefProduction, order.ID)
			if err != nil {
				return err
			}
			result.Consumptions = append(result.Consumptions, Consumption{
				SupplyID: n.supplyID,
				QtyBase:  shared.Round2(m.QtyBase),
				UnitCost: shared.Round2(m.UnitCostSnapshot),
			})
		}
		movements = ledger.Movements()
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	inventory.ReportMovements(s.observer, movements)
	s.record(ctx, result.ProductionID, map[string]any{
		"recipe_id":      input.RecipeID.String(),
		"qty":            input.Qty,
		"materials_cost": result.MaterialsCost,
	})
	return result, nil
}

// GetOrder loads a production order with its movements.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	order, err := s.repo.GetProductionOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	order.Movements, err = s.repo.ListMovementsByRef(ctx, inventory.RefProduction, []uuid.UUID{id})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListOrders lists production orders, newest first.
func (s *Service) ListOrders(ctx context.Context, page shared.Page) ([]Order, error) {
	return s.repo.ListProductionOrders(ctx, shared.NewPage(page.Limit, page.Offset))
}

func (s *Service) record(ctx context.Context, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: "production.created", Entity: "production_order", EntityID: id.String(), Meta: meta, At: s.now().UTC()}); err != nil {
		s.logger.Warn("audit record failed", slog.String("production_id", id.String()), slog.Any("error", err))
	}
}
