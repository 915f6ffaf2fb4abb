package inventory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/shared"
)

// Service manages supplies and exposes the ledger's read side.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// RegisterSupply creates a supply with zero stock and cost.
func (s *Service) RegisterSupply(ctx context.Context, input SupplyInput) (Supply, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Supply{}, shared.Invalid("supply name is required")
	}
	if input.UnitBaseID == uuid.Nil {
		return Supply{}, shared.Invalid("unit_base_id is required")
	}
	if input.StockMin < 0 {
		return Supply{}, shared.Invalid("stock_min must be >= 0")
	}
	supply := Supply{
		ID:         uuid.New(),
		Name:       name,
		UnitBaseID: input.UnitBaseID,
		StockMin:   input.StockMin,
		Active:     true,
		CreatedAt:  s.now().UTC(),
	}
	var created Supply
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertSupply(ctx, supply); err != nil {
			return err
		}
		var err error
		created, err = tx.GetSupply(ctx, supply.ID)
		return err
	})
	if err != nil {
		return Supply{}, err
	}
	s.record(ctx, "supply.registered", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// GetSupply loads a supply.
func (s *Service) GetSupply(ctx context.Context, id uuid.UUID) (Supply, error) {
	return s.repo.GetSupply(ctx, id)
}

// ListSupplies lists supplies, active ones only unless includeInactive.
func (s *Service) ListSupplies(ctx context.Context, includeInactive bool) ([]Supply, error) {
	return s.repo.ListSupplies(ctx, includeInactive)
}

// SetSupplyActive toggles the soft-delete flag.
func (s *Service) SetSupplyActive(ctx context.Context, id uuid.UUID, active bool) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockSupply(ctx, id); err != nil {
			return err
		}
		return tx.SetSupplyActive(ctx, id, active)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "supply.active_changed", id, map[string]any{"active": active})
	return nil
}

// ListMovements returns the kardex, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	filter.Page = shared.NewPage(filter.Page.Limit, filter.Page.Offset)
	return s.repo.ListMovements(ctx, filter)
}

// MovementSummary totals a supply's ledger.
func (s *Service) MovementSummary(ctx context.Context, supplyID uuid.UUID) (MovementSummary, error) {
	if _, err := s.repo.GetSupply(ctx, supplyID); err != nil {
		return MovementSummary{}, err
	}
	return s.repo.MovementSummary(ctx, supplyID)
}

// LowStock lists active supplies at or below their minimum, largest shortfall first.
func (s *Service) LowStock(ctx context.Context) ([]LowStockAlert, error) {
	return s.repo.ListLowStock(ctx)
}

// CheckLedger replays one supply's ledger against its running state.
func (s *Service) CheckLedger(ctx context.Context, supplyID uuid.UUID) (Discrepancy, bool, error) {
	supply, err := s.repo.GetSupply(ctx, supplyID)
	if err != nil {
		return Discrepancy{}, false, err
	}
	movements, err := s.repo.ListLedger(ctx, supplyID)
	if err != nil {
		return Discrepancy{}, false, err
	}
	d, ok := Check(supply, movements)
	return d, ok, nil
}

// ReplayAll checks every supply and returns the ones that disagree with their ledger.
func (s *Service) ReplayAll(ctx context.Context) ([]Discrepancy, error) {
	supplies, err := s.repo.ListSupplies(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []Discrepancy
	for _, supply := range supplies {
		movements, err := s.repo.ListLedger(ctx, supply.ID)
		if err != nil {
			return nil, err
		}
		if d, ok := Check(supply, movements); !ok {
			s.logger.Warn("ledger discrepancy",
				slog.String("supply_id", supply.ID.String()),
				slog.Float64("recorded_stock", d.RecordedStock),
				slog.Float64("ledger_stock", d.LedgerStock),
				slog.Float64("recorded_avg", d.RecordedAvg),
				slog.Float64("ledger_avg", d.LedgerAvg))
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "supply", EntityID: id.String(), Meta: meta, At: s.now().UTC()}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
