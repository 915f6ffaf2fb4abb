package fixedcosts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/shared"
)

// Service manages fixed-cost periods and their items.
type Service struct {
	repo     RepositoryPort
	currency string
	now      func() time.Time
}

// NewService builds Service. currency is the default for new periods.
func NewService(repo RepositoryPort, currency string) *Service {
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	return &Service{repo: repo, currency: currency, now: time.Now}
}

// CreatePeriod registers a period. An active period deactivates all others.
func (s *Service) CreatePeriod(ctx context.Context, input PeriodInput) (Period, error) {
	if input.Year < 2000 || input.Year > 2100 {
		return Period{}, shared.Invalid("year must be between 2000 and 2100")
	}
	if input.Month < 1 || input.Month > 12 {
		return Period{}, shared.Invalid("month must be between 1 and 12")
	}
	if input.EstimatedOrders < 0 {
		return Period{}, shared.Invalid("estimated_orders must be >= 0")
	}
	currency, err := shared.NormalizeCurrency(input.Currency, s.currency)
	if err != nil {
		return Period{}, err
	}
	period := Period{
		ID:              uuid.New(),
		Year:            input.Year,
		Month:           input.Month,
		EstimatedOrders: input.EstimatedOrders,
		Currency:        currency,
		Active:          input.Active,
		CreatedAt:       s.now().UTC(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if period.Active {
			if err := tx.DeactivatePeriods(ctx); err != nil {
				return err
			}
		}
		return tx.InsertPeriod(ctx, period)
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// ListPeriods lists periods, newest first.
func (s *Service) ListPeriods(ctx context.Context) ([]Period, error) {
	return s.repo.ListPeriods(ctx)
}

// GetPeriod loads a period.
func (s *Service) GetPeriod(ctx context.Context, id uuid.UUID) (Period, error) {
	return s.repo.GetPeriod(ctx, id)
}

// SetActive flags a period. Activation deactivates every other period in the
// same transaction.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (Period, error) {
	var out Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetPeriod(ctx, id); err != nil {
			return err
		}
		if active {
			if err := tx.DeactivatePeriods(ctx); err != nil {
				return err
			}
		}
		if err := tx.SetPeriodActive(ctx, id, active); err != nil {
			return err
		}
		var err error
		out, err = tx.GetPeriod(ctx, id)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return out, nil
}

// AddItem adds a cost to a period.
func (s *Service) AddItem(ctx context.Context, periodID uuid.UUID, input ItemInput) (Item, error) {
	item := Item{ID: uuid.New(), PeriodID: periodID, Name: strings.TrimSpace(input.Name), Amount: input.Amount, CreatedAt: s.now().UTC()}
	if item.Name == "" {
		return Item{}, shared.Invalid("item name is required")
	}
	if item.Amount < 0 {
		return Item{}, shared.Invalid("amount must be >= 0")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetPeriod(ctx, periodID); err != nil {
			return err
		}
		return tx.InsertFixedCostItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// ListItems lists a period's costs.
func (s *Service) ListItems(ctx context.Context, periodID uuid.UUID) ([]Item, error) {
	if _, err := s.repo.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.repo.ListFixedCostItems(ctx, periodID)
}

// DeleteItem removes a cost from a period.
func (s *Service) DeleteItem(ctx context.Context, periodID, itemID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteFixedCostItem(ctx, periodID, itemID)
	})
}

// Summary summarizes any period.
func (s *Service) Summary(ctx context.Context, periodID uuid.UUID) (Summary, error) {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(ctx, s.repo, period)
}

// ActiveSummary summarizes the active period.
func (s *Service) ActiveSummary(ctx context.Context) (Summary, error) {
	return ActivePeriodSummary(ctx, s.repo)
}
