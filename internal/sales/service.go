package sales

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

const idempotencyModule = "sales.sale"

// Options carries the optional collaborators of Service.
type Options struct {
	Idempotency   shared.IdempotencyPort
	Audit         shared.AuditPort
	Observer      inventory.Observer
	Cache         *Cache
	Currency      string
	DefaultMargin float64
	Logger        *slog.Logger
}

// Service creates, voids and reports sales.
type Service struct {
	repo     RepositoryPort
	engine   *recipes.Engine
	idem     shared.IdempotencyPort
	audit    shared.AuditPort
	observer inventory.Observer
	cache    *Cache
	currency string
	margin   float64
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, engine *recipes.Engine, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Currency == "" {
		opts.Currency = shared.DefaultCurrency
	}
	if opts.DefaultMargin <= 0 || opts.DefaultMargin >= 1 {
		opts.DefaultMargin = masterdata.DefaultMargin
	}
	if engine == nil {
		engine = recipes.NewEngine(nil)
	}
	return &Service{
		repo:     repo,
		engine:   engine,
		idem:     opts.Idempotency,
		audit:    opts.Audit,
		observer: opts.Observer,
		cache:    opts.Cache,
		currency: opts.Currency,
		margin:   opts.DefaultMargin,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// Defaults returns the configured currency and margin.
func (s *Service) Defaults() (currency string, margin float64) {
	return s.currency, s.margin
}

// Create prices the lines, checks and consumes stock and persists the sale
// in one transaction.
func (s *Service) Create(ctx context.Context, input Input) (Sale, error) {
	release, err := shared.Guard(ctx, s.logger, s.idem, input.IdempotencyKey, idempotencyModule)
	if err != nil {
		return Sale{}, err
	}
	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = s.CreateWithin(ctx, tx, input)
		return err
	})
	release(err != nil)
	if err != nil {
		return Sale{}, err
	}
	s.Committed(ctx, sale.Movements)
	s.record(ctx, "sale.created", sale.ID, map[string]any{
		"lines":      len(sale.Items),
		"total_sale": shared.Round2(sale.TotalSale),
	})
	return Present(sale), nil
}

// CreateWithin runs the sale inside an existing unit of work. Every supply the
// sale draws from is locked in id order and checked before the first write.
func (s *Service) CreateWithin(ctx context.Context, tx TxRepository, input Input) (Sale, error) {
	currency, err := shared.NormalizeCurrency(input.Currency, s.currency)
	if err != nil {
		return Sale{}, err
	}
	margin := s.margin
	if input.Margin != nil {
		margin = *input.Margin
	}
	pricing, err := s.Price(ctx, tx, input.Lines, margin)
	if err != nil {
		return Sale{}, err
	}

	ledger := inventory.NewLedger(tx)
	if err := ledger.EnsureAvailable(ctx, pricing.Needs); err != nil {
		return Sale{}, err
	}

	sale := Sale{
		ID:                   uuid.New(),
		CustomerName:         strings.TrimSpace(input.CustomerName),
		Notes:                strings.TrimSpace(input.Notes),
		Currency:             currency,
		Margin:               margin,
		TotalSale:            pricing.TotalSale,
		TotalCost:            pricing.TotalCost,
		TotalProfit:          pricing.TotalProfit,
		MaterialsCostTotal:   pricing.MaterialsTotal,
		OperationalCostTotal: pricing.OperationalTotal,
		FixedCostPeriodID:    pricing.PeriodID,
		CreatedAt:            s.now().UTC(),
	}
	if err := tx.InsertSale(ctx, sale); err != nil {
		return Sale{}, err
	}
	for _, pl := range pricing.Lines {
		item := Item{
			ID:                 uuid.New(),
			SaleID:             sale.ID,
			ProductID:          pl.Input.ProductID,
			RecipeID:           pl.Input.RecipeID,
			Qty:                pl.Input.Qty,
			Width:              pl.Input.Width,
			Height:             pl.Input.Height,
			Payload:            PayloadOf(pl.Input),
			MaterialsCost:      pl.MaterialsTotal,
			OperationalCost:    pl.Operational,
			SuggestedUnitPrice: pl.SuggestedUnit,
			SaleUnitPrice:      pl.SaleUnit,
			LineTotal:          pl.LineTotal,
			Profit:             pl.Profit,
		}
		if err := tx.InsertSaleItem(ctx, item); err != nil {
			return Sale{}, err
		}
		for _, c := range pl.Consumptions {
			if _, err := ledger.Consume(ctx, c.SupplyID, c.Qty, inventory.RefSale, item.ID); err != nil {
				return Sale{}, err
			}
		}
		sale.Items = append(sale.Items, item)
	}
	sale.Movements = ledger.Movements()
	return sale, nil
}

// Void reverses every OUT movement of the sale at its original cost snapshot
// and marks the sale voided. Voiding twice is a no-op.
func (s *Service) Void(ctx context.Context, id uuid.UUID, reason string) (VoidResult, error) {
	result := VoidResult{SaleID: id}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		if sale.Voided {
			result.Status = VoidAlreadyVoided
			result.Message = "sale is already voided"
			return nil
		}
		items, err := tx.ListSaleItems(ctx, id)
		if err != nil {
			return err
		}
		itemIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			itemIDs = append(itemIDs, item.ID)
		}
		movements, err := tx.ListMovementsByRef(ctx, inventory.RefSale, itemIDs)
		if err != nil {
			return err
		}
		var (
			outs      []inventory.Movement
			supplyIDs []uuid.UUID
		)
		for _, m := range movements {
			if m.Type == inventory.MovementOut {
				outs = append(outs, m)
				supplyIDs = append(supplyIDs, m.SupplyID)
			}
		}
		if len(outs) == 0 {
			result.Status = VoidNothingToReverse
			result.Message = "sale has no OUT movements to reverse"
			return nil
		}

		ledger := inventory.NewLedger(tx)
		if _, err := ledger.LockSupplies(ctx, supplyIDs); err != nil {
			return err
		}
		for _, out := range outs {
			if _, err := ledger.ReverseConsumption(ctx, out); err != nil {
				return err
			}
		}
		if err := tx.MarkSaleVoided(ctx, id, strings.TrimSpace(reason), s.now().UTC()); err != nil {
			return err
		}
		result.Status = VoidApplied
		result.Reversed = ledger.Movements()
		return nil
	})
	if err != nil {
		return VoidResult{}, err
	}
	if result.Status == VoidApplied {
		s.Committed(ctx, result.Reversed)
		s.record(ctx, "sale.voided", id, map[string]any{"reason": reason, "reversed": len(result.Reversed)})
	}
	return result, nil
}

// Get loads a sale with its items and every movement tied to them,
// void reversals included.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = s.repo.ListSaleItems(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	itemIDs := make([]uuid.UUID, 0, len(sale.Items))
	for _, item := range sale.Items {
		itemIDs = append(itemIDs, item.ID)
	}
	for _, ref := range []inventory.RefType{inventory.RefSale, inventory.RefSaleVoid} {
		movements, err := s.repo.ListMovementsByRef(ctx, ref, itemIDs)
		if err != nil {
			return Sale{}, err
		}
		sale.Movements = append(sale.Movements, movements...)
	}
	return Present(sale), nil
}

// List lists sales, newest first.
func (s *Service) List(ctx context.Context, page shared.Page) ([]Sale, error) {
	sales, err := s.repo.ListSales(ctx, shared.NewPage(page.Limit, page.Offset))
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i] = Present(sales[i])
	}
	return sales, nil
}

// Summary totals sales over period, one of 7d, 1m, 3m, 6m, 9m, 1y or all.
func (s *Service) Summary(ctx context.Context, period string, includeVoided bool) (Summary, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "7d"
	}
	since, ok := PeriodStart(period, s.now())
	if !ok {
		return Summary{}, shared.Invalid("period must be one of 7d, 1m, 3m, 6m, 9m, 1y, all")
	}
	var loadErr error
	load := func(ctx context.Context) (any, error) {
		totals, err := s.repo.SalesTotals(ctx, SummaryFilter{Since: since, IncludeVoided: includeVoided})
		if err != nil {
			loadErr = err
			return nil, err
		}
		return s.summarize(period, includeVoided, totals), nil
	}

	var out Summary
	key, err := s.cache.BuildKey(ctx, keySummary(period, includeVoided))
	if err == nil {
		if err = s.cache.FetchJSON(ctx, key, &out, load); err == nil {
			return out, nil
		}
		if loadErr != nil {
			return Summary{}, loadErr
		}
	}
	s.logger.Warn("sales summary cache unavailable", slog.String("period", period), slog.Any("error", err))
	v, err := load(ctx)
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// Committed reports movements of a committed transaction and invalidates
// cached summaries.
func (s *Service) Committed(ctx context.Context, movements []inventory.Movement) {
	inventory.ReportMovements(s.observer, movements)
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("sales summary cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) summarize(period string, includeVoided bool, t Totals) Summary {
	var margin float64
	if t.TotalSale > 0 {
		margin = decimal.NewFromFloat(t.TotalProfit / t.TotalSale).Round(4).InexactFloat64()
	}
	return Summary{
		IncludeVoided: includeVoided,
		Period:        period,
		CountSales:    t.Count,
		TotalSale:     shared.Round2(t.TotalSale),
		TotalCost:     shared.Round2(t.TotalCost),
		TotalProfit:   shared.Round2(t.TotalProfit),
		Margin:        margin,
		Currency:      s.currency,
	}
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "sale", EntityID: id.String(), Meta: meta, At: s.now().UTC()}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// PeriodStart returns the start of a summary period ending at now; nil means
// unbounded. ok is false for an unknown period.
func PeriodStart(period string, now time.Time) (since *time.Time, ok bool) {
	var t time.Time
	switch period {
	case "7d":
		t = now.AddDate(0, 0, -7)
	case "1m":
		t = now.AddDate(0, -1, 0)
	case "3m":
		t = now.AddDate(0, -3, 0)
	case "6m":
		t = now.AddDate(0, -6, 0)
	case "9m":
		t = now.AddDate(0, -9, 0)
	case "1y":
		t = now.AddDate(-1, 0, 0)
	case "all":
		return nil, true
	default:
		return nil, false
	}
	return &t, true
}

// Present rounds money fields to cents for callers.
func Present(sale Sale) Sale {
	sale.TotalSale = shared.Round2(sale.TotalSale)
	sale.TotalCost = shared.Round2(sale.TotalCost)
	sale.TotalProfit = shared.Round2(sale.TotalProfit)
	sale.MaterialsCostTotal = shared.Round2(sale.MaterialsCostTotal)
	sale.OperationalCostTotal = shared.Round2(sale.OperationalCostTotal)
	if len(sale.Items) > 0 {
		items := make([]Item, len(sale.Items))
		for i, item := range sale.Items {
			item.MaterialsCost = shared.Round2(item.MaterialsCost)
			item.OperationalCost = shared.Round2(item.OperationalCost)
			item.SuggestedUnitPrice = shared.Round2(item.SuggestedUnitPrice)
			item.SaleUnitPrice = shared.Round2(item.SaleUnitPrice)
			item.LineTotal = shared.Round2(item.LineTotal)
			item.Profit = shared.Round2(item.Profit)
			items[i] = item
		}
		sale.Items = items
	}
	return sale
}
