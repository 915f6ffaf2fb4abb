package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/shared"
)

// DefaultValidity is how long a quote stays valid when no date is given.
const DefaultValidity = 15 * 24 * time.Hour

// ErrInvalidStatus reports a status change the lifecycle does not allow.
var ErrInvalidStatus = fmt.Errorf("%w: invalid status transition", shared.ErrInvalidInput)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusSent, StatusAccepted, StatusRejected, StatusExpired},
	StatusSent:     {StatusAccepted, StatusRejected, StatusExpired},
	StatusAccepted: {StatusExpired},
}

// CanTransition reports whether a quote may move from one status to another
// through a status update. Conversion is not a status update.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Service manages quotes.
type Service struct {
	repo   RepositoryPort
	sales  *sales.Service
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. Pricing and conversion go through salesSvc.
func NewService(repo RepositoryPort, salesSvc *sales.Service, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sales: salesSvc, audit: audit, logger: logger, now: time.Now}
}

// Create prices the lines like a sale and stores the quote under the next
// number of the current year. Inventory is not touched.
func (s *Service) Create(ctx context.Context, input Input) (Quote, error) {
	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() || status == StatusConverted {
		return Quote{}, shared.Invalid("status %q is not allowed on creation", status)
	}
	defCurrency, defMargin := s.sales.Defaults()
	currency, err := shared.NormalizeCurrency(input.Currency, defCurrency)
	if err != nil {
		return Quote{}, err
	}
	margin := defMargin
	if input.Margin != nil {
		margin = *input.Margin
	}
	now := s.now().UTC()
	validUntil := dateOf(now.Add(DefaultValidity))
	if input.ValidUntil != nil {
		validUntil = dateOf(*input.ValidUntil)
	}

	var quote Quote
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pricing, err := s.sales.Price(ctx, tx, input.Lines, margin)
		if err != nil {
			return err
		}
		year := now.Year()
		seq, err := nextSequence(ctx, tx, year)
		if err != nil {
			return err
		}
		quote = Quote{
			ID:                   uuid.New(),
			Number:               FormatNumber(year, seq),
			Year:                 year,
			Seq:                  seq,
			Status:               status,
			CustomerName:         strings.TrimSpace(input.CustomerName),
			Notes:                strings.TrimSpace(input.Notes),
			Currency:             currency,
			Margin:               margin,
			ValidUntil:           validUntil,
			TotalSale:            pricing.TotalSale,
			TotalCost:            pricing.TotalCost,
			TotalProfit:          pricing.TotalProfit,
			MaterialsCostTotal:   pricing.MaterialsTotal,
			OperationalCostTotal: pricing.OperationalTotal,
			FixedCostPeriodID:    pricing.PeriodID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.InsertQuote(ctx, quote); err != nil {
			return err
		}
		for _, pl := range pricing.Lines {
			item := Item{
				ID:                 uuid.New(),
				QuoteID:            quote.ID,
				ProductID:          pl.Input.ProductID,
				RecipeID:           pl.Input.RecipeID,
				Qty:                pl.Input.Qty,
				Width:              pl.Input.Width,
				Height:             pl.Input.Height,
				Payload:            sales.PayloadOf(pl.Input),
				MaterialsCost:      pl.MaterialsTotal,
				OperationalCost:    pl.Operational,
				SuggestedUnitPrice: pl.SuggestedUnit,
				SaleUnitPrice:      pl.SaleUnit,
				LineTotal:          pl.LineTotal,
				Profit:             pl.Profit,
			}
			if err := tx.InsertQuoteItem(ctx, item); err != nil {
				return err
			}
			quote.Items = append(quote.Items, item)
		}
		return tx.InsertQuoteStatusChange(ctx, StatusChange{ID: uuid.New(), QuoteID: quote.ID, To: status, ChangedAt: now})
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, "quote.created", quote.ID, map[string]any{"number": quote.Number, "status": string(quote.Status)})
	return present(quote), nil
}

// UpdateStatus moves a quote along its lifecycle and records the change.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, note string) (Quote, error) {
	if !to.Valid() {
		return Quote{}, shared.Invalid("unknown status %q", to)
	}
	if to == StatusConverted {
		return Quote{}, fmt.Errorf("%w: quotes become converted only through conversion", ErrInvalidStatus)
	}
	var quote Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		quote, err = tx.LockQuote(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(quote.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, quote.Status, to)
		}
		now := s.now().UTC()
		if err := tx.UpdateQuoteStatus(ctx, id, to, now); err != nil {
			return err
		}
		from := quote.Status
		quote.Status = to
		quote.UpdatedAt = now
		return tx.InsertQuoteStatusChange(ctx, StatusChange{ID: uuid.New(), QuoteID: id, From: &from, To: to, Note: strings.TrimSpace(note), ChangedAt: now})
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, "quote.status_changed", id, map[string]any{"status": string(to)})
	return present(quote), nil
}

// Convert turns the quote into a sale at the quoted unit prices, all in one
// transaction. Converting twice is a no-op.
func (s *Service) Convert(ctx context.Context, id uuid.UUID) (ConvertResult, error) {
	result := ConvertResult{QuoteID: id}
	var sale sales.Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.LockQuote(ctx, id)
		if err != nil {
			return err
		}
		if quote.Status == StatusConverted {
			result.Status = ConvertAlreadyConverted
			result.SaleID = quote.ConvertedSaleID
			result.Message = "quote is already converted"
			return nil
		}
		items, err := tx.ListQuoteItems(ctx, id)
		if err != nil {
			return err
		}
		lines := make([]sales.LineInput, 0, len(items))
		for _, item := range items {
			price := item.SaleUnitPrice
			lines = append(lines, sales.LineInput{
				ProductID: item.ProductID,
				RecipeID:  item.RecipeID,
				Qty:       item.Qty,
				SalePrice: &price,
				Width:     item.Width,
				Height:    item.Height,
				Vars:      item.Payload.Vars,
				Opts:      item.Payload.Opts,
			})
		}
		margin := quote.Margin
		sale, err = s.sales.CreateWithin(ctx, tx, sales.Input{
			Lines:        lines,
			Margin:       &margin,
			CustomerName: quote.CustomerName,
			Notes:        quote.Notes,
			Currency:     quote.Currency,
		})
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := tx.MarkQuoteConverted(ctx, id, sale.ID, now); err != nil {
			return err
		}
		from := quote.Status
		if err := tx.InsertQuoteStatusChange(ctx, StatusChange{ID: uuid.New(), QuoteID: id, From: &from, To: StatusConverted, ChangedAt: now}); err != nil {
			return err
		}
		result.Status = ConvertApplied
		result.SaleID = &sale.ID
		return nil
	})
	if err != nil {
		return ConvertResult{}, err
	}
	if result.Status == ConvertApplied {
		s.sales.Committed(ctx, sale.Movements)
		presented := sales.Present(sale)
		result.Sale = &presented
		s.record(ctx, "quote.converted", id, map[string]any{"sale_id": sale.ID.String()})
	}
	return result, nil
}

// Get loads a quote with its items and status history.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	quote, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if quote.Items, err = s.repo.ListQuoteItems(ctx, id); err != nil {
		return Quote{}, err
	}
	if quote.History, err = s.repo.ListQuoteHistory(ctx, id); err != nil {
		return Quote{}, err
	}
	return present(quote), nil
}

// List lists quotes newest first, optionally only those in status.
func (s *Service) List(ctx context.Context, status *Status, page shared.Page) ([]Quote, error) {
	if status != nil && !status.Valid() {
		return nil, shared.Invalid("unknown status %q", *status)
	}
	quotes, err := s.repo.ListQuotes(ctx, status, shared.NewPage(page.Limit, page.Offset))
	if err != nil {
		return nil, err
	}
	for i := range quotes {
		quotes[i] = present(quotes[i])
	}
	return quotes, nil
}

// FormatNumber renders a quote number, e.g. COT-2025-0007.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("COT-%d-%04d", year, seq)
}

func nextSequence(ctx context.Context, tx TxRepository, year int) (int, error) {
	last, ok, err := tx.LockQuoteSequence(ctx, year)
	if err != nil {
		return 0, err
	}
	if !ok {
		if err := tx.InsertQuoteSequence(ctx, year); err != nil {
			return 0, err
		}
		if last, ok, err = tx.LockQuoteSequence(ctx, year); err != nil {
			return 0, err
		}
		if !ok {
			return 0, shared.Internal("quote sequence", fmt.Errorf("counter for %d missing after insert", year))
		}
	}
	next := last + 1
	if err := tx.UpdateQuoteSequence(ctx, year, next); err != nil {
		return 0, err
	}
	return next, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func present(q Quote) Quote {
	q.TotalSale = shared.Round2(q.TotalSale)
	q.TotalCost = shared.Round2(q.TotalCost)
	q.TotalProfit = shared.Round2(q.TotalProfit)
	q.MaterialsCostTotal = shared.Round2(q.MaterialsCostTotal)
	q.OperationalCostTotal = shared.Round2(q.OperationalCostTotal)
	if len(q.Items) > 0 {
		items := make([]Item, len(q.Items))
		for i, it := range q.Items {
			it.MaterialsCost = shared.Round2(it.MaterialsCost)
			it.OperationalCost = shared.Round2(it.OperationalCost)
			it.SuggestedUnitPrice = shared.Round2(it.SuggestedUnitPrice)
			it.SaleUnitPrice = shared.Round2(it.SaleUnitPrice)
			it.LineTotal = shared.Round2(it.LineTotal)
			it.Profit = shared.Round2(it.Profit)
			items[i] = it
		}
		q.Items = items
	}
	return q
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "quote", EntityID: id.String(), Meta: meta, At: s.now().UTC()}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
