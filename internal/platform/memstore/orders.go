package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/production"
	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/sales/quotations"
	"github.com/sdsinventory/backend/internal/shared"
)

// fixed cost periods

func (t *Tx) GetPeriod(ctx context.Context, id uuid.UUID) (fixedcosts.Period, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.periods, func(p fixedcosts.Period) bool { return p.ID == id })
	if i < 0 {
		return fixedcosts.Period{}, shared.NotFound("fixed cost period", id)
	}
	return t.s.data.periods[i], nil
}

func (t *Tx) ListPeriods(ctx context.Context) ([]fixedcosts.Period, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := slices.Clone(t.s.data.periods)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (t *Tx) ActivePeriod(ctx context.Context) (fixedcosts.Period, bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.periods, func(p fixedcosts.Period) bool { return p.Active })
	if i < 0 {
		return fixedcosts.Period{}, false, nil
	}
	return t.s.data.periods[i], true, nil
}

func (t *Tx) ListFixedCostItems(ctx context.Context, periodID uuid.UUID) ([]fixedcosts.Item, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []fixedcosts.Item
	for _, it := range t.s.data.costItems {
		if it.PeriodID == periodID {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *Tx) SumFixedCostItems(ctx context.Context, periodID uuid.UUID) (float64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var total float64
	for _, it := range t.s.data.costItems {
		if it.PeriodID == periodID {
			total += it.Amount
		}
	}
	return total, nil
}

func (t *Tx) InsertPeriod(ctx context.Context, p fixedcosts.Period) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.periods = append(t.s.data.periods, p)
	t.onRollback(func() {
		t.s.data.periods = remove(t.s.data.periods, func(x fixedcosts.Period) bool { return x.ID == p.ID })
	})
	return nil
}

func (t *Tx) DeactivatePeriods(ctx context.Context) error {
	if err := t.lock(ctx, "fixed_cost_periods"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := range t.s.data.periods {
		if t.s.data.periods[i].Active {
			t.setPeriodActive(i, false)
		}
	}
	return nil
}

func (t *Tx) SetPeriodActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := t.lock(ctx, "fixed_cost_periods"); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.periods, func(p fixedcosts.Period) bool { return p.ID == id })
	if i < 0 {
		return shared.NotFound("fixed cost period", id)
	}
	t.setPeriodActive(i, active)
	return nil
}

func (t *Tx) setPeriodActive(i int, active bool) {
	id, prev := t.s.data.periods[i].ID, t.s.data.periods[i].Active
	t.s.data.periods[i].Active = active
	t.onRollback(func() {
		if j := indexOf(t.s.data.periods, func(p fixedcosts.Period) bool { return p.ID == id }); j >= 0 {
			t.s.data.periods[j].Active = prev
		}
	})
}

func (t *Tx) InsertFixedCostItem(ctx context.Context, item fixedcosts.Item) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.costItems = append(t.s.data.costItems, item)
	t.onRollback(func() {
		t.s.data.costItems = remove(t.s.data.costItems, func(x fixedcosts.Item) bool { return x.ID == item.ID })
	})
	return nil
}

func (t *Tx) DeleteFixedCostItem(ctx context.Context, periodID, itemID uuid.UUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.costItems, func(it fixedcosts.Item) bool { return it.ID == itemID && it.PeriodID == periodID })
	if i < 0 {
		return shared.NotFound("fixed cost item", itemID)
	}
	item := t.s.data.costItems[i]
	t.s.data.costItems = slices.Delete(t.s.data.costItems, i, i+1)
	t.onRollback(func() { t.s.data.costItems = append(t.s.data.costItems, item) })
	return nil
}

// production orders

func (t *Tx) GetProductionOrder(ctx context.Context, id uuid.UUID) (production.Order, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.orders, func(o production.Order) bool { return o.ID == id })
	if i < 0 {
		return production.Order{}, shared.NotFound("production order", id)
	}
	return t.s.data.orders[i], nil
}

func (t *Tx) ListProductionOrders(ctx context.Context, p shared.Page) ([]production.Order, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := reversed(t.s.data.orders)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return slices.Clone(page(out, p)), nil
}

func (t *Tx) InsertProductionOrder(ctx context.Context, order production.Order) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	order.Movements = nil
	t.s.data.orders = append(t.s.data.orders, order)
	t.onRollback(func() {
		t.s.data.orders = remove(t.s.data.orders, func(x production.Order) bool { return x.ID == order.ID })
	})
	return nil
}

// sales

func (t *Tx) sale(id uuid.UUID) (sales.Sale, int, error) {
	i := indexOf(t.s.data.sales, func(s sales.Sale) bool { return s.ID == id })
	if i < 0 {
		return sales.Sale{}, -1, shared.NotFound("sale", id)
	}
	return t.s.data.sales[i], i, nil
}

func (t *Tx) GetSale(ctx context.Context, id uuid.UUID) (sales.Sale, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	s, _, err := t.sale(id)
	return s, err
}

func (t *Tx) LockSale(ctx context.Context, id uuid.UUID) (sales.Sale, error) {
	if err := t.lock(ctx, "sale:"+id.String()); err != nil {
		return sales.Sale{}, err
	}
	return t.GetSale(ctx, id)
}

func (t *Tx) ListSales(ctx context.Context, p shared.Page) ([]sales.Sale, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := reversed(t.s.data.sales)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return slices.Clone(page(out, p)), nil
}

func (t *Tx) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]sales.Item, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []sales.Item
	for _, it := range t.s.data.saleItems {
		if it.SaleID != saleID {
			continue
		}
		if p, err := t.product(it.ProductID); err == nil {
			it.ProductName = p.Name
		}
		if r, err := t.recipe(it.RecipeID); err == nil {
			it.RecipeName = r.Name
		}
		out = append(out, it)
	}
	return out, nil
}

func (t *Tx) SalesTotals(ctx context.Context, filter sales.SummaryFilter) (sales.Totals, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out sales.Totals
	for _, s := range t.s.data.sales {
		if filter.Since != nil && s.CreatedAt.Before(*filter.Since) {
			continue
		}
		if s.Voided && !filter.IncludeVoided {
			continue
		}
		out.Count++
		out.TotalSale += s.TotalSale
		out.TotalCost += s.TotalCost
		out.TotalProfit += s.TotalProfit
	}
	return out, nil
}

func (t *Tx) InsertSale(ctx context.Context, sale sales.Sale) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	sale.Items, sale.Movements = nil, nil
	t.s.data.sales = append(t.s.data.sales, sale)
	t.onRollback(func() {
		t.s.data.sales = remove(t.s.data.sales, func(x sales.Sale) bool { return x.ID == sale.ID })
	})
	return nil
}

func (t *Tx) InsertSaleItem(ctx context.Context, item sales.Item) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, _, err := t.sale(item.SaleID); err != nil {
		return err
	}
	t.s.data.saleItems = append(t.s.data.saleItems, item)
	t.onRollback(func() {
		t.s.data.saleItems = remove(t.s.data.saleItems, func(x sales.Item) bool { return x.ID == item.ID })
	})
	return nil
}

func (t *Tx) MarkSaleVoided(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, i, err := t.sale(id)
	if err != nil {
		return err
	}
	s := &t.s.data.sales[i]
	s.Voided = true
	s.VoidedAt = &at
	s.VoidReason = nil
	if reason != "" {
		s.VoidReason = &reason
	}
	t.onRollback(func() {
		if _, j, err := t.sale(id); err == nil {
			t.s.data.sales[j] = prev
		}
	})
	return nil
}

// quotes

func seqKey(year int) string {
	return "quote_seq:" + strconv.Itoa(year)
}

func (t *Tx) LockQuoteSequence(ctx context.Context, year int) (int, bool, error) {
	if err := t.lock(ctx, seqKey(year)); err != nil {
		return 0, false, fmt.Errorf("lock quote sequence %d: %w", year, err)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	last, ok := t.s.data.quoteSeq[year]
	return last, ok, nil
}

func (t *Tx) InsertQuoteSequence(ctx context.Context, year int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.data.quoteSeq[year]; ok {
		return nil
	}
	t.s.data.quoteSeq[year] = 0
	t.onRollback(func() { delete(t.s.data.quoteSeq, year) })
	return nil
}

func (t *Tx) UpdateQuoteSequence(ctx context.Context, year, last int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, ok := t.s.data.quoteSeq[year]
	if !ok {
		return nil
	}
	t.s.data.quoteSeq[year] = last
	t.onRollback(func() { t.s.data.quoteSeq[year] = prev })
	return nil
}

func (t *Tx) quote(id uuid.UUID) (quotations.Quote, int, error) {
	i := indexOf(t.s.data.quotes, func(q quotations.Quote) bool { return q.ID == id })
	if i < 0 {
		return quotations.Quote{}, -1, shared.NotFound("quote", id)
	}
	return t.s.data.quotes[i], i, nil
}

func (t *Tx) GetQuote(ctx context.Context, id uuid.UUID) (quotations.Quote, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	q, _, err := t.quote(id)
	return q, err
}

func (t *Tx) LockQuote(ctx context.Context, id uuid.UUID) (quotations.Quote, error) {
	if err := t.lock(ctx, "quote:"+id.String()); err != nil {
		return quotations.Quote{}, err
	}
	return t.GetQuote(ctx, id)
}

func (t *Tx) ListQuotes(ctx context.Context, status *quotations.Status, p shared.Page) ([]quotations.Quote, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []quotations.Quote
	for _, q := range reversed(t.s.data.quotes) {
		if status == nil || q.Status == *status {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return slices.Clone(page(out, p)), nil
}

func (t *Tx) ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]quotations.Item, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []quotations.Item
	for _, it := range t.s.data.quoteItems {
		if it.QuoteID == quoteID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (t *Tx) ListQuoteHistory(ctx context.Context, quoteID uuid.UUID) ([]quotations.StatusChange, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []quotations.StatusChange
	for _, c := range t.s.data.history {
		if c.QuoteID == quoteID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *Tx) InsertQuote(ctx context.Context, q quotations.Quote) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if indexOf(t.s.data.quotes, func(x quotations.Quote) bool { return x.Number == q.Number }) >= 0 {
		return fmt.Errorf("%w: quote number %s exists", shared.ErrInvalidInput, q.Number)
	}
	q.Items, q.History = nil, nil
	t.s.data.quotes = append(t.s.data.quotes, q)
	t.onRollback(func() {
		t.s.data.quotes = remove(t.s.data.quotes, func(x quotations.Quote) bool { return x.ID == q.ID })
	})
	return nil
}

func (t *Tx) InsertQuoteItem(ctx context.Context, item quotations.Item) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.quoteItems = append(t.s.data.quoteItems, item)
	t.onRollback(func() {
		t.s.data.quoteItems = remove(t.s.data.quoteItems, func(x quotations.Item) bool { return x.ID == item.ID })
	})
	return nil
}

func (t *Tx) InsertQuoteStatusChange(ctx context.Context, c quotations.StatusChange) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.history = append(t.s.data.history, c)
	t.onRollback(func() {
		t.s.data.history = remove(t.s.data.history, func(x quotations.StatusChange) bool { return x.ID == c.ID })
	})
	return nil
}

func (t *Tx) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status quotations.Status, at time.Time) error {
	return t.updateQuote(id, func(q *quotations.Quote) {
		q.Status = status
		q.UpdatedAt = at
	})
}

func (t *Tx) MarkQuoteConverted(ctx context.Context, id, saleID uuid.UUID, at time.Time) error {
	return t.updateQuote(id, func(q *quotations.Quote) {
		q.Status = quotations.StatusConverted
		q.ConvertedSaleID = &saleID
		q.UpdatedAt = at
	})
}

func (t *Tx) updateQuote(id uuid.UUID, mutate func(*quotations.Quote)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, i, err := t.quote(id)
	if err != nil {
		return err
	}
	mutate(&t.s.data.quotes[i])
	t.onRollback(func() {
		if _, j, err := t.quote(id); err == nil {
			t.s.data.quotes[j] = prev
		}
	})
	return nil
}
