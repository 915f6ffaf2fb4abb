package fixedcosts

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/shared"
)

type memoryRepo struct {
	periods map[uuid.UUID]Period
	items   map[uuid.UUID]Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{periods: map[uuid.UUID]Period{}, items: map[uuid.UUID]Item{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshotP := make(map[uuid.UUID]Period, len(m.periods))
	for k, v := range m.periods {
		snapshotP[k] = v
	}
	snapshotI := make(map[uuid.UUID]Item, len(m.items))
	for k, v := range m.items {
		snapshotI[k] = v
	}
	if err := fn(ctx, m); err != nil {
		m.periods, m.items = snapshotP, snapshotI
		return err
	}
	return nil
}

func (m *memoryRepo) GetPeriod(_ context.Context, id uuid.UUID) (Period, error) {
	p, ok := m.periods[id]
	if !ok {
		return Period{}, shared.NotFound("fixed cost period", id)
	}
	return p, nil
}

func (m *memoryRepo) ListPeriods(context.Context) ([]Period, error) {
	var out []Period
	for _, p := range m.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}

func (m *memoryRepo) ActivePeriod(context.Context) (Period, bool, error) {
	for _, p := range m.periods {
		if p.Active {
			return p, true, nil
		}
	}
	return Period{}, false, nil
}

func (m *memoryRepo) ListFixedCostItems(_ context.Context, periodID uuid.UUID) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if it.PeriodID == periodID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memoryRepo) SumFixedCostItems(ctx context.Context, periodID uuid.UUID) (float64, error) {
	items, _ := m.ListFixedCostItems(ctx, periodID)
	var total float64
	for _, it := range items {
		total += it.Amount
	}
	return total, nil
}

func (m *memoryRepo) InsertPeriod(_ context.Context, p Period) error {
	m.periods[p.ID] = p
	return nil
}

func (m *memoryRepo) DeactivatePeriods(context.Context) error {
	for id, p := range m.periods {
		p.Active = false
		m.periods[id] = p
	}
	return nil
}

func (m *memoryRepo) SetPeriodActive(_ context.Context, id uuid.UUID, active bool) error {
	p, ok := m.periods[id]
	if !ok {
		return shared.NotFound("fixed cost period", id)
	}
	p.Active = active
	m.periods[id] = p
	return nil
}

func (m *memoryRepo) InsertFixedCostItem(_ context.Context, it Item) error {
	m.items[it.ID] = it
	return nil
}

func (m *memoryRepo) DeleteFixedCostItem(_ context.Context, periodID, itemID uuid.UUID) error {
	it, ok := m.items[itemID]
	if !ok || it.PeriodID != periodID {
		return shared.NotFound("fixed cost item", itemID)
	}
	delete(m.items, itemID)
	return nil
}

func TestActivePeriodSummaryWithoutActivePeriod(t *testing.T) {
	sum, err := ActivePeriodSummary(context.Background(), newMemoryRepo())
	require.NoError(t, err)
	require.Nil(t, sum.PeriodID)
	require.Zero(t, sum.CostPerOrder)
	require.Zero(t, sum.TotalFixedCosts)
}

func TestActivePeriodSummary(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), "")

	period, err := svc.CreatePeriod(ctx, PeriodInput{Year: 2026, Month: 3, EstimatedOrders: 3, Active: true})
	require.NoError(t, err)
	require.Equal(t, shared.DefaultCurrency, period.Currency)
	_, err = svc.AddItem(ctx, period.ID, ItemInput{Name: "rent", Amount: 250})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, period.ID, ItemInput{Name: "power", Amount: 50})
	require.NoError(t, err)

	sum, err := svc.ActiveSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, sum.PeriodID)
	require.Equal(t, period.ID, *sum.PeriodID)
	require.Equal(t, 300.0, sum.TotalFixedCosts)
	require.Equal(t, 100.0, sum.CostPerOrder)
}

func TestSummaryZeroEstimatedOrders(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), "")
	period, err := svc.CreatePeriod(ctx, PeriodInput{Year: 2026, Month: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, period.ID, ItemInput{Name: "rent", Amount: 100})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, period.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, sum.TotalFixedCosts)
	require.Zero(t, sum.CostPerOrder)
}

func TestActivationIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, "")

	first, err := svc.CreatePeriod(ctx, PeriodInput{Year: 2026, Month: 1, Active: true})
	require.NoError(t, err)
	second, err := svc.CreatePeriod(ctx, PeriodInput{Year: 2026, Month: 2, Active: true})
	require.NoError(t, err)
	require.False(t, repo.periods[first.ID].Active)
	require.True(t, repo.periods[second.ID].Active)

	updated, err := svc.SetActive(ctx, first.ID, true)
	require.NoError(t, err)
	require.True(t, updated.Active)
	require.False(t, repo.periods[second.ID].Active)

	_, err = svc.SetActive(ctx, uuid.New(), true)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.True(t, repo.periods[first.ID].Active, "failed activation must not deactivate others")
}

func TestCreatePeriodValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), "")
	ctx := context.Background()
	cases := []PeriodInput{
		{Year: 1999, Month: 1},
		{Year: 2026, Month: 13},
		{Year: 2026, Month: 1, EstimatedOrders: -1},
		{Year: 2026, Month: 1, Currency: "ZZZ"},
	}
	for _, in := range cases {
		_, err := svc.CreatePeriod(ctx, in)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	}
}

func TestItems(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo(), "")
	period, err := svc.CreatePeriod(ctx, PeriodInput{Year: 2026, Month: 1})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, period.ID, ItemInput{Name: "rent", Amount: -1})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.AddItem(ctx, uuid.New(), ItemInput{Name: "rent", Amount: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	item, err := svc.AddItem(ctx, period.ID, ItemInput{Name: " rent ", Amount: 10})
	require.NoError(t, err)
	require.Equal(t, "rent", item.Name)

	require.NoError(t, svc.DeleteItem(ctx, period.ID, item.ID))
	items, err := svc.ListItems(ctx, period.ID)
	require.NoError(t, err)
	require.Empty(t, items)
	require.ErrorIs(t, svc.DeleteItem(ctx, period.ID, item.ID), shared.ErrNotFound)
}

func TestAllocate(t *testing.T) {
	require.Nil(t, Allocate(10, nil))
	require.Equal(t, []float64{2.5, 7.5}, Allocate(10, []float64{1, 3}))
	require.Equal(t, []float64{5, 5}, Allocate(10, []float64{0, 0}))
	require.Equal(t, []float64{0, 0}, Allocate(0, []float64{1, 1}))
}
