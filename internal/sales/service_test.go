package sales_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/platform/memstore"
	"github.com/sdsinventory/backend/internal/procurement"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/shared"
)

func ptr(v float64) *float64 { return &v }

type fixture struct {
	store   *memstore.Store
	svc     *sales.Service
	product masterdata.Product
	recipe  recipes.Recipe
	paper   inventory.Supply
}

func newFixture(t *testing.T, stock float64, opts sales.Options) fixture {
	t.Helper()
	store := memstore.New()
	u := store.SeedUnit("unidad", "Unidad")
	paper := store.SeedSupply("Hoja", u, stock, 0.5)
	product := store.SeedProduct("Volante", masterdata.ProductFixed, 0.4)
	recipe := store.SeedRecipe(product, "Volante carta", recipes.Item{SupplyID: paper.ID, QtyBase: ptr(2)})
	engine := recipes.NewEngine(quantity.NewPolicy(nil))
	if opts.Idempotency == nil {
		opts.Idempotency = store
	}
	if opts.Audit == nil {
		opts.Audit = store
	}
	svc := sales.NewService(store.Sales(), engine, opts)
	return fixture{store: store, svc: svc, product: product, recipe: recipe, paper: paper}
}

func (f fixture) line(qty float64) sales.LineInput {
	return sales.LineInput{ProductID: f.product.ID, RecipeID: f.recipe.ID, Qty: qty}
}

func (f fixture) stock(t *testing.T) float64 {
	t.Helper()
	s, err := f.store.View().GetSupply(context.Background(), f.paper.ID)
	require.NoError(t, err)
	return s.StockOnHand
}

func TestCreateSalePricesAndConsumes(t *testing.T) {
	f := newFixture(t, 100, sales.Options{})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(1)}, Margin: ptr(0.5), CustomerName: " Ana "})
	require.NoError(t, err)
	require.Equal(t, "Ana", sale.CustomerName)
	require.Equal(t, shared.DefaultCurrency, sale.Currency)
	require.Len(t, sale.Items, 1)
	item := sale.Items[0]
	require.Equal(t, 1.0, item.MaterialsCost)
	require.Equal(t, 2.0, item.SuggestedUnitPrice)
	require.Equal(t, 2.0, item.SaleUnitPrice)
	require.Equal(t, 2.0, item.LineTotal)
	require.Equal(t, 1.0, item.Profit)
	require.Equal(t, 2.0, sale.TotalSale)
	require.Equal(t, 1.0, sale.TotalCost)
	require.Equal(t, 1.0, sale.TotalProfit)
	require.Nil(t, sale.FixedCostPeriodID)
	require.Equal(t, 98.0, f.stock(t))

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, "Volante", got.Items[0].ProductName)
	require.Len(t, got.Movements, 1)
	require.Equal(t, inventory.RefSale, got.Movements[0].RefType)
	require.Equal(t, item.ID, got.Movements[0].RefID)
	require.Equal(t, 0.5, got.Movements[0].UnitCostSnapshot)
}

func TestCreateSaleUsesDefaultMarginAndOverride(t *testing.T) {
	f := newFixture(t, 100, sales.Options{DefaultMargin: 0.2})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(2)}})
	require.NoError(t, err)
	require.Equal(t, 0.2, sale.Margin)
	require.Equal(t, 1.25, sale.Items[0].SuggestedUnitPrice)

	line := f.line(2)
	line.SalePrice = ptr(3)
	sale, err = f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{line}})
	require.NoError(t, err)
	require.Equal(t, 1.25, sale.Items[0].SuggestedUnitPrice)
	require.Equal(t, 3.0, sale.Items[0].SaleUnitPrice)
	require.Equal(t, 6.0, sale.TotalSale)
	require.Equal(t, 4.0, sale.TotalProfit)
}

func TestCreateSaleAllocatesOperationalCost(t *testing.T) {
	f := newFixture(t, 100, sales.Options{})
	period := f.store.SeedPeriod(10, 100)
	ctx := context.Background()

	other := f.store.SeedRecipe(f.product, "Doble", recipes.Item{SupplyID: f.paper.ID, QtyBase: ptr(6)})
	sale, err := f.svc.Create(ctx, sales.Input{
		Lines: []sales.LineInput{
			f.line(1),
			{ProductID: f.product.ID, RecipeID: other.ID, Qty: 1},
		},
		Margin: ptr(0.5),
	})
	require.NoError(t, err)
	require.NotNil(t, sale.FixedCostPeriodID)
	require.Equal(t, period.ID, *sale.FixedCostPeriodID)
	require.Equal(t, 10.0, sale.OperationalCostTotal)
	// 1.00 and 3.00 of materials split the 10.00 overhead 1:3.
	require.Equal(t, 2.5, sale.Items[0].OperationalCost)
	require.Equal(t, 7.5, sale.Items[1].OperationalCost)
	require.Equal(t, 7.0, sale.Items[0].SuggestedUnitPrice)
	require.Equal(t, 14.0, sale.TotalCost)
	require.Equal(t, 92.0, f.stock(t))
}

func TestCreateSaleAggregatesNeedsAndAbortsAtomically(t *testing.T) {
	f := newFixture(t, 10, sales.Options{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(3), f.line(3)}})
	var insufficient *shared.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, 12.0, insufficient.Required)
	require.Equal(t, 10.0, insufficient.Available)
	require.Equal(t, 10.0, f.stock(t))

	list, err := f.svc.List(ctx, shared.Page{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCreateSaleValidation(t *testing.T) {
	f := newFixture(t, 10, sales.Options{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input sales.Input
		want  error
	}{
		{"no lines", sales.Input{}, shared.ErrInvalidInput},
		{"zero qty", sales.Input{Lines: []sales.LineInput{f.line(0)}}, shared.ErrInvalidInput},
		{"margin one", sales.Input{Lines: []sales.LineInput{f.line(1)}, Margin: ptr(1)}, shared.ErrInvalidInput},
		{"bad currency", sales.Input{Lines: []sales.LineInput{f.line(1)}, Currency: "XYZW"}, shared.ErrInvalidInput},
		{"foreign recipe", sales.Input{Lines: []sales.LineInput{{ProductID: uuid.New(), RecipeID: f.recipe.ID, Qty: 1}}}, shared.ErrInvalidInput},
		{"unknown recipe", sales.Input{Lines: []sales.LineInput{{ProductID: f.product.ID, RecipeID: uuid.New(), Qty: 1}}}, shared.ErrNotFound},
		{"negative price", sales.Input{Lines: []sales.LineInput{{ProductID: f.product.ID, RecipeID: f.recipe.ID, Qty: 1, SalePrice: ptr(-1)}}}, shared.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Equal(t, 10.0, f.stock(t))
}

func TestCreateSaleIdempotencyKey(t *testing.T) {
	f := newFixture(t, 10, sales.Options{})
	ctx := context.Background()

	input := sales.Input{Lines: []sales.LineInput{f.line(1)}, IdempotencyKey: "k-1"}
	_, err := f.svc.Create(ctx, input)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Equal(t, 8.0, f.stock(t))
}

func TestVoidRestoresStockOnce(t *testing.T) {
	f := newFixture(t, 10, sales.Options{})
	ctx := context.Background()

	sale, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(2)}})
	require.NoError(t, err)
	require.Equal(t, 6.0, f.stock(t))

	res, err := f.svc.Void(ctx, sale.ID, " duplicate ")
	require.NoError(t, err)
	require.Equal(t, sales.VoidApplied, res.Status)
	require.Len(t, res.Reversed, 1)
	require.Equal(t, inventory.RefSaleVoid, res.Reversed[0].RefType)
	require.Equal(t, 10.0, f.stock(t))

	res, err = f.svc.Void(ctx, sale.ID, "again")
	require.NoError(t, err)
	require.Equal(t, sales.VoidAlreadyVoided, res.Status)
	require.Equal(t, 10.0, f.stock(t))

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, got.Voided)
	require.NotNil(t, got.VoidReason)
	require.Equal(t, "duplicate", *got.VoidReason)
	require.Len(t, got.Movements, 2)

	_, err = f.svc.Void(ctx, uuid.New(), "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVoidWithoutMovementsIsNothingToReverse(t *testing.T) {
	f := newFixture(t, 10, sales.Options{})
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, f.store.Run(ctx, func(tx *memstore.Tx) error {
		return tx.InsertSale(ctx, sales.Sale{ID: id, Currency: "HNL", CreatedAt: time.Now().UTC()})
	}))

	res, err := f.svc.Void(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, sales.VoidNothingToReverse, res.Status)

	got, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, got.Voided)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t, 10, sales.Options{})
	ctx := context.Background()

	var ok, short atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(1)}})
			var insufficient *shared.InsufficientStockError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &insufficient):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 5, ok.Load())
	require.EqualValues(t, 3, short.Load())
	require.Zero(t, f.stock(t))
}

func TestOppositeLineOrderSalesDoNotDeadlock(t *testing.T) {
	store := memstore.New()
	u := store.SeedUnit("unidad", "Unidad")
	paper := store.SeedSupply("Hoja", u, 1000, 0.5)
	ink := store.SeedSupply("Tinta", u, 1000, 2)
	product := store.SeedProduct("Volante", masterdata.ProductFixed, 0.4)
	paperRecipe := store.SeedRecipe(product, "Solo hoja", recipes.Item{SupplyID: paper.ID, QtyBase: ptr(1)})
	inkRecipe := store.SeedRecipe(product, "Solo tinta", recipes.Item{SupplyID: ink.ID, QtyBase: ptr(1)})
	pack := store.SeedPresentation(paper, "Paquete 10", 10)

	svc := sales.NewService(store.Sales(), recipes.NewEngine(quantity.NewPolicy(nil)), sales.Options{})
	purchases := procurement.NewService(store.Procurement(), nil, nil, nil, nil)
	paperLine := sales.LineInput{ProductID: product.ID, RecipeID: paperRecipe.ID, Qty: 1}
	inkLine := sales.LineInput{ProductID: product.ID, RecipeID: inkRecipe.ID, Qty: 1}
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		lines := []sales.LineInput{paperLine, inkLine}
		if i%2 == 1 {
			lines = []sales.LineInput{inkLine, paperLine}
		}
		g.Go(func() error {
			_, err := svc.Create(ctx, sales.Input{Lines: lines, Margin: ptr(0.3)})
			return err
		})
		g.Go(func() error {
			_, err := purchases.RecordPurchase(ctx, procurement.PurchaseInput{
				SupplyID:       paper.ID,
				PresentationID: pack.ID,
				PacksQty:       1,
				TotalCost:      5,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := store.View().GetSupply(ctx, paper.ID)
	require.NoError(t, err)
	require.InDelta(t, 1450, got.StockOnHand, 1e-9)
	got, err = store.View().GetSupply(ctx, ink.ID)
	require.NoError(t, err)
	require.InDelta(t, 950, got.StockOnHand, 1e-9)
}

func TestSummaryCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, 100, sales.Options{Cache: sales.NewCache(client, time.Minute)})
	ctx := context.Background()

	sum, err := f.svc.Summary(ctx, "", false)
	require.NoError(t, err)
	require.Equal(t, "7d", sum.Period)
	require.Zero(t, sum.CountSales)

	sale, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(1)}, Margin: ptr(0.5)})
	require.NoError(t, err)
	sum, err = f.svc.Summary(ctx, "7d", false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.CountSales)
	require.Equal(t, 2.0, sum.TotalSale)
	require.Equal(t, 0.5, sum.Margin)

	_, err = f.svc.Void(ctx, sale.ID, "")
	require.NoError(t, err)
	sum, err = f.svc.Summary(ctx, "7d", false)
	require.NoError(t, err)
	require.Zero(t, sum.CountSales)
	sum, err = f.svc.Summary(ctx, "all", true)
	require.NoError(t, err)
	require.Equal(t, 1, sum.CountSales)

	_, err = f.svc.Summary(ctx, "2w", false)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSummaryFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, 100, sales.Options{Cache: sales.NewCache(client, time.Minute)})
	ctx := context.Background()
	mr.Close()

	_, err := f.svc.Create(ctx, sales.Input{Lines: []sales.LineInput{f.line(1)}})
	require.NoError(t, err)
	sum, err := f.svc.Summary(ctx, "1m", false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.CountSales)
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"7d": now.AddDate(0, 0, -7),
		"1m": now.AddDate(0, -1, 0),
		"3m": now.AddDate(0, -3, 0),
		"6m": now.AddDate(0, -6, 0),
		"9m": now.AddDate(0, -9, 0),
		"1y": now.AddDate(-1, 0, 0),
	}
	for period, want := range cases {
		since, ok := sales.PeriodStart(period, now)
		require.True(t, ok, period)
		require.NotNil(t, since)
		require.Equal(t, want, *since, period)
	}
	since, ok := sales.PeriodStart("all", now)
	require.True(t, ok)
	require.Nil(t, since)
	_, ok = sales.PeriodStart("5d", now)
	require.False(t, ok)
}
