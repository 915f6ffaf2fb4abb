package production_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/platform/memstore"
	"github.com/sdsinventory/backend/internal/production"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

func ptr(v float64) *float64 { return &v }

type fixture struct {
	store   *memstore.Store
	svc     *production.Service
	product masterdata.Product
	recipe  recipes.Recipe
	paper   inventory.Supply
	glue    inventory.Supply
}

func newFixture(t *testing.T, paperStock, glueStock float64) fixture {
	t.Helper()
	store := memstore.New()
	piece := store.SeedUnit("unidad", "Unidad")
	kg := store.SeedUnit("kg", "Kilogramo")
	paper := store.SeedSupply("Hoja", piece, paperStock, 0.5)
	glue := store.SeedSupply("Pegamento", kg, glueStock, 10)
	product := store.SeedProduct("Libreta", masterdata.ProductFixed, 0.4)
	recipe := store.SeedRecipe(product, "Libreta base",
		recipes.Item{SupplyID: paper.ID, QtyBase: ptr(5), WastePct: 10},
		recipes.Item{SupplyID: glue.ID, QtyBase: ptr(0.2), WastePct: 5},
	)
	policy := quantity.NewPolicy(quantity.NewPieceUnits(store.View(), 0, nil))
	svc := production.NewService(store.Production(), policy, store, nil, "", nil)
	return fixture{store: store, svc: svc, product: product, recipe: recipe, paper: paper, glue: glue}
}

func (f fixture) stock(t *testing.T, id uuid.UUID) float64 {
	t.Helper()
	s, err := f.store.View().GetSupply(context.Background(), id)
	require.NoError(t, err)
	return s.StockOnHand
}

func TestProduceConsumesWithWaste(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	res, err := f.svc.Produce(ctx, production.Input{ProductID: f.product.ID, RecipeID: f.recipe.ID, Qty: 2})
	require.NoError(t, err)
	require.Equal(t, shared.DefaultCurrency, res.Currency)
	require.Len(t, res.Consumptions, 2)
	// 12 pieces at 0.5 plus 0.42 kg at 10.
	require.Equal(t, 12.0, res.Consumptions[0].QtyBase)
	require.Equal(t, 0.42, res.Consumptions[1].QtyBase)
	require.Equal(t, 10.2, res.MaterialsCost)

	require.Equal(t, 88.0, f.stock(t, f.paper.ID))
	require.InDelta(t, 4.58, f.stock(t, f.glue.ID), 1e-9)

	order, err := f.svc.GetOrder(ctx, res.ProductionID)
	require.NoError(t, err)
	require.Len(t, order.Movements, 2)
	for _, m := range order.Movements {
		require.Equal(t, inventory.MovementOut, m.Type)
		require.Equal(t, inventory.RefProduction, m.RefType)
	}

	orders, err := f.svc.ListOrders(ctx, shared.Page{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, f.store.AuditLogs(), 1)
}

func TestProduceDefaultsQtyToOne(t *testing.T) {
	f := newFixture(t, 100, 5)
	res, err := f.svc.Produce(context.Background(), production.Input{ProductID: f.product.ID, RecipeID: f.recipe.ID})
	require.NoError(t, err)
	require.Equal(t, 6.0, res.Consumptions[0].QtyBase)
}

func TestProduceInsufficientStockLeavesStockUnchanged(t *testing.T) {
	f := newFixture(t, 100, 0.3)
	ctx := context.Background()

	_, err := f.svc.Produce(ctx, production.Input{ProductID: f.product.ID, RecipeID: f.recipe.ID, Qty: 2})
	var insufficient *shared.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, f.glue.ID.String(), insufficient.SupplyID)
	require.InDelta(t, 0.42, insufficient.Required, 1e-9)

	require.Equal(t, 100.0, f.stock(t, f.paper.ID))
	require.Equal(t, 0.3, f.stock(t, f.glue.ID))
	orders, err := f.svc.ListOrders(ctx, shared.Page{})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestProduceRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	_, err := f.svc.Produce(ctx, production.Input{ProductID: f.product.ID, RecipeID: f.recipe.ID, Qty: -1})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.svc.Produce(ctx, production.Input{ProductID: uuid.New(), RecipeID: f.recipe.ID, Qty: 1})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.svc.Produce(ctx, production.Input{ProductID: f.product.ID, RecipeID: uuid.New(), Qty: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	empty := f.store.SeedRecipe(f.product, "Vacia")
	_, err = f.svc.Produce(ctx, production.Input{ProductID: f.product.ID, RecipeID: empty.ID, Qty: 1})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	formula := f.store.SeedRecipe(f.product, "Formula", recipes.Item{SupplyID: f.paper.ID, QtyFormula: "w*h"})
	_, err = f.svc.Produce(ctx, production.Input{ProductID: f.product.ID, RecipeID: formula.ID, Qty: 1})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	require.Equal(t, 100.0, f.stock(t, f.paper.ID))
}

func TestProducePieceWasteAppliesToRunTotal(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()
	product := f.store.SeedProduct("Tarjeta", masterdata.ProductFixed, 0.4)
	recipe := f.store.SeedRecipe(product, "Tarjeta simple",
		recipes.Item{SupplyID: f.paper.ID, QtyBase: ptr(1), WastePct: 20},
	)

	res, err := f.svc.Produce(ctx, production.Input{ProductID: product.ID, RecipeID: recipe.ID, Qty: 10})
	require.NoError(t, err)
	require.Len(t, res.Consumptions, 1)
	// ceil(10 / 0.8), not ceil(1 / 0.8) * 10.
	require.Equal(t, 13.0, res.Consumptions[0].QtyBase)
	require.Equal(t, 87.0, f.stock(t, f.paper.ID))
}
