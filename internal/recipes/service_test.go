package recipes_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/platform/memstore"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

func ptr(v float64) *float64 { return &v }

func TestRecipeLifecycleAndPricing(t *testing.T) {
	store := memstore.New()
	m2 := store.SeedUnit("m2", "Metro cuadrado")
	vinyl := store.SeedSupply("Vinil", m2, 100, 10)
	banner := store.SeedProduct("Banner", masterdata.ProductVariable, 0.4)
	svc := recipes.NewService(store.Recipes(), nil, "")
	ctx := context.Background()

	_, err := svc.CreateRecipe(ctx, recipes.RecipeInput{ProductID: uuid.New(), Name: "x"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.CreateRecipe(ctx, recipes.RecipeInput{ProductID: banner.ID, Name: "x", MarginTarget: ptr(1)})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	rec, err := svc.CreateRecipe(ctx, recipes.RecipeInput{ProductID: banner.ID, Name: " Banner lona "})
	require.NoError(t, err)
	require.Equal(t, "Banner lona", rec.Name)
	require.Equal(t, "Banner", rec.ProductName)
	require.True(t, rec.IsVariable())

	_, err = svc.AddItem(ctx, rec.ID, recipes.ItemInput{SupplyID: vinyl.ID, QtyBase: ptr(1)})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.AddItem(ctx, rec.ID, recipes.ItemInput{SupplyID: vinyl.ID, QtyFormula: "width * copies"})
	require.ErrorIs(t, err, shared.ErrInvalidFormula)

	_, err = svc.AddVariable(ctx, rec.ID, recipes.VariableInput{Code: "copies", MinValue: ptr(1), DefaultValue: ptr(1)})
	require.NoError(t, err)
	_, err = svc.AddVariable(ctx, rec.ID, recipes.VariableInput{Code: "Copies"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.AddVariable(ctx, rec.ID, recipes.VariableInput{Code: "ancho"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.AddItem(ctx, rec.ID, recipes.ItemInput{SupplyID: vinyl.ID, QtyFormula: "width * height * copies"})
	require.NoError(t, err)

	cost, err := svc.ComputeCost(ctx, recipes.CostRequest{RecipeID: rec.ID, Width: ptr(2), Height: ptr(1.5)})
	require.NoError(t, err)
	require.Len(t, cost.Items, 1)
	require.Equal(t, 3.0, cost.Items[0].QtyWithWaste)
	require.Equal(t, 30.0, cost.MaterialsCost)

	quote, err := svc.SuggestedPrice(ctx, recipes.PriceRequest{CostRequest: recipes.CostRequest{RecipeID: rec.ID, Width: ptr(2), Height: ptr(1.5)}})
	require.NoError(t, err)
	require.Equal(t, recipes.ModeMargin, quote.Mode)
	require.Equal(t, 0.4, quote.Value)
	require.Equal(t, 50.0, quote.SuggestedPrice)
	require.Equal(t, shared.DefaultCurrency, quote.Currency)

	markup, err := svc.SuggestedPrice(ctx, recipes.PriceRequest{
		CostRequest: recipes.CostRequest{RecipeID: rec.ID, Width: ptr(2), Height: ptr(1.5)},
		Mode:        recipes.ModeMarkup,
		Value:       ptr(0.5),
	})
	require.NoError(t, err)
	require.Equal(t, 45.0, markup.SuggestedPrice)

	_, err = svc.AddRule(ctx, rec.ID, recipes.RuleInput{Scope: recipes.ScopeGlobal, ConditionVar: "copies", Operator: ">=", ConditionValue: "2", EffectType: recipes.EffectMultiplier, EffectValue: 0.9})
	require.NoError(t, err)
	cost, err = svc.ComputeCost(ctx, recipes.CostRequest{RecipeID: rec.ID, Width: ptr(2), Height: ptr(1.5), Vars: map[string]float64{"copies": 2}})
	require.NoError(t, err)
	require.Equal(t, 54.0, cost.MaterialsCost)

	bundle, err := svc.GetBundle(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, bundle.Items, 1)
	require.Equal(t, "Vinil", bundle.Items[0].SupplyName)
	require.Len(t, bundle.Variables, 1)
	require.Len(t, bundle.Rules, 1)
}

func TestAddItemToFixedRecipe(t *testing.T) {
	store := memstore.New()
	u := store.SeedUnit("unidad", "Unidad")
	paper := store.SeedSupply("Hoja", u, 100, 0.5)
	flyer := store.SeedProduct("Volante", masterdata.ProductFixed, 0.4)
	svc := recipes.NewService(store.Recipes(), nil, "USD")
	ctx := context.Background()

	rec, err := svc.CreateRecipe(ctx, recipes.RecipeInput{ProductID: flyer.ID, Name: "Carta"})
	require.NoError(t, err)

	cases := []recipes.ItemInput{
		{SupplyID: paper.ID, QtyFormula: "width"},
		{SupplyID: paper.ID},
		{SupplyID: paper.ID, QtyBase: ptr(0)},
		{SupplyID: paper.ID, QtyBase: ptr(1), WastePct: 100},
	}
	for _, in := range cases {
		_, err := svc.AddItem(ctx, rec.ID, in)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	}
	_, err = svc.AddItem(ctx, rec.ID, recipes.ItemInput{SupplyID: uuid.New(), QtyBase: ptr(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)

	item, err := svc.AddItem(ctx, rec.ID, recipes.ItemInput{SupplyID: paper.ID, QtyBase: ptr(2), WastePct: 10})
	require.NoError(t, err)
	require.Equal(t, 2.0, *item.QtyBase)

	cost, err := svc.ComputeCost(ctx, recipes.CostRequest{RecipeID: rec.ID})
	require.NoError(t, err)
	// Piece units round 2 / 0.9 up to 3 pieces.
	require.Equal(t, 3.0, cost.Items[0].QtyWithWaste)
	require.Equal(t, 1.5, cost.MaterialsCost)
}

func TestUpdateMarginPropagates(t *testing.T) {
	store := memstore.New()
	flyer := store.SeedProduct("Volante", masterdata.ProductFixed, 0.4)
	svc := recipes.NewService(store.Recipes(), nil, "")
	ctx := context.Background()

	rec, err := svc.CreateRecipe(ctx, recipes.RecipeInput{ProductID: flyer.ID, Name: "Carta"})
	require.NoError(t, err)
	require.Equal(t, 0.4, rec.EffectiveMargin())

	rec, err = svc.UpdateMargin(ctx, rec.ID, 0.3, false)
	require.NoError(t, err)
	require.Equal(t, 0.3, rec.EffectiveMargin())
	require.Equal(t, 0.4, rec.ProductMargin)

	rec, err = svc.UpdateMargin(ctx, rec.ID, 0.25, true)
	require.NoError(t, err)
	require.Equal(t, 0.25, rec.ProductMargin)

	_, err = svc.UpdateMargin(ctx, rec.ID, -0.1, true)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.UpdateMargin(ctx, uuid.New(), 0.2, false)
	require.ErrorIs(t, err, shared.ErrNotFound)

	list, err := svc.ListRecipes(ctx, &flyer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAddOptionAndRuleValidation(t *testing.T) {
	store := memstore.New()
	u := store.SeedUnit("unidad", "Unidad")
	paper := store.SeedSupply("Hoja", u, 100, 0.5)
	card := store.SeedProduct("Tarjeta", masterdata.ProductVariable, 0.4)
	svc := recipes.NewService(store.Recipes(), nil, "")
	ctx := context.Background()

	rec, err := svc.CreateRecipe(ctx, recipes.RecipeInput{ProductID: card.ID, Name: "Tarjeta"})
	require.NoError(t, err)

	_, err = svc.AddOption(ctx, rec.ID, recipes.OptionInput{Code: "sides"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = svc.AddOption(ctx, rec.ID, recipes.OptionInput{Code: "sides", Values: []recipes.OptionValueInput{{ValueKey: "one"}, {ValueKey: "one"}}})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	opt, err := svc.AddOption(ctx, rec.ID, recipes.OptionInput{Code: "sides", Values: []recipes.OptionValueInput{
		{ValueKey: "one", NumericValue: 1},
		{ValueKey: "two", NumericValue: 2},
	}})
	require.NoError(t, err)
	require.Len(t, opt.Values, 2)
	require.Equal(t, "one", opt.Values[0].Label)

	bad := []recipes.RuleInput{
		{Scope: recipes.ScopeSupply, ConditionVar: "sides", Operator: "==", EffectType: recipes.EffectAddQty},
		{Scope: recipes.ScopeGlobal, ConditionVar: "sides", Operator: "==", EffectType: recipes.EffectAddQty},
		{Scope: recipes.ScopeGlobal, ConditionVar: "sides", Operator: "~", EffectType: recipes.EffectMultiplier, EffectValue: 2},
		{Scope: recipes.ScopeGlobal, ConditionVar: "sides", Operator: "==", EffectType: recipes.EffectMultiplier},
		{Scope: "other", ConditionVar: "sides", Operator: "==", EffectType: recipes.EffectMultiplier, EffectValue: 2},
	}
	for _, in := range bad {
		_, err := svc.AddRule(ctx, rec.ID, in)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	}
	_, err = svc.AddRule(ctx, rec.ID, recipes.RuleInput{Scope: recipes.ScopeSupply, TargetSupplyID: &paper.ID, ConditionVar: "sides", Operator: "==", ConditionValue: "two", EffectType: recipes.EffectAddQty, EffectValue: 1})
	require.NoError(t, err)
}
