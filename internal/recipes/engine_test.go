package recipes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/shared"
)

type bundleStub struct {
	bundle Bundle
}

func (s bundleStub) LoadRecipeBundle(_ context.Context, id uuid.UUID) (Bundle, error) {
	if id != s.bundle.Recipe.ID {
		return Bundle{}, shared.NotFound("recipe", id)
	}
	return s.bundle, nil
}

func ptr(v float64) *float64 { return &v }

func fixedBundle(items ...Item) Bundle {
	return Bundle{
		Recipe: Recipe{ID: uuid.New(), ProductID: uuid.New(), ProductType: masterdata.ProductFixed, Name: "fixed"},
		Items:  items,
	}
}

func variableBundle(items ...Item) Bundle {
	b := fixedBundle(items...)
	b.Recipe.ProductType = masterdata.ProductVariable
	return b
}

func literal(supply uuid.UUID, qty, avg float64, unit string) Item {
	return Item{ID: uuid.New(), SupplyID: supply, SupplyName: "s", UnitCode: unit, UnitName: unit, AvgUnitCost: avg, QtyBase: ptr(qty)}
}

func formulaItem(supply uuid.UUID, src string, avg float64, unit string, waste float64) Item {
	return Item{ID: uuid.New(), SupplyID: supply, SupplyName: "s", UnitCode: unit, UnitName: unit, AvgUnitCost: avg, QtyFormula: src, WastePct: waste}
}

func compute(t *testing.T, b Bundle, req CostRequest) (CostBreakdown, error) {
	t.Helper()
	req.RecipeID = b.Recipe.ID
	return NewEngine(nil).Compute(context.Background(), bundleStub{bundle: b}, req)
}

func TestComputeFixedRecipe(t *testing.T) {
	supply := uuid.New()
	out, err := compute(t, fixedBundle(literal(supply, 2, 0.5, "kg")), CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 1.0, out.MaterialsCost)
	require.False(t, out.IsVariable)
	require.Len(t, out.Items, 1)
	require.Equal(t, 2.0, out.Items[0].QtyWithWaste)
	require.Equal(t, masterdata.DefaultMargin, out.MarginTarget)
}

func TestComputeRoundsTotalNotLines(t *testing.T) {
	var items []Item
	for i := 0; i < 10; i++ {
		items = append(items, literal(uuid.New(), 1, 0.004, "kg"))
	}
	out, err := compute(t, fixedBundle(items...), CostRequest{})
	require.NoError(t, err)

	var lineSum float64
	for _, it := range out.Items {
		require.Equal(t, 0.0, it.LineCost)
		lineSum += it.LineCost
	}
	require.Equal(t, 0.04, out.MaterialsCost)
	require.Greater(t, out.MaterialsCost-lineSum, 0.01)
}

func TestComputeFormulaWithWaste(t *testing.T) {
	b := variableBundle(formulaItem(uuid.New(), "width * height * 2", 1, "kg", 10))
	out, err := compute(t, b, CostRequest{Width: ptr(2), Height: ptr(3)})
	require.NoError(t, err)
	require.True(t, out.IsVariable)
	require.Equal(t, 12.0, out.Items[0].QtyBase)
	require.InDelta(t, 13.2, out.Items[0].QtyWithWaste, 1e-9)
	require.Equal(t, 13.2, out.MaterialsCost)
	require.Equal(t, 2.0, out.Variables["ancho"])
	require.Equal(t, 3.0, out.Variables["h"])
}

func TestComputePieceUnitWasteRoundsUp(t *testing.T) {
	b := fixedBundle(literal(uuid.New(), 100, 1, "unidad"))
	b.Items[0].WastePct = 20
	out, err := compute(t, b, CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 125.0, out.Items[0].QtyWithWaste)
	require.Equal(t, 125.0, out.MaterialsCost)
}

func TestComputeDimensions(t *testing.T) {
	b := variableBundle(formulaItem(uuid.New(), "w * 3", 1, "m", 0))

	out, err := compute(t, b, CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 3.0, out.MaterialsCost)

	_, err = compute(t, b, CostRequest{Strict: true})
	require.ErrorIs(t, err, shared.ErrMissingVariable)

	_, err = compute(t, b, CostRequest{Width: ptr(0)})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	out, err = compute(t, b, CostRequest{Strict: true, Width: ptr(1.5)})
	require.NoError(t, err)
	require.Equal(t, 4.5, out.MaterialsCost)
}

func TestComputeStrictWithoutDimensionsWhenUnused(t *testing.T) {
	b := fixedBundle(literal(uuid.New(), 2, 1, "kg"))
	out, err := compute(t, b, CostRequest{Strict: true})
	require.NoError(t, err)
	require.Equal(t, 2.0, out.MaterialsCost)
	require.NotContains(t, out.Variables, "width")
}

func TestComputeVariables(t *testing.T) {
	b := variableBundle(formulaItem(uuid.New(), "layers * 2", 1, "kg", 0))
	b.Variables = []Variable{{Code: "Layers", MinValue: ptr(1), MaxValue: ptr(4)}}

	out, err := compute(t, b, CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 2.0, out.MaterialsCost, "permissive mode falls back to the minimum")

	_, err = compute(t, b, CostRequest{Strict: true})
	require.ErrorIs(t, err, shared.ErrMissingVariable)

	out, err = compute(t, b, CostRequest{Strict: true, Vars: map[string]float64{" LAYERS ": 3}})
	require.NoError(t, err)
	require.Equal(t, 6.0, out.MaterialsCost)

	_, err = compute(t, b, CostRequest{Vars: map[string]float64{"layers": 5}})
	require.ErrorIs(t, err, shared.ErrOutOfRange)

	b.Variables[0].DefaultValue = ptr(2)
	out, err = compute(t, b, CostRequest{Strict: true})
	require.NoError(t, err)
	require.Equal(t, 4.0, out.MaterialsCost)
}

func TestComputeIgnoresUndeclaredVariables(t *testing.T) {
	b := variableBundle(formulaItem(uuid.New(), "w * 2", 1, "kg", 0))
	out, err := compute(t, b, CostRequest{Vars: map[string]float64{"extra": 9}})
	require.NoError(t, err)
	require.NotContains(t, out.Variables, "extra")
}

func TestComputeOptions(t *testing.T) {
	b := variableBundle(formulaItem(uuid.New(), "finish * w", 1, "kg", 0))
	b.Options = []Option{{Code: "finish", Values: []OptionValue{
		{ValueKey: "matte", NumericValue: 2},
		{ValueKey: "gloss", NumericValue: 3},
	}}}

	out, err := compute(t, b, CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 2.0, out.MaterialsCost)
	require.Equal(t, "matte", out.Options["finish"])

	_, err = compute(t, b, CostRequest{Strict: true, Width: ptr(1)})
	require.ErrorIs(t, err, shared.ErrMissingOption)

	_, err = compute(t, b, CostRequest{Opts: map[string]string{"finish": "satin"}})
	require.ErrorIs(t, err, shared.ErrInvalidOption)

	out, err = compute(t, b, CostRequest{Strict: true, Width: ptr(2), Opts: map[string]string{"FINISH": "gloss"}})
	require.NoError(t, err)
	require.Equal(t, 6.0, out.MaterialsCost)
}

func TestComputeSupplyRulesComposeInOrder(t *testing.T) {
	supply := uuid.New()
	b := fixedBundle(literal(supply, 2, 1, "kg"))
	double := Rule{Scope: ScopeSupply, TargetSupplyID: &supply, ConditionVar: "width", Operator: ">", ConditionValue: "0", EffectType: EffectMultiplier, EffectValue: 2}
	addOne := Rule{Scope: ScopeSupply, TargetSupplyID: &supply, ConditionVar: "width", Operator: ">", ConditionValue: "0", EffectType: EffectAddQty, EffectValue: 1}

	b.Rules = []Rule{double, addOne}
	out, err := compute(t, b, CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 5.0, out.MaterialsCost)

	b.Rules = []Rule{addOne, double}
	out, err = compute(t, b, CostRequest{})
	require.NoError(t, err)
	require.Equal(t, 6.0, out.MaterialsCost)
}

func TestComputeRuleConditions(t *testing.T) {
	supply, other := uuid.New(), uuid.New()
	b := fixedBundle(literal(supply, 2, 1, "kg"), literal(other, 1, 1, "kg"))
	b.Options = []Option{{Code: "color", Values: []OptionValue{{ValueKey: "red", NumericValue: 1}, {ValueKey: "blue", NumericValue: 2}}}}
	b.Rules = []Rule{
		{Scope: ScopeSupply, TargetSupplyID: &supply, ConditionVar: "color", Operator: "==", ConditionValue: "blue", EffectType: EffectMultiplier, EffectValue: 3},
		{Scope: ScopeSupply, TargetSupplyID: &supply, ConditionVar: "unknown", Operator: "==", ConditionValue: "1", EffectType: EffectAddQty, EffectValue: 100},
		{Scope: ScopeGlobal, ConditionVar: "w", Operator: ">=", ConditionValue: "1", EffectType: EffectMultiplier, EffectValue: 1.5},
	}

	out, err := compute(t, b, CostRequest{Opts: map[string]string{"color": "red"}})
	require.NoError(t, err)
	require.Equal(t, 2.0, out.Items[0].QtyBase)
	require.Equal(t, 4.5, out.MaterialsCost)

	out, err = compute(t, b, CostRequest{Opts: map[string]string{"color": "blue"}})
	require.NoError(t, err)
	require.Equal(t, 6.0, out.Items[0].QtyBase)
	require.Equal(t, 1.0, out.Items[1].QtyBase)
	require.Equal(t, 10.5, out.MaterialsCost)

	b.Rules = []Rule{{Scope: ScopeGlobal, ConditionVar: "w", Operator: "==", ConditionValue: "wide", EffectType: EffectMultiplier, EffectValue: 2}}
	_, err = compute(t, b, CostRequest{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestComputeRejectsFormulaInFixedRecipe(t *testing.T) {
	b := fixedBundle(formulaItem(uuid.New(), "w * 2", 1, "kg", 0))
	_, err := compute(t, b, CostRequest{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestComputeUnknownFormulaName(t *testing.T) {
	b := variableBundle(formulaItem(uuid.New(), "depth * 2", 1, "kg", 0))
	_, err := compute(t, b, CostRequest{})
	require.ErrorIs(t, err, shared.ErrUnknownVariable)
}

func TestComputeRecipeNotFound(t *testing.T) {
	_, err := NewEngine(nil).Compute(context.Background(), bundleStub{bundle: fixedBundle()}, CostRequest{RecipeID: uuid.New()})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPriceFromCost(t *testing.T) {
	price, err := PriceFromCost(1, ModeMargin, 0.5)
	require.NoError(t, err)
	require.Equal(t, 2.0, price)

	price, err = PriceFromCost(1, ModeMarkup, 0.5)
	require.NoError(t, err)
	require.Equal(t, 1.5, price)

	_, err = PriceFromCost(1, ModeMargin, 1)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = PriceFromCost(1, ModeMarkup, -0.1)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = PriceFromCost(1, PriceMode("discount"), 0.1)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestEffectiveMargin(t *testing.T) {
	r := Recipe{}
	require.Equal(t, masterdata.DefaultMargin, r.EffectiveMargin())
	r.ProductMargin = 0.3
	require.Equal(t, 0.3, r.EffectiveMargin())
	r.MarginTarget = ptr(0)
	require.Equal(t, 0.0, r.EffectiveMargin())
}
