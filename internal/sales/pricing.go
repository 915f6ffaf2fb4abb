package sales

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

// Consumption is the stock one line draws from a supply.
type Consumption struct {
	SupplyID uuid.UUID
	Qty      float64
}

// PricedLine is a line costed and priced but not yet persisted.
type PricedLine struct {
	Input          LineInput
	MaterialsUnit  float64
	MaterialsTotal float64
	Operational    float64
	SuggestedUnit  float64
	SaleUnit       float64
	LineTotal      float64
	Profit         float64
	Consumptions   []Consumption
}

// Pricing is the full costing of a set of lines under one margin.
type Pricing struct {
	Lines            []PricedLine
	Needs            map[uuid.UUID]float64
	Margin           float64
	MaterialsTotal   float64
	OperationalTotal float64
	TotalSale        float64
	TotalCost        float64
	TotalProfit      float64
	PeriodID         *uuid.UUID
}

// Price costs every line in strict mode, spreads the active period's
// operational cost per order across the lines by materials share and derives
// suggested prices, profit and the stock each supply must cover.
func (s *Service) Price(ctx context.Context, r PricingReader, lines []LineInput, margin float64) (Pricing, error) {
	if len(lines) == 0 {
		return Pricing{}, shared.Invalid("at least one line is required")
	}
	if margin < 0 || margin >= 1 {
		return Pricing{}, shared.Invalid("margin must be between 0 and < 1")
	}
	out := Pricing{
		Lines:  make([]PricedLine, 0, len(lines)),
		Needs:  make(map[uuid.UUID]float64),
		Margin: margin,
	}
	materials := make([]float64, 0, len(lines))
	for i, line := range lines {
		n := i + 1
		if line.Qty <= 0 {
			return Pricing{}, shared.Invalid("line %d: qty must be > 0", n)
		}
		bundle, err := r.LoadRecipeBundle(ctx, line.RecipeID)
		if err != nil {
			return Pricing{}, fmt.Errorf("line %d: %w", n, err)
		}
		if bundle.Recipe.ProductID != line.ProductID {
			return Pricing{}, shared.Invalid("line %d: recipe %s does not belong to product %s", n, line.RecipeID, line.ProductID)
		}
		cost, err := s.engine.ComputeBundle(ctx, bundle, recipes.CostRequest{
			RecipeID: line.RecipeID,
			Width:    line.Width,
			Height:   line.Height,
			Vars:     line.Vars,
			Opts:     line.Opts,
			Strict:   true,
		})
		if err != nil {
			return Pricing{}, fmt.Errorf("line %d: %w", n, err)
		}
		if len(cost.Items) == 0 {
			return Pricing{}, shared.Invalid("line %d: recipe %s has no items", n, line.RecipeID)
		}
		pl := PricedLine{
			Input:          line,
			MaterialsUnit:  cost.MaterialsCost,
			MaterialsTotal: cost.MaterialsCost * line.Qty,
		}
		for _, item := range cost.Items {
			qty := item.QtyWithWaste * line.Qty
			if qty <= 0 {
				continue
			}
			pl.Consumptions = append(pl.Consumptions, Consumption{SupplyID: item.SupplyID, Qty: qty})
			out.Needs[item.SupplyID] += qty
		}
		out.Lines = append(out.Lines, pl)
		materials = append(materials, pl.MaterialsTotal)
		out.MaterialsTotal += pl.MaterialsTotal
	}

	overhead, err := fixedcosts.ActivePeriodSummary(ctx, r)
	if err != nil {
		return Pricing{}, err
	}
	out.OperationalTotal = overhead.CostPerOrder
	out.PeriodID = overhead.PeriodID
	allocs := fixedcosts.Allocate(out.OperationalTotal, materials)

	for i := range out.Lines {
		pl := &out.Lines[i]
		pl.Operational = allocs[i]
		pl.SuggestedUnit = (pl.MaterialsUnit + pl.Operational/pl.Input.Qty) / (1 - margin)
		pl.SaleUnit = pl.SuggestedUnit
		if pl.Input.SalePrice != nil {
			if *pl.Input.SalePrice < 0 {
				return Pricing{}, shared.Invalid("line %d: sale_price must be >= 0", i+1)
			}
			pl.SaleUnit = *pl.Input.SalePrice
		}
		pl.LineTotal = pl.SaleUnit * pl.Input.Qty
		pl.Profit = pl.LineTotal - (pl.MaterialsTotal + pl.Operational)
		out.TotalSale += pl.LineTotal
	}
	out.TotalCost = out.MaterialsTotal + out.OperationalTotal
	out.TotalProfit = out.TotalSale - out.TotalCost
	return out, nil
}

// PayloadOf returns the non-nil variable and option maps of line.
func PayloadOf(line LineInput) Payload {
	p := Payload{Vars: line.Vars, Opts: line.Opts}
	if p.Vars == nil {
		p.Vars = map[string]float64{}
	}
	if p.Opts == nil {
		p.Opts = map[string]string{}
	}
	return p
}
