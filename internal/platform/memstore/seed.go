package memstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/procurement"
	"github.com/sdsinventory/backend/internal/recipes"
)

// Seed helpers write committed rows directly, bypassing services.

func (s *Store) SeedUnit(code, name string) masterdata.Unit {
	u := masterdata.Unit{ID: uuid.New(), Code: code, Name: name}
	s.mu.Lock()
	s.data.units = append(s.data.units, u)
	s.mu.Unlock()
	return u
}

func (s *Store) SeedSupply(name string, unit masterdata.Unit, stock, avg float64) inventory.Supply {
	sup := inventory.Supply{
		ID:          uuid.New(),
		Name:        name,
		UnitBaseID:  unit.ID,
		UnitCode:    unit.Code,
		UnitName:    unit.Name,
		StockOnHand: stock,
		AvgUnitCost: avg,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.data.supplies = append(s.data.supplies, sup)
	if stock > 0 {
		s.data.movements = append(s.data.movements, inventory.Movement{
			ID:               uuid.New(),
			SupplyID:         sup.ID,
			Type:             inventory.MovementIn,
			QtyBase:          stock,
			UnitCostSnapshot: avg,
			RefType:          inventory.RefPurchase,
			RefID:            uuid.New(),
			CreatedAt:        sup.CreatedAt,
		})
	}
	s.mu.Unlock()
	return sup
}

func (s *Store) SeedPresentation(supply inventory.Supply, name string, unitsInBase float64) procurement.Presentation {
	p := procurement.Presentation{ID: uuid.New(), SupplyID: supply.ID, Name: name, UnitsInBase: unitsInBase, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.data.presentations = append(s.data.presentations, p)
	s.mu.Unlock()
	return p
}

func (s *Store) SeedProduct(name string, kind masterdata.ProductType, margin float64) masterdata.Product {
	p := masterdata.Product{ID: uuid.New(), Name: name, Type: kind, UnitSale: "unidad", MarginTarget: margin, Active: true, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.data.products = append(s.data.products, p)
	s.mu.Unlock()
	return p
}

// SeedRecipe stores a recipe for product with literal quantities per supply.
func (s *Store) SeedRecipe(product masterdata.Product, name string, items ...recipes.Item) recipes.Recipe {
	r := recipes.Recipe{ID: uuid.New(), ProductID: product.ID, Name: name, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.recipes = append(s.data.recipes, r)
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.RecipeID = r.ID
		s.data.recipeItems = append(s.data.recipeItems, it)
	}
	r.ProductName, r.ProductType, r.ProductMargin = product.Name, product.Type, product.MarginTarget
	return r
}

func (s *Store) SeedRecipeVariable(v recipes.Variable) {
	s.mu.Lock()
	s.data.variables = append(s.data.variables, v)
	s.mu.Unlock()
}

func (s *Store) SeedRecipeOption(o recipes.Option) {
	s.mu.Lock()
	s.data.options = append(s.data.options, o)
	s.mu.Unlock()
}

func (s *Store) SeedRecipeRule(r recipes.Rule) {
	s.mu.Lock()
	s.data.rules = append(s.data.rules, r)
	s.mu.Unlock()
}

// SeedPeriod stores an active period with one cost item totalling amount.
func (s *Store) SeedPeriod(estimatedOrders int, amount float64) fixedcosts.Period {
	now := time.Now().UTC()
	p := fixedcosts.Period{ID: uuid.New(), Year: now.Year(), Month: int(now.Month()), EstimatedOrders: estimatedOrders, Currency: "HNL", Active: true, CreatedAt: now}
	s.mu.Lock()
	for i := range s.data.periods {
		s.data.periods[i].Active = false
	}
	s.data.periods = append(s.data.periods, p)
	s.data.costItems = append(s.data.costItems, fixedcosts.Item{ID: uuid.New(), PeriodID: p.ID, Name: "rent", Amount: amount, CreatedAt: now})
	s.mu.Unlock()
	return p
}
