package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/shared"
)

func (t *Tx) recipe(id uuid.UUID) (recipes.Recipe, error) {
	i := indexOf(t.s.data.recipes, func(r recipes.Recipe) bool { return r.ID == id })
	if i < 0 {
		return recipes.Recipe{}, shared.NotFound("recipe", id)
	}
	rec := t.s.data.recipes[i]
	if p, err := t.product(rec.ProductID); err == nil {
		rec.ProductName = p.Name
		rec.ProductType = p.Type
		rec.ProductMargin = p.MarginTarget
	}
	return rec, nil
}

func (t *Tx) GetRecipe(ctx context.Context, id uuid.UUID) (recipes.Recipe, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.recipe(id)
}

func (t *Tx) ListRecipes(ctx context.Context, productID *uuid.UUID) ([]recipes.Recipe, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []recipes.Recipe
	for _, row := range reversed(t.s.data.recipes) {
		if productID != nil && row.ProductID != *productID {
			continue
		}
		rec, _ := t.recipe(row.ID)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *Tx) LoadRecipeBundle(ctx context.Context, id uuid.UUID) (recipes.Bundle, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rec, err := t.recipe(id)
	if err != nil {
		return recipes.Bundle{}, err
	}
	b := recipes.Bundle{Recipe: rec}
	for _, it := range t.s.data.recipeItems {
		if it.RecipeID != id {
			continue
		}
		if s, _, err := t.supply(it.SupplyID); err == nil {
			it.SupplyName = s.Name
			it.UnitCode = s.UnitCode
			it.UnitName = s.UnitName
			it.AvgUnitCost = s.AvgUnitCost
		}
		b.Items = append(b.Items, it)
	}
	for _, v := range t.s.data.variables {
		if v.RecipeID == id {
			b.Variables = append(b.Variables, v)
		}
	}
	sort.SliceStable(b.Variables, func(i, j int) bool { return b.Variables[i].Code < b.Variables[j].Code })
	for _, o := range t.s.data.options {
		if o.RecipeID == id {
			o.Values = slices.Clone(o.Values)
			b.Options = append(b.Options, o)
		}
	}
	for _, r := range t.s.data.rules {
		if r.RecipeID == id {
			b.Rules = append(b.Rules, r)
		}
	}
	return b, nil
}

func (t *Tx) InsertRecipe(ctx context.Context, rec recipes.Recipe) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, err := t.product(rec.ProductID); err != nil {
		return err
	}
	t.s.data.recipes = append(t.s.data.recipes, rec)
	t.onRollback(func() {
		t.s.data.recipes = remove(t.s.data.recipes, func(r recipes.Recipe) bool { return r.ID == rec.ID })
	})
	return nil
}

func (t *Tx) UpdateRecipeMargin(ctx context.Context, id uuid.UUID, margin float64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.recipes, func(r recipes.Recipe) bool { return r.ID == id })
	if i < 0 {
		return shared.NotFound("recipe", id)
	}
	prev := t.s.data.recipes[i].MarginTarget
	t.s.data.recipes[i].MarginTarget = &margin
	t.onRollback(func() {
		if j := indexOf(t.s.data.recipes, func(r recipes.Recipe) bool { return r.ID == id }); j >= 0 {
			t.s.data.recipes[j].MarginTarget = prev
		}
	})
	return nil
}

func (t *Tx) InsertRecipeItem(ctx context.Context, item recipes.Item) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.recipeItems = append(t.s.data.recipeItems, item)
	t.onRollback(func() {
		t.s.data.recipeItems = remove(t.s.data.recipeItems, func(x recipes.Item) bool { return x.ID == item.ID })
	})
	return nil
}

func (t *Tx) InsertRecipeVariable(ctx context.Context, v recipes.Variable) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.variables = append(t.s.data.variables, v)
	t.onRollback(func() {
		t.s.data.variables = remove(t.s.data.variables, func(x recipes.Variable) bool { return x.ID == v.ID })
	})
	return nil
}

func (t *Tx) InsertRecipeOption(ctx context.Context, opt recipes.Option) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	opt.Values = slices.Clone(opt.Values)
	t.s.data.options = append(t.s.data.options, opt)
	t.onRollback(func() {
		t.s.data.options = remove(t.s.data.options, func(x recipes.Option) bool { return x.ID == opt.ID })
	})
	return nil
}

func (t *Tx) InsertRecipeRule(ctx context.Context, rule recipes.Rule) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.rules = append(t.s.data.rules, rule)
	t.onRollback(func() {
		t.s.data.rules = remove(t.s.data.rules, func(x recipes.Rule) bool { return x.ID == rule.ID })
	})
	return nil
}
