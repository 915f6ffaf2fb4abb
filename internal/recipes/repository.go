package recipes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/shared"
)

// RecipeStore runs recipe queries against a pool or a transaction.
type RecipeStore struct {
	db db.DBTX
}

// NewRecipeStore wraps q.
func NewRecipeStore(q db.DBTX) *RecipeStore {
	return &RecipeStore{db: q}
}

// Repository persists recipes in PostgreSQL.
type Repository struct {
	*RecipeStore
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{RecipeStore: NewRecipeStore(pool), pool: pool}
}

type txStore struct {
	*RecipeStore
	*masterdata.CatalogStore
	*inventory.SupplyStore
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txStore{
			RecipeStore:  NewRecipeStore(tx),
			CatalogStore: masterdata.NewCatalogStore(tx),
			SupplyStore:  inventory.NewSupplyStore(tx),
		})
	})
}

const recipeSelect = `SELECT r.id, r.product_id, p.name, p.product_type, p.margin_target, r.name, r.margin_target, r.created_at
FROM recipes r JOIN products p ON p.id = r.product_id`

func scanRecipe(row pgx.Row) (Recipe, error) {
	var rec Recipe
	var productType string
	err := row.Scan(&rec.ID, &rec.ProductID, &rec.ProductName, &productType, &rec.ProductMargin, &rec.Name, &rec.MarginTarget, &rec.CreatedAt)
	rec.ProductType = masterdata.ProductType(productType)
	return rec, err
}

func (s *RecipeStore) GetRecipe(ctx context.Context, id uuid.UUID) (Recipe, error) {
	rec, err := scanRecipe(s.db.QueryRow(ctx, recipeSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipe{}, shared.NotFound("recipe", id)
	}
	return rec, err
}

func (s *RecipeStore) ListRecipes(ctx context.Context, productID *uuid.UUID) ([]Recipe, error) {
	rows, err := s.db.Query(ctx, recipeSelect+` WHERE ($1::uuid IS NULL OR r.product_id = $1) ORDER BY r.created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RecipeStore) LoadRecipeBundle(ctx context.Context, id uuid.UUID) (Bundle, error) {
	rec, err := s.GetRecipe(ctx, id)
	if err != nil {
		return Bundle{}, err
	}
	b := Bundle{Recipe: rec}
	if b.Items, err = s.listItems(ctx, id); err != nil {
		return Bundle{}, err
	}
	if b.Variables, err = s.listVariables(ctx, id); err != nil {
		return Bundle{}, err
	}
	if b.Options, err = s.listOptions(ctx, id); err != nil {
		return Bundle{}, err
	}
	if b.Rules, err = s.listRules(ctx, id); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

func (s *RecipeStore) listItems(ctx context.Context, recipeID uuid.UUID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `SELECT ri.id, ri.recipe_id, ri.supply_id, s.name, u.code, u.name, s.avg_unit_cost,
    ri.qty_base, COALESCE(ri.qty_formula, ''), ri.waste_pct
FROM recipe_items ri
JOIN supplies s ON s.id = ri.supply_id
JOIN units u ON u.id = s.unit_base_id
WHERE ri.recipe_id = $1 ORDER BY ri.seq`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.RecipeID, &it.SupplyID, &it.SupplyName, &it.UnitCode, &it.UnitName, &it.AvgUnitCost,
			&it.QtyBase, &it.QtyFormula, &it.WastePct); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *RecipeStore) listVariables(ctx context.Context, recipeID uuid.UUID) ([]Variable, error) {
	rows, err := s.db.Query(ctx, `SELECT id, recipe_id, code, label, min_value, max_value, default_value
FROM recipe_variables WHERE recipe_id = $1 ORDER BY code`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Variable
	for rows.Next() {
		var v Variable
		if err := rows.Scan(&v.ID, &v.RecipeID, &v.Code, &v.Label, &v.MinValue, &v.MaxValue, &v.DefaultValue); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *RecipeStore) listOptions(ctx context.Context, recipeID uuid.UUID) ([]Option, error) {
	rows, err := s.db.Query(ctx, `SELECT o.id, o.recipe_id, o.code, o.label, v.id, v.value_key, v.label, v.numeric_value
FROM recipe_options o
LEFT JOIN recipe_option_values v ON v.option_id = o.id
WHERE o.recipe_id = $1 ORDER BY o.seq, v.seq`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var (
			opt     Option
			valueID *uuid.UUID
			key     *string
			label   *string
			numeric *float64
		)
		if err := rows.Scan(&opt.ID, &opt.RecipeID, &opt.Code, &opt.Label, &valueID, &key, &label, &numeric); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != opt.ID {
			out = append(out, opt)
		}
		if valueID == nil {
			continue
		}
		last := &out[len(out)-1]
		last.Values = append(last.Values, OptionValue{ID: *valueID, OptionID: opt.ID, ValueKey: *key, Label: *label, NumericValue: *numeric})
	}
	return out, rows.Err()
}

func (s *RecipeStore) listRules(ctx context.Context, recipeID uuid.UUID) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `SELECT id, recipe_id, scope, target_supply_id, condition_var, operator, condition_value, effect_type, effect_value
FROM recipe_rules WHERE recipe_id = $1 ORDER BY seq`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var r Rule
		var scope, effect string
		if err := rows.Scan(&r.ID, &r.RecipeID, &scope, &r.TargetSupplyID, &r.ConditionVar, &r.Operator, &r.ConditionValue, &effect, &r.EffectValue); err != nil {
			return nil, err
		}
		r.Scope = RuleScope(scope)
		r.EffectType = EffectType(effect)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RecipeStore) InsertRecipe(ctx context.Context, rec Recipe) error {
	_, err := s.db.Exec(ctx, `INSERT INTO recipes (id, product_id, name, margin_target, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.ProductID, rec.Name, rec.MarginTarget, rec.CreatedAt)
	return err
}

func (s *RecipeStore) UpdateRecipeMargin(ctx context.Context, id uuid.UUID, margin float64) error {
	tag, err := s.db.Exec(ctx, `UPDATE recipes SET margin_target = $2 WHERE id = $1`, id, margin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("recipe", id)
	}
	return nil
}

func (s *RecipeStore) InsertRecipeItem(ctx context.Context, it Item) error {
	var src *string
	if it.QtyFormula != "" {
		src = &it.QtyFormula
	}
	_, err := s.db.Exec(ctx, `INSERT INTO recipe_items (id, recipe_id, supply_id, qty_base, qty_formula, waste_pct) VALUES ($1, $2, $3, $4, $5, $6)`,
		it.ID, it.RecipeID, it.SupplyID, it.QtyBase, src, it.WastePct)
	return err
}

func (s *RecipeStore) InsertRecipeVariable(ctx context.Context, v Variable) error {
	_, err := s.db.Exec(ctx, `INSERT INTO recipe_variables (id, recipe_id, code, label, min_value, max_value, default_value) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.RecipeID, v.Code, v.Label, v.MinValue, v.MaxValue, v.DefaultValue)
	return err
}

func (s *RecipeStore) InsertRecipeOption(ctx context.Context, opt Option) error {
	if _, err := s.db.Exec(ctx, `INSERT INTO recipe_options (id, recipe_id, code, label) VALUES ($1, $2, $3, $4)`,
		opt.ID, opt.RecipeID, opt.Code, opt.Label); err != nil {
		return err
	}
	for _, v := range opt.Values {
		if _, err := s.db.Exec(ctx, `INSERT INTO recipe_option_values (id, option_id, value_key, label, numeric_value) VALUES ($1, $2, $3, $4, $5)`,
			v.ID, opt.ID, v.ValueKey, v.Label, v.NumericValue); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecipeStore) InsertRecipeRule(ctx context.Context, r Rule) error {
	_, err := s.db.Exec(ctx, `INSERT INTO recipe_rules (id, recipe_id, scope, target_supply_id, condition_var, operator, condition_value, effect_type, effect_value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.RecipeID, string(r.Scope), r.TargetSupplyID, r.ConditionVar, r.Operator, r.ConditionValue, string(r.EffectType), r.EffectValue)
	return err
}
