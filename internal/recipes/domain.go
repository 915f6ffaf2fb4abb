package recipes

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
)

// RuleScope selects what a rule modifies.
type RuleScope string

const (
	// ScopeGlobal rules scale the recipe's total materials cost.
	ScopeGlobal RuleScope = "global"
	// ScopeSupply rules adjust one item's quantity before waste.
	ScopeSupply RuleScope = "supply"
)

// EffectType selects how a matching rule changes its target.
type EffectType string

const (
	EffectMultiplier EffectType = "multiplier"
	EffectAddQty     EffectType = "add_qty"
)

// Operators lists the comparisons a rule condition may use.
var Operators = []string{"==", "!=", ">", "<", ">=", "<="}

// Dimension aliases injected into the formula namespace.
var (
	WidthAliases  = []string{"width", "w", "ancho"}
	HeightAliases = []string{"height", "h", "alto"}
)

// Recipe describes how one product consumes supplies.
type Recipe struct {
	ID            uuid.UUID              `json:"id"`
	ProductID     uuid.UUID              `json:"product_id"`
	ProductName   string                 `json:"product_name"`
	ProductType   masterdata.ProductType `json:"product_type"`
	ProductMargin float64                `json:"product_margin_target"`
	Name          string                 `json:"name"`
	MarginTarget  *float64               `json:"margin_target,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// EffectiveMargin is the recipe override, else the product target, else the default.
func (r Recipe) EffectiveMargin() float64 {
	if r.MarginTarget != nil {
		return *r.MarginTarget
	}
	if r.ProductMargin > 0 {
		return r.ProductMargin
	}
	return masterdata.DefaultMargin
}

// IsVariable reports whether the recipe's product derives quantities from formulas.
func (r Recipe) IsVariable() bool {
	return r.ProductType == masterdata.ProductVariable
}

// Item is one supply consumed per unit of product.
type Item struct {
	ID          uuid.UUID `json:"id"`
	RecipeID    uuid.UUID `json:"recipe_id"`
	SupplyID    uuid.UUID `json:"supply_id"`
	SupplyName  string    `json:"supply_name"`
	UnitCode    string    `json:"unit_code"`
	UnitName    string    `json:"unit_name"`
	AvgUnitCost float64   `json:"avg_unit_cost"`
	QtyBase     *float64  `json:"qty_base,omitempty"`
	QtyFormula  string    `json:"qty_formula,omitempty"`
	WastePct    float64   `json:"waste_pct"`
}

// Variable is a named numeric input referenced by formulas and rules.
type Variable struct {
	ID           uuid.UUID `json:"id"`
	RecipeID     uuid.UUID `json:"recipe_id"`
	Code         string    `json:"code"`
	Label        string    `json:"label"`
	MinValue     *float64  `json:"min_value,omitempty"`
	MaxValue     *float64  `json:"max_value,omitempty"`
	DefaultValue *float64  `json:"default_value,omitempty"`
}

// Option is a named choice whose selected value contributes a number.
type Option struct {
	ID       uuid.UUID     `json:"id"`
	RecipeID uuid.UUID     `json:"recipe_id"`
	Code     string        `json:"code"`
	Label    string        `json:"label"`
	Values   []OptionValue `json:"values"`
}

// OptionValue is one selectable value of an Option.
type OptionValue struct {
	ID           uuid.UUID `json:"id"`
	OptionID     uuid.UUID `json:"option_id"`
	ValueKey     string    `json:"value_key"`
	Label        string    `json:"label"`
	NumericValue float64   `json:"numeric_value"`
}

// Rule conditionally modifies an item quantity or the total cost.
type Rule struct {
	ID             uuid.UUID  `json:"id"`
	RecipeID       uuid.UUID  `json:"recipe_id"`
	Scope          RuleScope  `json:"scope"`
	TargetSupplyID *uuid.UUID `json:"target_supply_id,omitempty"`
	ConditionVar   string     `json:"condition_var"`
	Operator       string     `json:"operator"`
	ConditionValue string     `json:"condition_value"`
	EffectType     EffectType `json:"effect_type"`
	EffectValue    float64    `json:"effect_value"`
}

// Bundle is a recipe with all of its children in listing order.
type Bundle struct {
	Recipe    Recipe     `json:"recipe"`
	Items     []Item     `json:"items"`
	Variables []Variable `json:"variables"`
	Options   []Option   `json:"options"`
	Rules     []Rule     `json:"rules"`
}

// RecipeInput creates a recipe.
type RecipeInput struct {
	ProductID    uuid.UUID
	Name         string
	MarginTarget *float64
}

// ItemInput adds an item.
type ItemInput struct {
	SupplyID   uuid.UUID
	QtyBase    *float64
	QtyFormula string
	WastePct   float64
}

// VariableInput adds a variable.
type VariableInput struct {
	Code         string
	Label        string
	MinValue     *float64
	MaxValue     *float64
	DefaultValue *float64
}

// OptionValueInput is one value of an OptionInput.
type OptionValueInput struct {
	ValueKey     string
	Label        string
	NumericValue float64
}

// OptionInput adds an option with its values.
type OptionInput struct {
	Code   string
	Label  string
	Values []OptionValueInput
}

// RuleInput adds a rule.
type RuleInput struct {
	Scope          RuleScope
	TargetSupplyID *uuid.UUID
	ConditionVar   string
	Operator       string
	ConditionValue string
	EffectType     EffectType
	EffectValue    float64
}

// Reader exposes recipe queries usable with or without a transaction.
type Reader interface {
	GetRecipe(ctx context.Context, id uuid.UUID) (Recipe, error)
	ListRecipes(ctx context.Context, productID *uuid.UUID) ([]Recipe, error)
	LoadRecipeBundle(ctx context.Context, id uuid.UUID) (Bundle, error)
}

// TxRepository exposes transactional recipe writes. Catalogue and supply reads
// are available to validate references.
type TxRepository interface {
	Reader
	masterdata.TxRepository
	GetSupply(ctx context.Context, id uuid.UUID) (inventory.Supply, error)
	InsertRecipe(ctx context.Context, recipe Recipe) error
	UpdateRecipeMargin(ctx context.Context, id uuid.UUID, margin float64) error
	InsertRecipeItem(ctx context.Context, item Item) error
	InsertRecipeVariable(ctx context.Context, v Variable) error
	InsertRecipeOption(ctx context.Context, opt Option) error
	InsertRecipeRule(ctx context.Context, rule Rule) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
