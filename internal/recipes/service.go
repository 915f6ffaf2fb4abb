package recipes

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/formula"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/shared"
)

// PriceMode selects how SuggestedPrice derives a price from cost.
type PriceMode string

const (
	// ModeMargin prices so that value is the share of the price kept as margin.
	ModeMargin PriceMode = "margin"
	// ModeMarkup prices at cost plus value times cost.
	ModeMarkup PriceMode = "markup"
)

var codePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PriceRequest asks for a suggested price. A nil Value uses the recipe margin.
type PriceRequest struct {
	CostRequest
	Mode  PriceMode
	Value *float64
}

// PriceQuote is a suggested price for one unit.
type PriceQuote struct {
	RecipeID       uuid.UUID `json:"recipe_id"`
	MaterialsCost  float64   `json:"materials_cost"`
	Mode           PriceMode `json:"mode"`
	Value          float64   `json:"value"`
	SuggestedPrice float64   `json:"suggested_price"`
	Currency       string    `json:"currency"`
}

// Service manages recipes and prices them.
type Service struct {
	repo     RepositoryPort
	engine   *Engine
	currency string
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, engine *Engine, currency string) *Service {
	if engine == nil {
		engine = NewEngine(nil)
	}
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	return &Service{repo: repo, engine: engine, currency: currency, now: time.Now}
}

// CreateRecipe registers a recipe for an existing product.
func (s *Service) CreateRecipe(ctx context.Context, input RecipeInput) (Recipe, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Recipe{}, shared.Invalid("recipe name is required")
	}
	if input.MarginTarget != nil {
		if err := masterdata.ValidateMargin(*input.MarginTarget); err != nil {
			return Recipe{}, err
		}
	}
	recipe := Recipe{
		ID:           uuid.New(),
		ProductID:    input.ProductID,
		Name:         name,
		MarginTarget: input.MarginTarget,
		CreatedAt:    s.now().UTC(),
	}
	var created Recipe
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProduct(ctx, input.ProductID); err != nil {
			return err
		}
		if err := tx.InsertRecipe(ctx, recipe); err != nil {
			return err
		}
		var err error
		created, err = tx.GetRecipe(ctx, recipe.ID)
		return err
	})
	if err != nil {
		return Recipe{}, err
	}
	return created, nil
}

// GetRecipe loads a recipe head.
func (s *Service) GetRecipe(ctx context.Context, id uuid.UUID) (Recipe, error) {
	return s.repo.GetRecipe(ctx, id)
}

// GetBundle loads a recipe with its items, variables, options and rules.
func (s *Service) GetBundle(ctx context.Context, id uuid.UUID) (Bundle, error) {
	return s.repo.LoadRecipeBundle(ctx, id)
}

// ListRecipes lists recipes, optionally those of one product.
func (s *Service) ListRecipes(ctx context.Context, productID *uuid.UUID) ([]Recipe, error) {
	return s.repo.ListRecipes(ctx, productID)
}

// UpdateMargin sets the recipe margin target and, when propagate is set, the
// product's as well.
func (s *Service) UpdateMargin(ctx context.Context, id uuid.UUID, margin float64, propagate bool) (Recipe, error) {
	if err := masterdata.ValidateMargin(margin); err != nil {
		return Recipe{}, err
	}
	var updated Recipe
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		recipe, err := tx.GetRecipe(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdateRecipeMargin(ctx, id, margin); err != nil {
			return err
		}
		if propagate {
			if err := tx.UpdateProductMargin(ctx, recipe.ProductID, margin); err != nil {
				return err
			}
		}
		updated, err = tx.GetRecipe(ctx, id)
		return err
	})
	if err != nil {
		return Recipe{}, err
	}
	return updated, nil
}

// AddItem attaches a supply to a recipe. Fixed recipes take literal
// quantities; variable recipes take formulas over the recipe's names.
func (s *Service) AddItem(ctx context.Context, recipeID uuid.UUID, input ItemInput) (Item, error) {
	if input.WastePct < 0 || input.WastePct >= 100 {
		return Item{}, shared.Invalid("waste_pct must be >= 0 and < 100")
	}
	src := strings.TrimSpace(input.QtyFormula)
	item := Item{ID: uuid.New(), RecipeID: recipeID, SupplyID: input.SupplyID, QtyFormula: src, WastePct: input.WastePct}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bundle, err := tx.LoadRecipeBundle(ctx, recipeID)
		if err != nil {
			return err
		}
		if _, err := tx.GetSupply(ctx, input.SupplyID); err != nil {
			return err
		}
		switch bundle.Recipe.ProductType {
		case masterdata.ProductFixed:
			if src != "" {
				return shared.Invalid("fixed recipes take a literal qty_base, not a formula")
			}
			if input.QtyBase == nil || *input.QtyBase <= 0 {
				return shared.Invalid("qty_base must be > 0")
			}
			qty := *input.QtyBase
			item.QtyBase = &qty
		default:
			if src == "" {
				return shared.Invalid("variable recipes require qty_formula")
			}
			names, err := formula.Validate(src, allowedNames(bundle))
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return shared.Invalid("qty_formula must reference at least one variable")
			}
		}
		return tx.InsertRecipeItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// AddVariable declares a numeric input.
func (s *Service) AddVariable(ctx context.Context, recipeID uuid.UUID, input VariableInput) (Variable, error) {
	v := Variable{
		ID:           uuid.New(),
		RecipeID:     recipeID,
		Code:         normalizeName(input.Code),
		Label:        strings.TrimSpace(input.Label),
		MinValue:     input.MinValue,
		MaxValue:     input.MaxValue,
		DefaultValue: input.DefaultValue,
	}
	if err := validateCode(v.Code); err != nil {
		return Variable{}, err
	}
	if v.Label == "" {
		v.Label = v.Code
	}
	if v.MinValue != nil && v.MaxValue != nil && *v.MinValue > *v.MaxValue {
		return Variable{}, shared.Invalid("min_value must be <= max_value")
	}
	if d := v.DefaultValue; d != nil {
		if (v.MinValue != nil && *d < *v.MinValue) || (v.MaxValue != nil && *d > *v.MaxValue) {
			return Variable{}, shared.Invalid("default_value must lie within min_value and max_value")
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bundle, err := tx.LoadRecipeBundle(ctx, recipeID)
		if err != nil {
			return err
		}
		if slices.Contains(declaredCodes(bundle), v.Code) {
			return shared.Invalid("code %q is already declared in recipe", v.Code)
		}
		return tx.InsertRecipeVariable(ctx, v)
	})
	if err != nil {
		return Variable{}, err
	}
	return v, nil
}

// AddOption declares a choice and its values.
func (s *Service) AddOption(ctx context.Context, recipeID uuid.UUID, input OptionInput) (Option, error) {
	opt := Option{ID: uuid.New(), RecipeID: recipeID, Code: normalizeName(input.Code), Label: strings.TrimSpace(input.Label)}
	if err := validateCode(opt.Code); err != nil {
		return Option{}, err
	}
	if opt.Label == "" {
		opt.Label = opt.Code
	}
	if len(input.Values) == 0 {
		return Option{}, shared.Invalid("option %q needs at least one value", opt.Code)
	}
	seen := make(map[string]struct{}, len(input.Values))
	for _, in := range input.Values {
		key := strings.TrimSpace(in.ValueKey)
		if key == "" {
			return Option{}, shared.Invalid("value_key is required")
		}
		if _, dup := seen[key]; dup {
			return Option{}, shared.Invalid("duplicate value_key %q", key)
		}
		seen[key] = struct{}{}
		label := strings.TrimSpace(in.Label)
		if label == "" {
			label = key
		}
		opt.Values = append(opt.Values, OptionValue{ID: uuid.New(), OptionID: opt.ID, ValueKey: key, Label: label, NumericValue: in.NumericValue})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bundle, err := tx.LoadRecipeBundle(ctx, recipeID)
		if err != nil {
			return err
		}
		if slices.Contains(declaredCodes(bundle), opt.Code) {
			return shared.Invalid("code %q is already declared in recipe", opt.Code)
		}
		return tx.InsertRecipeOption(ctx, opt)
	})
	if err != nil {
		return Option{}, err
	}
	return opt, nil
}

// AddRule appends a conditional rule. Rules apply in the order they were added.
func (s *Service) AddRule(ctx context.Context, recipeID uuid.UUID, input RuleInput) (Rule, error) {
	rule := Rule{
		ID:             uuid.New(),
		RecipeID:       recipeID,
		Scope:          input.Scope,
		TargetSupplyID: input.TargetSupplyID,
		ConditionVar:   normalizeName(input.ConditionVar),
		Operator:       strings.TrimSpace(input.Operator),
		ConditionValue: strings.TrimSpace(input.ConditionValue),
		EffectType:     input.EffectType,
		EffectValue:    input.EffectValue,
	}
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetRecipe(ctx, recipeID); err != nil {
			return err
		}
		if rule.TargetSupplyID != nil {
			if _, err := tx.GetSupply(ctx, *rule.TargetSupplyID); err != nil {
				return err
			}
		}
		return tx.InsertRecipeRule(ctx, rule)
	})
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// ComputeCost costs one unit of a recipe.
func (s *Service) ComputeCost(ctx context.Context, req CostRequest) (CostBreakdown, error) {
	return s.engine.Compute(ctx, s.repo, req)
}

// SuggestedPrice prices one unit of a recipe from its materials cost.
func (s *Service) SuggestedPrice(ctx context.Context, req PriceRequest) (PriceQuote, error) {
	if req.Mode == "" {
		req.Mode = ModeMargin
	}
	cost, err := s.engine.Compute(ctx, s.repo, req.CostRequest)
	if err != nil {
		return PriceQuote{}, err
	}
	value := cost.MarginTarget
	if req.Value != nil {
		value = *req.Value
	}
	price, err := PriceFromCost(cost.MaterialsCost, req.Mode, value)
	if err != nil {
		return PriceQuote{}, err
	}
	return PriceQuote{
		RecipeID:       req.RecipeID,
		MaterialsCost:  cost.MaterialsCost,
		Mode:           req.Mode,
		Value:          value,
		SuggestedPrice: shared.Round2(price),
		Currency:       s.currency,
	}, nil
}

// PriceFromCost applies a margin or markup to cost.
func PriceFromCost(cost float64, mode PriceMode, value float64) (float64, error) {
	if value < 0 {
		return 0, shared.Invalid("value must be >= 0")
	}
	switch mode {
	case ModeMarkup:
		return cost * (1 + value), nil
	case ModeMargin:
		if value >= 1 {
			return 0, shared.Invalid("margin must be < 1")
		}
		return cost / (1 - value), nil
	default:
		return 0, shared.Invalid("mode must be margin or markup")
	}
}

func validateRule(rule Rule) error {
	switch rule.Scope {
	case ScopeSupply:
		if rule.TargetSupplyID == nil {
			return shared.Invalid("supply rules require target_supply_id")
		}
	case ScopeGlobal:
		if rule.EffectType != EffectMultiplier {
			return shared.Invalid("global rules only support the multiplier effect")
		}
	default:
		return shared.Invalid("scope must be global or supply")
	}
	if rule.ConditionVar == "" {
		return shared.Invalid("condition_var is required")
	}
	if !slices.Contains(Operators, rule.Operator) {
		return shared.Invalid("operator must be one of %s", strings.Join(Operators, " "))
	}
	switch rule.EffectType {
	case EffectMultiplier:
		if rule.EffectValue <= 0 {
			return shared.Invalid("multiplier must be > 0")
		}
	case EffectAddQty:
	default:
		return shared.Invalid("effect_type must be multiplier or add_qty")
	}
	return nil
}

func validateCode(code string) error {
	if !codePattern.MatchString(code) {
		return shared.Invalid("code %q must start with a letter and contain only letters, digits and _", code)
	}
	if isDimension(code) {
		return fmt.Errorf("%w: code %q is reserved for dimensions", shared.ErrInvalidInput, code)
	}
	return nil
}

func declaredCodes(b Bundle) []string {
	codes := make([]string, 0, len(b.Variables)+len(b.Options))
	for _, v := range b.Variables {
		codes = append(codes, normalizeName(v.Code))
	}
	for _, o := range b.Options {
		codes = append(codes, normalizeName(o.Code))
	}
	return codes
}

func allowedNames(b Bundle) []string {
	names := append(append([]string{}, WidthAliases...), HeightAliases...)
	return append(names, declaredCodes(b)...)
}
