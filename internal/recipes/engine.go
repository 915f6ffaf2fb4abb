package recipes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/formula"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/shared"
)

// BundleLoader loads a recipe with its children.
type BundleLoader interface {
	LoadRecipeBundle(ctx context.Context, id uuid.UUID) (Bundle, error)
}

// CostRequest asks for the materials cost of one unit of a recipe.
// Strict requests must fully specify every input the recipe needs.
type CostRequest struct {
	RecipeID uuid.UUID
	Width    *float64
	Height   *float64
	Vars     map[string]float64
	Opts     map[string]string
	Strict   bool
}

// CostItem is the costed consumption of one recipe item.
type CostItem struct {
	SupplyID     uuid.UUID `json:"supply_id"`
	SupplyName   string    `json:"supply_name"`
	UnitCode     string    `json:"unit_code"`
	QtyFormula   string    `json:"qty_formula,omitempty"`
	QtyBase      float64   `json:"qty_base"`
	WastePct     float64   `json:"waste_pct"`
	QtyWithWaste float64   `json:"qty_with_waste"`
	AvgUnitCost  float64   `json:"avg_unit_cost"`
	LineCost     float64   `json:"line_cost"`
}

// CostBreakdown is the result of costing a recipe.
type CostBreakdown struct {
	RecipeID      uuid.UUID              `json:"recipe_id"`
	ProductID     uuid.UUID              `json:"product_id"`
	ProductType   masterdata.ProductType `json:"product_type"`
	Items         []CostItem             `json:"items"`
	MaterialsCost float64                `json:"materials_cost"`
	IsVariable    bool                   `json:"is_variable"`
	Variables     map[string]float64     `json:"variables"`
	Options       map[string]string      `json:"options"`
	MarginTarget  float64                `json:"margin_target"`
}

// Engine computes recipe materials costs.
type Engine struct {
	policy *quantity.Policy
}

// NewEngine builds an Engine. A nil policy classifies units with the defaults.
func NewEngine(policy *quantity.Policy) *Engine {
	return &Engine{policy: policy}
}

// Compute costs one unit of the requested recipe using the supplies' current
// average costs. Line costs and the total are rounded to cents; the total is
// accumulated from unrounded lines.
func (e *Engine) Compute(ctx context.Context, loader BundleLoader, req CostRequest) (CostBreakdown, error) {
	bundle, err := loader.LoadRecipeBundle(ctx, req.RecipeID)
	if err != nil {
		return CostBreakdown{}, err
	}
	return e.ComputeBundle(ctx, bundle, req)
}

// ComputeBundle costs an already loaded bundle.
func (e *Engine) ComputeBundle(ctx context.Context, bundle Bundle, req CostRequest) (CostBreakdown, error) {
	scope, err := resolveScope(bundle, req)
	if err != nil {
		return CostBreakdown{}, err
	}
	out := CostBreakdown{
		RecipeID:     bundle.Recipe.ID,
		ProductID:    bundle.Recipe.ProductID,
		ProductType:  bundle.Recipe.ProductType,
		Items:        make([]CostItem, 0, len(bundle.Items)),
		Variables:    scope.numeric,
		Options:      scope.selected,
		MarginTarget: bundle.Recipe.EffectiveMargin(),
	}

	var total float64
	for _, item := range bundle.Items {
		qty, err := e.itemQuantity(bundle.Recipe, item, scope)
		if err != nil {
			return CostBreakdown{}, err
		}
		if item.QtyFormula != "" {
			out.IsVariable = true
		}
		for _, rule := range bundle.Rules {
			if rule.Scope != ScopeSupply || rule.TargetSupplyID == nil || *rule.TargetSupplyID != item.SupplyID {
				continue
			}
			ok, err := scope.matches(rule)
			if err != nil {
				return CostBreakdown{}, err
			}
			if !ok {
				continue
			}
			switch rule.EffectType {
			case EffectMultiplier:
				qty *= rule.EffectValue
			case EffectAddQty:
				qty += rule.EffectValue
			}
		}
		if qty < 0 {
			return CostBreakdown{}, shared.Invalid("quantity for supply %s resolved to %g", item.SupplyID, qty)
		}
		withWaste, err := e.policy.ApplyWaste(ctx, qty, item.WastePct, item.UnitCode, item.UnitName)
		if err != nil {
			return CostBreakdown{}, err
		}
		line := withWaste * item.AvgUnitCost
		total += line
		out.Items = append(out.Items, CostItem{
			SupplyID:     item.SupplyID,
			SupplyName:   item.SupplyName,
			UnitCode:     item.UnitCode,
			QtyFormula:   item.QtyFormula,
			QtyBase:      qty,
			WastePct:     item.WastePct,
			QtyWithWaste: withWaste,
			AvgUnitCost:  item.AvgUnitCost,
			LineCost:     shared.Round2(line),
		})
	}

	for _, rule := range bundle.Rules {
		if rule.Scope != ScopeGlobal || rule.EffectType != EffectMultiplier {
			continue
		}
		ok, err := scope.matches(rule)
		if err != nil {
			return CostBreakdown{}, err
		}
		if ok {
			total *= rule.EffectValue
		}
	}
	out.MaterialsCost = shared.Round2(total)
	return out, nil
}

func (e *Engine) itemQuantity(recipe Recipe, item Item, scope *variableScope) (float64, error) {
	if item.QtyFormula == "" {
		if item.QtyBase == nil {
			return 0, nil
		}
		return *item.QtyBase, nil
	}
	if recipe.ProductType == masterdata.ProductFixed {
		return 0, fmt.Errorf("%w: recipe %s belongs to a fixed product and cannot use formulas", shared.ErrInvalidInput, recipe.ID)
	}
	expr, err := formula.Parse(item.QtyFormula)
	if err != nil {
		return 0, err
	}
	for _, name := range expr.Names() {
		if _, ok := scope.numeric[name]; ok {
			continue
		}
		if isDimension(name) {
			return 0, fmt.Errorf("%w: %s is required by the formula of supply %s", shared.ErrMissingVariable, name, item.SupplyID)
		}
	}
	return expr.Eval(scope.numeric)
}

// variableScope is the resolved namespace formulas and rule conditions see.
type variableScope struct {
	numeric  map[string]float64
	selected map[string]string
}

func resolveScope(bundle Bundle, req CostRequest) (*variableScope, error) {
	scope := &variableScope{numeric: make(map[string]float64), selected: make(map[string]string)}
	if err := scope.dimension(req.Width, req.Strict, WidthAliases); err != nil {
		return nil, err
	}
	if err := scope.dimension(req.Height, req.Strict, HeightAliases); err != nil {
		return nil, err
	}

	vars := make(map[string]float64, len(req.Vars))
	for k, v := range req.Vars {
		vars[normalizeName(k)] = v
	}
	for _, def := range bundle.Variables {
		code := normalizeName(def.Code)
		value, ok := vars[code]
		switch {
		case ok:
		case def.DefaultValue != nil:
			value = *def.DefaultValue
		case req.Strict:
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingVariable, code)
		case def.MinValue != nil:
			value = *def.MinValue
		default:
			value = 1
		}
		if def.MinValue != nil && value < *def.MinValue {
			return nil, fmt.Errorf("%w: %s=%g is below the minimum %g", shared.ErrOutOfRange, code, value, *def.MinValue)
		}
		if def.MaxValue != nil && value > *def.MaxValue {
			return nil, fmt.Errorf("%w: %s=%g is above the maximum %g", shared.ErrOutOfRange, code, value, *def.MaxValue)
		}
		scope.numeric[code] = value
	}

	opts := make(map[string]string, len(req.Opts))
	for k, v := range req.Opts {
		opts[normalizeName(k)] = strings.TrimSpace(v)
	}
	for _, def := range bundle.Options {
		code := normalizeName(def.Code)
		key := opts[code]
		if key == "" {
			if req.Strict {
				return nil, fmt.Errorf("%w: %s", shared.ErrMissingOption, code)
			}
			if len(def.Values) == 0 {
				continue
			}
			key = def.Values[0].ValueKey
		}
		value, ok := findValue(def, key)
		if !ok {
			return nil, fmt.Errorf("%w: %s=%q", shared.ErrInvalidOption, code, key)
		}
		scope.numeric[code] = value.NumericValue
		scope.selected[code] = value.ValueKey
	}
	return scope, nil
}

func (s *variableScope) dimension(v *float64, strict bool, aliases []string) error {
	if v == nil {
		if strict {
			return nil
		}
		one := 1.0
		v = &one
	}
	if *v <= 0 {
		return shared.Invalid("%s must be > 0", aliases[0])
	}
	for _, alias := range aliases {
		s.numeric[alias] = *v
	}
	return nil
}

// matches evaluates a rule condition. Numeric names compare numerically; option
// codes whose condition value is not a number compare by selected value key.
// Unknown names never match.
func (s *variableScope) matches(rule Rule) (bool, error) {
	name := normalizeName(rule.ConditionVar)
	want := strings.TrimSpace(rule.ConditionValue)
	if left, ok := s.numeric[name]; ok {
		right, err := strconv.ParseFloat(want, 64)
		if err == nil {
			return compare(left, right, rule.Operator), nil
		}
		if _, isOption := s.selected[name]; !isOption {
			return false, shared.Invalid("condition value %q for %s is not a number", rule.ConditionValue, name)
		}
	}
	if left, ok := s.selected[name]; ok {
		switch rule.Operator {
		case "==":
			return left == want, nil
		case "!=":
			return left != want, nil
		}
	}
	return false, nil
}

func compare(left, right float64, op string) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case ">":
		return left > right
	case "<":
		return left < right
	case ">=":
		return left >= right
	case "<=":
		return left <= right
	}
	return false
}

func findValue(opt Option, key string) (OptionValue, bool) {
	for _, v := range opt.Values {
		if v.ValueKey == key {
			return v, true
		}
	}
	return OptionValue{}, false
}

func isDimension(name string) bool {
	for _, alias := range append(append([]string{}, WidthAliases...), HeightAliases...) {
		if alias == name {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
