package recipes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/platform/httpx"
	"github.com/sdsinventory/backend/internal/shared"
)

// Handler exposes recipe endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/recipes", h.list)
	r.Post("/recipes", h.create)
	r.Get("/recipes/{id}", h.show)
	r.Put("/recipes/{id}/margin", h.updateMargin)
	r.Post("/recipes/{id}/items", h.addItem)
	r.Post("/recipes/{id}/variables", h.addVariable)
	r.Post("/recipes/{id}/options", h.addOption)
	r.Post("/recipes/{id}/rules", h.addRule)
	r.Post("/recipes/{id}/cost", h.cost)
	r.Post("/recipes/{id}/suggested-price", h.suggestedPrice)
}

type recipeRequest struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	Name         string    `json:"name" validate:"required,max=200"`
	MarginTarget *float64  `json:"margin_target" validate:"omitempty,gte=0,lt=1"`
}

type marginRequest struct {
	MarginTarget   float64 `json:"margin_target" validate:"gte=0,lt=1"`
	ApplyToProduct bool    `json:"apply_to_product"`
}

type itemRequest struct {
	SupplyID   uuid.UUID `json:"supply_id" validate:"required"`
	QtyBase    *float64  `json:"qty_base" validate:"omitempty,gt=0"`
	QtyFormula string    `json:"qty_formula" validate:"max=200"`
	WastePct   float64   `json:"waste_pct" validate:"gte=0,lt=100"`
}

type variableRequest struct {
	Code         string   `json:"code" validate:"required,max=60"`
	Label        string   `json:"label" validate:"max=120"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	DefaultValue *float64 `json:"default_value"`
}

type optionValueRequest struct {
	ValueKey     string  `json:"value_key" validate:"required,max=60"`
	Label        string  `json:"label" validate:"max=120"`
	NumericValue float64 `json:"numeric_value"`
}

type optionRequest struct {
	Code   string               `json:"code" validate:"required,max=60"`
	Label  string               `json:"label" validate:"max=120"`
	Values []optionValueRequest `json:"values" validate:"required,min=1,dive"`
}

type ruleRequest struct {
	Scope          string     `json:"scope" validate:"required,oneof=global supply"`
	TargetSupplyID *uuid.UUID `json:"target_supply_id"`
	ConditionVar   string     `json:"condition_var" validate:"required,max=60"`
	Operator       string     `json:"operator" validate:"required"`
	ConditionValue string     `json:"condition_value" validate:"max=120"`
	EffectType     string     `json:"effect_type" validate:"required,oneof=multiplier add_qty"`
	EffectValue    float64    `json:"effect_value"`
}

type costRequest struct {
	Width  *float64           `json:"width" validate:"omitempty,gt=0"`
	Height *float64           `json:"height" validate:"omitempty,gt=0"`
	Vars   map[string]float64 `json:"vars"`
	Opts   map[string]string  `json:"opts"`
	Strict bool               `json:"strict"`
}

type priceRequest struct {
	costRequest
	Mode  string   `json:"mode" validate:"omitempty,oneof=margin markup"`
	Value *float64 `json:"value" validate:"omitempty,gte=0"`
}

func (c costRequest) toCost(id uuid.UUID) CostRequest {
	return CostRequest{RecipeID: id, Width: c.Width, Height: c.Height, Vars: c.Vars, Opts: c.Opts, Strict: c.Strict}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var productID *uuid.UUID
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.Invalid("product_id must be a uuid"))
			return
		}
		productID = &id
	}
	recipes, err := h.service.ListRecipes(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipes)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	recipe, err := h.service.CreateRecipe(r.Context(), RecipeInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recipe)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	bundle, err := h.service.GetBundle(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bundle)
}

func (h *Handler) updateMargin(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req marginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	recipe, err := h.service.UpdateMargin(r.Context(), id, req.MarginTarget, req.ApplyToProduct)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), id, ItemInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) addVariable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req variableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	v, err := h.service.AddVariable(r.Context(), id, VariableInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) addOption(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req optionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := OptionInput{Code: req.Code, Label: req.Label}
	for _, v := range req.Values {
		input.Values = append(input.Values, OptionValueInput(v))
	}
	opt, err := h.service.AddOption(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, opt)
}

func (h *Handler) addRule(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rule, err := h.service.AddRule(r.Context(), id, RuleInput{
		Scope:          RuleScope(req.Scope),
		TargetSupplyID: req.TargetSupplyID,
		ConditionVar:   req.ConditionVar,
		Operator:       req.Operator,
		ConditionValue: req.ConditionValue,
		EffectType:     EffectType(req.EffectType),
		EffectValue:    req.EffectValue,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rule)
}

func (h *Handler) cost(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req costRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	breakdown, err := h.service.ComputeCost(r.Context(), req.toCost(id))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

func (h *Handler) suggestedPrice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req priceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	quote, err := h.service.SuggestedPrice(r.Context(), PriceRequest{CostRequest: req.toCost(id), Mode: PriceMode(req.Mode), Value: req.Value})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}
