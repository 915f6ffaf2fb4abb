package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sdsinventory/backend/internal/platform/httpx"
)

// Handler manages master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/units", h.listUnits)
	r.Post("/units", h.createUnit)
	r.Get("/piece-units", h.listPieceUnits)
	r.Post("/piece-units", h.addPieceUnit)
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.showProduct)
}

type unitRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=120"`
}

type pieceUnitRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

type productRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	ProductType  string   `json:"product_type" validate:"required,oneof=fixed variable"`
	Category     string   `json:"category" validate:"max=120"`
	UnitSale     string   `json:"unit_sale" validate:"max=60"`
	MarginTarget *float64 `json:"margin_target" validate:"omitempty,gte=0,lt=1"`
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, units)
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	unit, err := h.service.CreateUnit(r.Context(), UnitInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) listPieceUnits(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ListPieceUnitCodes(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (h *Handler) addPieceUnit(w http.ResponseWriter, r *http.Request) {
	var req pieceUnitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.AddPieceUnitCode(r.Context(), req.Code); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), ProductInput{
		Name:         req.Name,
		Type:         ProductType(req.ProductType),
		Category:     req.Category,
		UnitSale:     req.UnitSale,
		MarginTarget: req.MarginTarget,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
