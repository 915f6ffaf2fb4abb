package production

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/platform/httpx"
	"github.com/sdsinventory/backend/internal/shared"
)

// Handler exposes production endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/production", h.list)
	r.Post("/production", h.produce)
	r.Get("/production/{id}", h.show)
}

type produceRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	RecipeID  uuid.UUID `json:"recipe_id" validate:"required"`
	Qty       float64   `json:"qty" validate:"gte=0"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

func (h *Handler) produce(w http.ResponseWriter, r *http.Request) {
	var req produceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Produce(r.Context(), Input(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orders, err := h.service.ListOrders(r.Context(), shared.NewPage(limit, offset))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}
