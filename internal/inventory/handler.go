package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/platform/httpx"
	"github.com/sdsinventory/backend/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/supplies", h.listSupplies)
	r.Post("/supplies", h.registerSupply)
	r.Get("/supplies/{id}", h.showSupply)
	r.Post("/supplies/{id}/active", h.setActive)
	r.Get("/supplies/{id}/movements", h.supplyMovements)
	r.Get("/supplies/{id}/summary", h.movementSummary)
	r.Get("/supplies/{id}/ledger-check", h.checkLedger)
	r.Get("/movements", h.listMovements)
	r.Get("/alerts/low-stock", h.lowStock)
}

type supplyRequest struct {
	Name       string    `json:"name" validate:"required,max=200"`
	UnitBaseID uuid.UUID `json:"unit_base_id" validate:"required"`
	StockMin   float64   `json:"stock_min" validate:"gte=0"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) listSupplies(w http.ResponseWriter, r *http.Request) {
	supplies, err := h.service.ListSupplies(r.Context(), r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplies)
}

func (h *Handler) registerSupply(w http.ResponseWriter, r *http.Request) {
	var req supplyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	supply, err := h.service.RegisterSupply(r.Context(), SupplyInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supply)
}

func (h *Handler) showSupply(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	supply, err := h.service.GetSupply(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supply)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.SetSupplyActive(r.Context(), id, req.Active); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) supplyMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.respondMovements(w, r, &id)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	h.respondMovements(w, r, nil)
}

func (h *Handler) respondMovements(w http.ResponseWriter, r *http.Request, supplyID *uuid.UUID) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	movements, err := h.service.ListMovements(r.Context(), MovementFilter{SupplyID: supplyID, Page: shared.NewPage(limit, offset)})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) movementSummary(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	summary, err := h.service.MovementSummary(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) checkLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	d, ok, err := h.service.CheckLedger(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consistent": ok, "detail": d})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alerts)
}
