package fixedcosts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sdsinventory/backend/internal/platform/httpx"
)

// Handler exposes fixed-cost endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers fixed-cost routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/fixed-costs", func(r chi.Router) {
		r.Get("/periods", h.listPeriods)
		r.Post("/periods", h.createPeriod)
		r.Get("/periods/active/summary", h.activeSummary)
		r.Get("/periods/{id}", h.showPeriod)
		r.Put("/periods/{id}/active", h.setActive)
		r.Get("/periods/{id}/summary", h.summary)
		r.Get("/periods/{id}/items", h.listItems)
		r.Post("/periods/{id}/items", h.addItem)
		r.Delete("/periods/{id}/items/{itemID}", h.deleteItem)
	})
}

type periodRequest struct {
	Year            int    `json:"year" validate:"required,gte=2000,lte=2100"`
	Month           int    `json:"month" validate:"required,gte=1,lte=12"`
	EstimatedOrders int    `json:"estimated_orders" validate:"gte=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	Active          bool   `json:"active"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type itemRequest struct {
	Name   string  `json:"name" validate:"required,max=200"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.ListPeriods(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), PeriodInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) showPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	period, err := h.service.GetPeriod(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
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
	period, err := h.service.SetActive(r.Context(), id, req.Active)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) activeSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.ActiveSummary(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	items, err := h.service.ListItems(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
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

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	itemID, err := httpx.UUIDParam(r, "itemID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id, itemID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
