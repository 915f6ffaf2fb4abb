package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/platform/httpx"
	"github.com/sdsinventory/backend/internal/shared"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/presentations", h.listPresentations)
	r.Post("/presentations", h.createPresentation)
	r.Get("/purchases", h.listPurchases)
	r.Post("/purchases", h.createPurchase)
	r.Get("/purchases/{id}", h.showPurchase)
}

type presentationRequest struct {
	SupplyID    uuid.UUID `json:"supply_id" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	UnitsInBase float64   `json:"units_in_base" validate:"gt=0"`
}

type purchaseRequest struct {
	SupplyID       uuid.UUID `json:"supply_id" validate:"required"`
	PresentationID uuid.UUID `json:"presentation_id" validate:"required"`
	PacksQty       float64   `json:"packs_qty" validate:"gt=0"`
	TotalCost      float64   `json:"total_cost" validate:"gte=0"`
	SupplierName   string    `json:"supplier_name" validate:"max=200"`
	Notes          string    `json:"notes" validate:"max=1000"`
}

func (h *Handler) listPresentations(w http.ResponseWriter, r *http.Request) {
	var supplyID *uuid.UUID
	if raw := r.URL.Query().Get("supply_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.Invalid("supply_id must be a uuid"))
			return
		}
		supplyID = &id
	}
	out, err := h.service.ListPresentations(r.Context(), supplyID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createPresentation(w http.ResponseWriter, r *http.Request) {
	var req presentationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.CreatePresentation(r.Context(), PresentationInput(req))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	out, err := h.service.ListPurchases(r.Context(), shared.NewPage(limit, offset))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	receipt, err := h.service.RecordPurchase(r.Context(), PurchaseInput{
		SupplyID:       req.SupplyID,
		PresentationID: req.PresentationID,
		PacksQty:       req.PacksQty,
		TotalCost:      req.TotalCost,
		SupplierName:   req.SupplierName,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get(httpx.IdempotencyHeader),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) showPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
