package sales

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/platform/httpx"
	"github.com/sdsinventory/backend/internal/shared"
)

// Handler exposes sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.list)
	r.Post("/sales", h.create)
	r.Get("/sales/summary", h.summary)
	r.Get("/sales/{id}", h.show)
	r.Post("/sales/{id}/void", h.void)
}

// LineRequest is the JSON shape of one sale or quote line.
type LineRequest struct {
	ProductID uuid.UUID          `json:"product_id" validate:"required"`
	RecipeID  uuid.UUID          `json:"recipe_id" validate:"required"`
	Qty       float64            `json:"qty" validate:"gt=0"`
	SalePrice *float64           `json:"sale_price" validate:"omitempty,gte=0"`
	Width     *float64           `json:"width" validate:"omitempty,gt=0"`
	Height    *float64           `json:"height" validate:"omitempty,gt=0"`
	Vars      map[string]float64 `json:"vars"`
	Opts      map[string]string  `json:"opts"`
}

// Lines converts decoded lines into service input.
func Lines(reqs []LineRequest) []LineInput {
	out := make([]LineInput, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, LineInput(req))
	}
	return out
}

type saleRequest struct {
	Lines        []LineRequest `json:"lines" validate:"required,min=1,dive"`
	Margin       *float64      `json:"margin" validate:"omitempty,gte=0,lt=1"`
	CustomerName string        `json:"customer_name" validate:"max=200"`
	Notes        string        `json:"notes" validate:"max=1000"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sale, err := h.service.Create(r.Context(), Input{
		Lines:          Lines(req.Lines),
		Margin:         req.Margin,
		CustomerName:   req.CustomerName,
		Notes:          req.Notes,
		Currency:       req.Currency,
		IdempotencyKey: r.Header.Get(httpx.IdempotencyHeader),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	sales, err := h.service.List(r.Context(), shared.NewPage(limit, offset))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req voidRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	res, err := h.service.Void(r.Context(), id, req.Reason)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sum, err := h.service.Summary(r.Context(), q.Get("period"), q.Get("include_voided") == "true")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}
