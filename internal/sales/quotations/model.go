package quotations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/shared"
)

// Status is a quote's lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired, StatusConverted:
		return true
	}
	return false
}

// ConvertStatus reports the outcome of a conversion request.
type ConvertStatus string

const (
	ConvertApplied          ConvertStatus = "converted"
	ConvertAlreadyConverted ConvertStatus = "already_converted"
)

// Quote is a priced estimate that does not touch inventory.
type Quote struct {
	ID                   uuid.UUID      `json:"quote_id"`
	Number               string         `json:"quote_number"`
	Year                 int            `json:"year"`
	Seq                  int            `json:"seq"`
	Status               Status         `json:"status"`
	CustomerName         string         `json:"customer_name"`
	Notes                string         `json:"notes"`
	Currency             string         `json:"currency"`
	Margin               float64        `json:"margin"`
	ValidUntil           time.Time      `json:"valid_until"`
	TotalSale            float64        `json:"total_price"`
	TotalCost            float64        `json:"total_cost"`
	TotalProfit          float64        `json:"total_profit"`
	MaterialsCostTotal   float64        `json:"materials_cost_total"`
	OperationalCostTotal float64        `json:"operational_cost_total"`
	FixedCostPeriodID    *uuid.UUID     `json:"fixed_cost_period_id"`
	ConvertedSaleID      *uuid.UUID     `json:"converted_sale_id"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	Items                []Item         `json:"items,omitempty"`
	History              []StatusChange `json:"history,omitempty"`
}

// Item is one quoted line.
type Item struct {
	ID                 uuid.UUID     `json:"quote_item_id"`
	QuoteID            uuid.UUID     `json:"quote_id"`
	ProductID          uuid.UUID     `json:"product_id"`
	RecipeID           uuid.UUID     `json:"recipe_id"`
	Qty                float64       `json:"qty"`
	Width              *float64      `json:"width"`
	Height             *float64      `json:"height"`
	Payload            sales.Payload `json:"var_payload"`
	MaterialsCost      float64       `json:"materials_cost"`
	OperationalCost    float64       `json:"operational_cost"`
	SuggestedUnitPrice float64       `json:"suggested_unit_price"`
	SaleUnitPrice      float64       `json:"sale_unit_price"`
	LineTotal          float64       `json:"sale_price"`
	Profit             float64       `json:"profit"`
}

// StatusChange is one row of a quote's status history. From is nil for the
// initial status.
type StatusChange struct {
	ID        uuid.UUID `json:"id"`
	QuoteID   uuid.UUID `json:"quote_id"`
	From      *Status   `json:"from_status"`
	To        Status    `json:"to_status"`
	Note      string    `json:"note"`
	ChangedAt time.Time `json:"changed_at"`
}

// Input requests a quote. Zero values take defaults: draft status,
// valid for 15 days, configured margin and currency.
type Input struct {
	Lines        []sales.LineInput
	Margin       *float64
	Status       Status
	ValidUntil   *time.Time
	CustomerName string
	Notes        string
	Currency     string
}

// ConvertResult describes what a conversion request did.
type ConvertResult struct {
	QuoteID uuid.UUID     `json:"quote_id"`
	Status  ConvertStatus `json:"status"`
	SaleID  *uuid.UUID    `json:"sale_id"`
	Message string        `json:"message,omitempty"`
	Sale    *sales.Sale   `json:"sale,omitempty"`
}

// Reader exposes quote queries.
type Reader interface {
	GetQuote(ctx context.Context, id uuid.UUID) (Quote, error)
	ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]Item, error)
	ListQuoteHistory(ctx context.Context, quoteID uuid.UUID) ([]StatusChange, error)
	ListQuotes(ctx context.Context, status *Status, page shared.Page) ([]Quote, error)
}

// TxRepository is the unit of work quotes run in. Conversion creates a sale
// in the same transaction, so it embeds the sales unit of work.
type TxRepository interface {
	Reader
	sales.TxRepository
	// LockQuoteSequence reads the year's counter under an exclusive lock.
	// ok is false when the year has no counter yet.
	LockQuoteSequence(ctx context.Context, year int) (last int, ok bool, err error)
	// InsertQuoteSequence creates the year's counter at zero, tolerating a
	// concurrent insert of the same year.
	InsertQuoteSequence(ctx context.Context, year int) error
	UpdateQuoteSequence(ctx context.Context, year, last int) error
	InsertQuote(ctx context.Context, quote Quote) error
	InsertQuoteItem(ctx context.Context, item Item) error
	InsertQuoteStatusChange(ctx context.Context, change StatusChange) error
	LockQuote(ctx context.Context, id uuid.UUID) (Quote, error)
	UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	MarkQuoteConverted(ctx context.Context, id, saleID uuid.UUID, at time.Time) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
