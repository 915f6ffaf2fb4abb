package quotations

import (
	"time"

	"github.com/sdsinventory/backend/internal/sales"
)

type createQuoteRequest struct {
	Lines        []sales.LineRequest `json:"lines" validate:"required,min=1,dive"`
	Margin       *float64            `json:"margin" validate:"omitempty,gte=0,lt=1"`
	Status       Status              `json:"status" validate:"omitempty,oneof=draft sent accepted rejected expired"`
	ValidUntil   *time.Time          `json:"valid_until"`
	CustomerName string              `json:"customer_name" validate:"max=200"`
	Notes        string              `json:"notes" validate:"max=1000"`
	Currency     string              `json:"currency" validate:"omitempty,len=3"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}
