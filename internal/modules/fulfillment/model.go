package fulfillment

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects where shipment content comes from.
type Mode string

const (
	ModeAutoMatch Mode = "auto_match"
	ModeCustom    Mode = "custom"
)

func (m Mode) Valid() bool { return m == ModeAutoMatch || m == ModeCustom }

// Per-order result messages.
const (
	MsgShipped        = "shipped"
	MsgNotFound       = "order not found"
	MsgAlreadyShipped = "already shipped"
	MsgNoMatch        = "no matching card"
	MsgStockExhausted = "card stock exhausted"
	MsgIneligible     = "order no longer eligible"
	MsgAccountOff     = "account disabled"
	MsgNoAccount      = "account not found"
)

// ShipRequest is the payload of POST /api/orders/manual-ship.
type ShipRequest struct {
	OrderIDs      []string `json:"order_ids"`
	Mode          Mode     `json:"ship_mode"`
	CustomContent string   `json:"custom_content,omitempty"`
}

// ItemResult is the outcome for one requested order id.
type ItemResult struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ShipmentResult aggregates a ship request. SuccessCount + FailedCount == Total.
type ShipmentResult struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailedCount  int          `json:"failed_count"`
	Results      []ItemResult `json:"results"`
}

// ShipmentStatus is the outcome recorded in the shipment log.
type ShipmentStatus string

const (
	ShipmentSent   ShipmentStatus = "sent"
	ShipmentFailed ShipmentStatus = "failed"
)

// Shipment is one dispatch attempt for an order.
type Shipment struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   string         `json:"order_id"`
	Mode      Mode           `json:"mode"`
	CardID    *int64         `json:"card_id,omitempty"`
	Status    ShipmentStatus `json:"status"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
}
