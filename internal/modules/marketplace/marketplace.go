// Package marketplace is the boundary to the Xianyu marketplace. The wire
// protocol lives behind a bridge service; this package only knows how to ask
// it for an order's authoritative status and how to deliver content to a
// buyer.
package marketplace

import (
	"context"
	"strings"
)

// Session is the credential a single call runs under. It is resolved per
// call from the owning account, never held globally.
type Session struct {
	AccountID string
	Cookie    string
}

// RemoteOrder is the marketplace's view of an order.
type RemoteOrder struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	RawStatus string `json:"raw_status,omitempty"`
}

// Delivery is the content sent to the buyer of one order.
type Delivery struct {
	OrderID  string `json:"order_id"`
	BuyerID  string `json:"buyer_id"`
	ItemID   string `json:"item_id"`
	Content  string `json:"content,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Marketplace is implemented by the bridge client and by test doubles.
// Errors are *apperr.AdapterError.
type Marketplace interface {
	FetchOrder(ctx context.Context, s Session, orderID string) (*RemoteOrder, error)
	SendContent(ctx context.Context, s Session, d Delivery) error
}

var statusTexts = map[string]string{
	"等待买家付款":    "processing",
	"等待卖家发货":    "pending_ship",
	"已发货":       "shipped",
	"等待买家确认收货":  "shipped",
	"交易成功":      "completed",
	"退款中":       "refunding",
	"退款关闭":      "refund_cancelled",
	"退款撤销":      "refund_cancelled",
	"交易关闭":      "cancelled",
}

// NormaliseStatus maps a marketplace status text onto the local vocabulary.
// Local names and unrecognised values come back unchanged.
func NormaliseStatus(raw string) string {
	s := strings.TrimSpace(raw)
	if mapped, ok := statusTexts[s]; ok {
		return mapped
	}
	return s
}
