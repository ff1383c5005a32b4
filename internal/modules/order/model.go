package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the locally cached view of the marketplace status. Values outside
// the known set are stored verbatim.
type Status string

const (
	StatusProcessing      Status = "processing"
	StatusPendingShip     Status = "pending_ship"
	StatusProcessed       Status = "processed"
	StatusShipped         Status = "shipped"
	StatusCompleted       Status = "completed"
	StatusRefunding       Status = "refunding"
	StatusRefundCancelled Status = "refund_cancelled"
	StatusCancelled       Status = "cancelled"
	StatusUnknown         Status = "unknown"
)

var statusLabels = map[Status]string{
	StatusProcessing:      "处理中",
	StatusPendingShip:     "待发货",
	StatusProcessed:       "已处理",
	StatusShipped:         "已发货",
	StatusCompleted:       "已完成",
	StatusRefunding:       "退款中",
	StatusRefundCancelled: "退款撤销",
	StatusCancelled:       "已关闭",
	StatusUnknown:         "未知",
}

// StatusText returns the operator-facing label. Anything outside the table
// gets the label of StatusUnknown.
func StatusText(s Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusUnknown]
}

func (s Status) Known() bool {
	_, ok := statusLabels[s]
	return ok
}

// ActiveStatuses are the non-terminal statuses a default reconcile sweep visits.
var ActiveStatuses = []Status{StatusProcessing, StatusPendingShip, StatusRefunding}

// Shippable reports whether content may still be delivered for the order.
func (s Status) Shippable() bool {
	return s != StatusCancelled && s != StatusRefunding
}

// Order is one marketplace transaction.
type Order struct {
	OrderID         string          `json:"order_id"`
	AccountID       string          `json:"cookie_id"`
	ItemID          string          `json:"item_id"`
	ItemTitle       string          `json:"item_title,omitempty"`
	BuyerID         string          `json:"buyer_id"`
	SpecName        string          `json:"spec_name,omitempty"`
	SpecValue       string          `json:"spec_value,omitempty"`
	Quantity        int             `json:"quantity"`
	Amount          decimal.Decimal `json:"amount"`
	Status          Status          `json:"status"`
	StatusText      string          `json:"status_text"`
	SystemShipped   bool            `json:"system_shipped"`
	IsBargain       bool            `json:"is_bargain"`
	ReceiverName    string          `json:"receiver_name,omitempty"`
	ReceiverPhone   string          `json:"receiver_phone,omitempty"`
	ReceiverAddress string          `json:"receiver_address,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	AccountID string
	Statuses  []Status
}

// Patch carries a partial update; nil fields keep their stored value.
type Patch struct {
	ItemID          *string          `json:"item_id,omitempty"`
	ItemTitle       *string          `json:"item_title,omitempty"`
	BuyerID         *string          `json:"buyer_id,omitempty"`
	SpecName        *string          `json:"spec_name,omitempty"`
	SpecValue       *string          `json:"spec_value,omitempty"`
	Quantity        *int             `json:"quantity,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Status          *Status          `json:"status,omitempty"`
	SystemShipped   *bool            `json:"system_shipped,omitempty"`
	IsBargain       *bool            `json:"is_bargain,omitempty"`
	ReceiverName    *string          `json:"receiver_name,omitempty"`
	ReceiverPhone   *string          `json:"receiver_phone,omitempty"`
	ReceiverAddress *string          `json:"receiver_address,omitempty"`
}

func (p Patch) Empty() bool {
	return p.ItemID == nil && p.ItemTitle == nil && p.BuyerID == nil &&
		p.SpecName == nil && p.SpecValue == nil && p.Quantity == nil &&
		p.Amount == nil && p.Status == nil && p.SystemShipped == nil &&
		p.IsBargain == nil && p.ReceiverName == nil && p.ReceiverPhone == nil &&
		p.ReceiverAddress == nil
}

// Page is one slice of a List result.
type Page struct {
	Orders   []*Order `json:"data"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// IngestRequest is the payload the marketplace sync posts for each order it
// sees. Amount is a display string such as "¥12.50".
type IngestRequest struct {
	OrderID         string `json:"order_id"`
	AccountID       string `json:"cookie_id"`
	ItemID          string `json:"item_id"`
	ItemTitle       string `json:"item_title"`
	BuyerID         string `json:"buyer_id"`
	SpecName        string `json:"spec_name"`
	SpecValue       string `json:"spec_value"`
	Quantity        int    `json:"quantity"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	IsBargain       bool   `json:"is_bargain"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverPhone   string `json:"receiver_phone"`
	ReceiverAddress string `json:"receiver_address"`
}

// ParseAmount accepts the marketplace's display amounts.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	for _, sym := range []string{"¥", "￥", "$", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}
