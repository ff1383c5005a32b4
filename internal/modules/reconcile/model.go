package reconcile

import "github.com/xyops/xianyu-backend/internal/modules/order"

// Outcome is the result of reconciling a single order.
type Outcome struct {
	OrderID   string       `json:"order_id"`
	OldStatus order.Status `json:"old_status"`
	NewStatus order.Status `json:"new_status"`
	Changed   bool         `json:"changed"`
}

// Change is one entry of the updated_orders list.
type Change struct {
	OrderID    string       `json:"order_id"`
	OldStatus  order.Status `json:"old_status"`
	NewStatus  order.Status `json:"new_status"`
	StatusText string       `json:"status_text"`
}

// Failure records why an order could not be reconciled.
type Failure struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

// Result summarises a batch. Updated + NoChange + Failed == Total.
type Result struct {
	Total    int       `json:"total"`
	Updated  int       `json:"updated"`
	NoChange int       `json:"no_change"`
	Failed   int       `json:"failed"`
	Changes  []Change  `json:"-"`
	Failures []Failure `json:"-"`
}

// Filter selects batch candidates. With no statuses the active set is used;
// All ignores Statuses and sweeps every order.
type Filter struct {
	AccountID string
	Statuses  []order.Status
	All       bool
}
