package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

const cookieHeader = "X-Account-Cookie"

// HTTPBridge talks to the marketplace bridge service over HTTP.
type HTTPBridge struct {
	client *resty.Client
}

func NewHTTPBridge(baseURL string, timeout time.Duration) *HTTPBridge {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPBridge{client: client}
}

type bridgeError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b *HTTPBridge) FetchOrder(ctx context.Context, s Session, orderID string) (*RemoteOrder, error) {
	const op = "fetch order"
	var out RemoteOrder
	var fail bridgeError
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader(cookieHeader, s.Cookie).
		SetResult(&out).
		SetError(&fail).
		Get("/orders/" + url.PathEscape(orderID))
	if err != nil {
		return nil, transportError(op, err)
	}
	if resp.IsError() {
		return nil, statusError(op, resp.StatusCode(), fail)
	}
	if out.Status == "" {
		return nil, &apperr.AdapterError{Kind: apperr.AdapterRejected, Op: op, Err: errors.New("empty status")}
	}
	if out.OrderID == "" {
		out.OrderID = orderID
	}
	out.RawStatus = out.Status
	out.Status = NormaliseStatus(out.Status)
	return &out, nil
}

func (b *HTTPBridge) SendContent(ctx context.Context, s Session, d Delivery) error {
	const op = "send content"
	var fail bridgeError
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader(cookieHeader, s.Cookie).
		SetBody(d).
		SetError(&fail).
		Post("/messages")
	if err != nil {
		return transportError(op, err)
	}
	if resp.IsError() {
		return statusError(op, resp.StatusCode(), fail)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func transportError(op string, err error) error {
	kind := apperr.AdapterTransient
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = apperr.AdapterTimeout
	}
	return &apperr.AdapterError{Kind: kind, Op: op, Err: err}
}

func statusError(op string, code int, body bridgeError) error {
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	var kind apperr.AdapterKind
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = apperr.AdapterAuthExpired
	case code == http.StatusTooManyRequests:
		kind = apperr.AdapterRateLimited
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		kind = apperr.AdapterTimeout
	case code >= 500:
		kind = apperr.AdapterTransient
	default:
		kind = apperr.AdapterRejected
	}
	return &apperr.AdapterError{Kind: kind, Op: op, Err: fmt.Errorf("status %d: %s", code, msg)}
}
