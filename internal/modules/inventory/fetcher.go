package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPITimeout = 10 * time.Second

// APIFetcher calls the endpoint configured on an api card. The response body
// is the delivery content.
type APIFetcher struct {
	client *resty.Client
}

func NewAPIFetcher() *APIFetcher {
	return &APIFetcher{client: resty.New()}
}

func (f *APIFetcher) Fetch(ctx context.Context, cfg APIConfig, req MatchRequest) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("api url is empty")
	}
	headers, err := decodeObject(cfg.Headers)
	if err != nil {
		return "", fmt.Errorf("api headers: %w", err)
	}
	params, err := decodeObject(cfg.Params)
	if err != nil {
		return "", fmt.Errorf("api params: %w", err)
	}
	params["order_id"] = req.OrderID
	params["item_id"] = req.ItemID
	if req.SpecValue != "" {
		params["spec_value"] = req.SpecValue
	}

	timeout := defaultAPITimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := f.client.R().SetContext(ctx).SetHeaders(headers)

	var resp *resty.Response
	switch strings.ToUpper(cfg.Method) {
	case "", http.MethodGet:
		resp, err = r.SetQueryParams(params).Get(cfg.URL)
	case http.MethodPost:
		resp, err = r.SetBody(params).Post(cfg.URL)
	default:
		return "", fmt.Errorf("api method %q not supported", cfg.Method)
	}
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("api call: status %d", resp.StatusCode())
	}
	content := strings.TrimSpace(resp.String())
	if content == "" {
		return "", fmt.Errorf("api call: empty response")
	}
	return content, nil
}

// decodeObject reads a JSON object of scalar values into string form.
func decodeObject(raw string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			b, _ := json.Marshal(t)
			out[k] = string(b)
		}
	}
	return out, nil
}
