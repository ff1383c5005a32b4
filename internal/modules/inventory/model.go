package inventory

import (
	"strings"
	"time"
)

// CardType selects how a card produces delivery content.
type CardType string

const (
	CardText  CardType = "text"
	CardData  CardType = "data"
	CardAPI   CardType = "api"
	CardImage CardType = "image"
)

func (t CardType) Valid() bool {
	switch t {
	case CardText, CardData, CardAPI, CardImage:
		return true
	}
	return false
}

// APIConfig describes the remote endpoint an api card calls. Headers and
// Params are JSON objects kept as text, the way the console edits them.
type APIConfig struct {
	URL     string `json:"url"`
	Method  string `json:"method"`
	Timeout int    `json:"timeout"` // seconds
	Headers string `json:"headers,omitempty"`
	Params  string `json:"params,omitempty"`
}

// Card is a fulfillment resource definition.
type Card struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Type           CardType   `json:"type"`
	Description    string     `json:"description,omitempty"`
	Enabled        bool       `json:"enabled"`
	ItemID         string     `json:"item_id,omitempty"` // empty binds to any item
	TextContent    string     `json:"text_content,omitempty"`
	DataContent    string     `json:"data_content,omitempty"` // unclaimed lines only
	StockRemaining int        `json:"stock_remaining"`
	APIConfig      *APIConfig `json:"api_config,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	DelaySeconds   int        `json:"delay_seconds"`
	IsMultiSpec    bool       `json:"is_multi_spec"`
	SpecName       string     `json:"spec_name,omitempty"`
	SpecValue      string     `json:"spec_value,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StockLine is one single-use entry of a data card.
type StockLine struct {
	ID      int64
	CardID  int64
	LineNo  int
	Content string
}

// CardRequest is the create/replace payload. DataContent is optional on
// update: nil leaves the unclaimed stock alone.
type CardRequest struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Description  string     `json:"description"`
	Enabled      *bool      `json:"enabled"`
	ItemID       string     `json:"item_id"`
	TextContent  string     `json:"text_content"`
	DataContent  *string    `json:"data_content"`
	APIConfig    *APIConfig `json:"api_config"`
	ImageURL     string     `json:"image_url"`
	DelaySeconds int        `json:"delay_seconds"`
	IsMultiSpec  bool       `json:"is_multi_spec"`
	SpecName     string     `json:"spec_name"`
	SpecValue    string     `json:"spec_value"`
}

// SplitStock turns newline-delimited stock into lines, dropping blanks.
func SplitStock(raw string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// MatchRequest carries the order attributes the matcher selects on.
type MatchRequest struct {
	OrderID   string
	ItemID    string
	SpecName  string
	SpecValue string
}

// Resolved is the content chosen for one order. LineID is set when a data
// card line was claimed and must be released if delivery does not happen.
type Resolved struct {
	Card     *Card
	Content  string
	ImageURL string
	LineID   int64
}
