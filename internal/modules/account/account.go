package account

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Account is one marketplace seller session, keyed by cookie_id.
type Account struct {
	ID            string    `json:"id"`
	Cookie        string    `json:"cookie,omitempty"`
	Enabled       bool      `json:"enabled"`
	AutoConfirm   bool      `json:"auto_confirm"`
	Remark        string    `json:"remark"`
	PauseDuration int       `json:"pause_duration"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Masked returns a copy safe for list responses.
func (a *Account) Masked() *Account {
	c := *a
	c.Cookie = maskCookie(a.Cookie)
	return &c
}

func maskCookie(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}

// CreateRequest accepts `value` as an alias of `cookie`.
type CreateRequest struct {
	ID            string `json:"id"`
	Cookie        string `json:"cookie"`
	Value         string `json:"value"`
	Enabled       *bool  `json:"enabled"`
	AutoConfirm   bool   `json:"auto_confirm"`
	Remark        string `json:"remark"`
	PauseDuration int    `json:"pause_duration"`
}

type UpdateRequest struct {
	Cookie        *string `json:"cookie,omitempty"`
	Enabled       *bool   `json:"enabled,omitempty"`
	AutoConfirm   *bool   `json:"auto_confirm,omitempty"`
	Remark        *string `json:"remark,omitempty"`
	PauseDuration *int    `json:"pause_duration,omitempty"`
}

// AISettings is the bargaining configuration record for one account.
type AISettings struct {
	AccountID          string          `json:"account_id"`
	Enabled            bool            `json:"enabled"`
	MaxDiscountPercent int             `json:"max_discount_percent"`
	MaxDiscountAmount  decimal.Decimal `json:"max_discount_amount"`
	MaxBargainRounds   int             `json:"max_bargain_rounds"`
	CustomPrompts      string          `json:"custom_prompts"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// UnmarshalJSON takes either client shape: `ai_enabled` or `enabled`, and an
// optional max_discount_amount that defaults to zero.
func (s *AISettings) UnmarshalJSON(b []byte) error {
	var in struct {
		Enabled            *bool            `json:"enabled"`
		AIEnabled          *bool            `json:"ai_enabled"`
		MaxDiscountPercent int              `json:"max_discount_percent"`
		MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount"`
		MaxBargainRounds   int              `json:"max_bargain_rounds"`
		CustomPrompts      string           `json:"custom_prompts"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch {
	case in.Enabled != nil:
		s.Enabled = *in.Enabled
	case in.AIEnabled != nil:
		s.Enabled = *in.AIEnabled
	}
	s.MaxDiscountPercent = in.MaxDiscountPercent
	s.MaxDiscountAmount = decimal.Zero
	if in.MaxDiscountAmount != nil {
		s.MaxDiscountAmount = *in.MaxDiscountAmount
	}
	s.MaxBargainRounds = in.MaxBargainRounds
	s.CustomPrompts = in.CustomPrompts
	return nil
}
