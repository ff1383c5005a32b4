package inventory

import "context"

// Repository stores cards and their stock lines.
type Repository interface {
	CreateCard(ctx context.Context, c *Card, stock []string) error
	GetCard(ctx context.Context, id int64) (*Card, error)
	ListCards(ctx context.Context) ([]*Card, error)

	// ListCandidates returns enabled cards bound to itemID or to no item.
	ListCandidates(ctx context.Context, itemID string) ([]*Card, error)

	// UpdateCard rewrites the card row. With replaceStock the unclaimed lines
	// are swapped for stock; claimed lines are kept either way.
	UpdateCard(ctx context.Context, c *Card, stock []string, replaceStock bool) error
	DeleteCard(ctx context.Context, id int64) error

	// ClaimLine hands the lowest unclaimed line to orderID. A line already
	// held by orderID is returned again. Empty stock is apperr.ErrStockExhausted.
	ClaimLine(ctx context.Context, cardID int64, orderID string) (*StockLine, error)
	ReleaseLine(ctx context.Context, lineID int64, orderID string) error
}
