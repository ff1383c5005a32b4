package account

import "context"

// Repository stores accounts and their AI settings.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) error

	GetAISettings(ctx context.Context, accountID string) (*AISettings, error)
	SaveAISettings(ctx context.Context, s *AISettings) error
}
