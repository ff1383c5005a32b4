package order

import "context"

// Repository is the order store. Missing orders surface as apperr.ErrNotFound
// and driver failures as *apperr.StorageError.
type Repository interface {
	// Get returns one order by its marketplace id.
	Get(ctx context.Context, orderID string) (*Order, error)

	// List pages through orders matching the filter, newest first.
	List(ctx context.Context, f Filter, page, pageSize int) ([]*Order, int, error)

	// Update writes only the fields set in p and bumps updated_at.
	// system_shipped can be set but never cleared.
	Update(ctx context.Context, orderID string, p Patch) (*Order, error)

	// CompareAndSetShipped flips system_shipped false→true and reports
	// whether this call made the transition.
	CompareAndSetShipped(ctx context.Context, orderID string) (bool, error)

	// Upsert inserts or refreshes an order from marketplace sync without
	// touching system_shipped.
	Upsert(ctx context.Context, o *Order) (*Order, error)

	Delete(ctx context.Context, orderID string) error
}
