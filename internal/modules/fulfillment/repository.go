package fulfillment

import "context"

// Repository is the shipment log.
type Repository interface {
	Create(ctx context.Context, s *Shipment) error
	ListByOrder(ctx context.Context, orderID string) ([]*Shipment, error)
}
