package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// Port: a boundary for reading orders owned by the checkout collaborator.
type OrderRepository interface {
	// Retrieve all orders that may need delivery scheduling.
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}
