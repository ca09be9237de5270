package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// Port: storage for delivery batches, each owning its ordered stop list.
// Implementations return domain.ErrNotFound for missing records and never
// hand out batches that alias their internal state.
type BatchRepository interface {
	Get(ctx context.Context, id string) (*domain.DeliveryBatch, error)
	Put(ctx context.Context, batch *domain.DeliveryBatch) error
	ListByDay(ctx context.Context, day domain.Weekday) ([]*domain.DeliveryBatch, error)
	List(ctx context.Context) ([]*domain.DeliveryBatch, error)
	// Return the batch holding the stop for orderID.
	FindByOrderID(ctx context.Context, orderID string) (*domain.DeliveryBatch, error)
	// Delete removes the batch and releases its stops. Missing ids are not an error.
	Delete(ctx context.Context, id string) error
}

// ConfirmationLog is the append-only delivery confirmation record keyed by stop id.
type ConfirmationLog interface {
	// Append fails with domain.ErrAlreadyDelivered when the stop already has a record.
	Append(ctx context.Context, c domain.DeliveryConfirmation) error
	Get(ctx context.Context, stopID string) (domain.DeliveryConfirmation, error)
}

// BatchLocker serializes mutations of one batch.
type BatchLocker interface {
	Lock(ctx context.Context, batchID string) (unlock func(), err error)
}
