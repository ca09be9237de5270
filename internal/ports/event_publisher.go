package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// EventPublisher fans batch events out to interested listeners. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.BatchEvent)
}
