package repositories

import (
	"context"
	"delivery-batch-service/internal/domain"
	"fmt"
	"sync"
)

// MemoryConfirmationLog is an append-only record of delivery confirmations keyed by stop id.
type MemoryConfirmationLog struct {
	mu      sync.Mutex
	entries map[string]domain.DeliveryConfirmation
}

func NewMemoryConfirmationLog() *MemoryConfirmationLog {
	return &MemoryConfirmationLog{entries: make(map[string]domain.DeliveryConfirmation)}
}

func (l *MemoryConfirmationLog) Append(_ context.Context, c domain.DeliveryConfirmation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[c.StopID]; ok {
		return fmt.Errorf("append confirmation for stop %s: %w", c.StopID, domain.ErrAlreadyDelivered)
	}
	l.entries[c.StopID] = c
	return nil
}

func (l *MemoryConfirmationLog) Get(_ context.Context, stopID string) (domain.DeliveryConfirmation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.entries[stopID]
	if !ok {
		return domain.DeliveryConfirmation{}, domain.NotFound("confirmation", stopID)
	}
	return c, nil
}
