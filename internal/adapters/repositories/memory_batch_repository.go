package repositories

import (
	"context"
	"delivery-batch-service/internal/domain"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryBatchRepository keeps batches in process memory. Batches are copied on
// the way in and out so callers never share state with the store.
type MemoryBatchRepository struct {
	mu      sync.RWMutex
	batches map[string]*domain.DeliveryBatch
	// order id -> batch id
	byOrder map[string]string
}

func NewMemoryBatchRepository() *MemoryBatchRepository {
	return &MemoryBatchRepository{
		batches: make(map[string]*domain.DeliveryBatch),
		byOrder: make(map[string]string),
	}
}

func (r *MemoryBatchRepository) Get(_ context.Context, id string) (*domain.DeliveryBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[id]
	if !ok {
		return nil, domain.NotFound("batch", id)
	}
	return b.Clone(), nil
}

// Put rejects a batch holding an order that already belongs to another batch.
func (r *MemoryBatchRepository) Put(_ context.Context, batch *domain.DeliveryBatch) error {
	if batch == nil || strings.TrimSpace(batch.ID) == "" {
		return domain.InvalidInput("batch id must not be empty")
	}
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("put batch: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range batch.Stops {
		if owner, ok := r.byOrder[s.OrderID]; ok && owner != batch.ID {
			return fmt.Errorf("put batch %s: order %s already belongs to batch %s", batch.ID, s.OrderID, owner)
		}
	}

	if prev, ok := r.batches[batch.ID]; ok {
		for _, s := range prev.Stops {
			delete(r.byOrder, s.OrderID)
		}
	}
	for _, s := range batch.Stops {
		r.byOrder[s.OrderID] = batch.ID
	}
	r.batches[batch.ID] = batch.Clone()

	return nil
}

func (r *MemoryBatchRepository) ListByDay(_ context.Context, day domain.Weekday) ([]*domain.DeliveryBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.DeliveryBatch, 0)
	for _, b := range r.batches {
		if b.DeliveryDay == day {
			out = append(out, b.Clone())
		}
	}
	sortBatches(out)
	return out, nil
}

func (r *MemoryBatchRepository) List(_ context.Context) ([]*domain.DeliveryBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.DeliveryBatch, 0, len(r.batches))
	for _, b := range r.batches {
		out = append(out, b.Clone())
	}
	sortBatches(out)
	return out, nil
}

func (r *MemoryBatchRepository) FindByOrderID(_ context.Context, orderID string) (*domain.DeliveryBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.NotFound("batch for order", orderID)
	}
	return r.batches[id].Clone(), nil
}

func (r *MemoryBatchRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[id]
	if !ok {
		return nil
	}
	for _, s := range b.Stops {
		delete(r.byOrder, s.OrderID)
	}
	delete(r.batches, id)
	return nil
}

// Delivery date first, then id.
func sortBatches(bs []*domain.DeliveryBatch) {
	slices.SortFunc(bs, func(a, b *domain.DeliveryBatch) int {
		if c := a.DeliveryDate.Compare(b.DeliveryDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
