package repositories

import (
	"context"
	"delivery-batch-service/internal/domain"
	"slices"
	"strings"
	"sync"
)

// MemoryOrderRepository serves a fixed order book, typically loaded from a seed file.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryOrderRepository(orders []domain.Order) *MemoryOrderRepository {
	r := &MemoryOrderRepository{orders: make(map[string]domain.Order, len(orders))}
	for _, o := range orders {
		r.orders[o.ID] = cloneOrder(o)
	}
	return r
}

// Upsert replaces or adds an order.
func (r *MemoryOrderRepository) Upsert(o domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = cloneOrder(o)
}

func (r *MemoryOrderRepository) ListOrders(_ context.Context) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, cloneOrder(o))
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *MemoryOrderRepository) GetOrder(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
