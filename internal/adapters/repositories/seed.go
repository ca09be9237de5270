package repositories

import (
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadOrdersJSON reads an array of orders from a JSON seed file.
func LoadOrdersJSON(path string) ([]domain.Order, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load orders: read %q: %w", path, err)
	}

	var orders []domain.Order
	if err := json.Unmarshal(bytes, &orders); err != nil {
		return nil, fmt.Errorf("load orders: parse json: %w", err)
	}

	seen := make(map[string]struct{}, len(orders))
	for i := range orders {
		o := &orders[i]
		o.ID = strings.TrimSpace(o.ID)
		if o.ID == "" {
			return nil, fmt.Errorf("load orders: order at index %d: id cannot be empty", i+1)
		}
		if _, ok := seen[o.ID]; ok {
			return nil, fmt.Errorf("load orders: duplicate order id %q", o.ID)
		}
		seen[o.ID] = struct{}{}

		if o.Status == "" {
			o.Status = domain.OrderStatusConfirmed
		}
		if o.TotalValue.IsZero() {
			for _, li := range o.Items {
				o.TotalValue = o.TotalValue.Add(li.Subtotal())
			}
		}
	}

	return orders, nil
}
