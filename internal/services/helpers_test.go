package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"slices"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// weekOf is a Wednesday; its ISO week starts Monday 2026-01-05. Batches
// aggregated on it fall on Wednesday 01-07, Friday 01-09 and Monday 01-12.
var weekOf = time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC)

func testOrder(id, zip string, created time.Time) domain.Order {
	return domain.Order{
		ID:             id,
		OrderNumber:    "NO-" + id,
		Status:         domain.OrderStatusConfirmed,
		ShippingMethod: domain.ShippingStandard,
		Destination: domain.Address{
			Street:     id + " Main St",
			City:       "Phoenix",
			State:      "AZ",
			PostalCode: zip,
		},
		Items: []domain.LineItem{
			{ProductID: "ribeye", Name: "Ribeye", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50"), PrepMinutes: 15},
		},
		TotalValue: decimal.RequireFromString("25.00"),
		Customer:   domain.Contact{Name: "Customer " + id, Phone: "555-0100"},
		CreatedAt:  created,
	}
}

func testSchedule() *ZipSchedule {
	s, err := NewZipSchedule("Friday", map[string]string{
		"85004": "Monday",
		"85008": "Monday",
		"852":   "Wednesday",
	})
	if err != nil {
		panic(err)
	}
	return s
}

func testAggregator() *Aggregator {
	return NewAggregator(testSchedule(), NewPredictor(PredictorConfig{HubZip: "85009"}), nil)
}

// stubRouter returns the stops in the order named by ids, or err.
type stubRouter struct {
	ids   []string
	miles float64
	mins  int
	err   error
	calls atomic.Int64
}

func (s *stubRouter) Name() string { return "stub" }

func (s *stubRouter) OptimizeRoute(ctx context.Context, stops []domain.Stop) (ports.RouteResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return ports.RouteResult{}, s.err
	}

	out := make([]domain.Stop, 0, len(s.ids))
	for _, id := range s.ids {
		i := slices.IndexFunc(stops, func(st domain.Stop) bool { return st.OrderID == id })
		if i < 0 {
			out = append(out, domain.Stop{OrderID: id})
			continue
		}
		out = append(out, stops[i])
	}
	return ports.RouteResult{OrderedStops: out, TotalDistanceMiles: s.miles, EstimatedTimeMinutes: s.mins}, nil
}

func stopIDs(b *domain.DeliveryBatch) []string {
	out := make([]string, len(b.Stops))
	for i, s := range b.Stops {
		out[i] = s.OrderID
	}
	return out
}
