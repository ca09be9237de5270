package services

import (
	"delivery-batch-service/internal/domain"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Aggregator groups orders into one delivery batch per weekday.
// It never calls a routing provider and never stamps wall-clock times,
// so the same (orders, from) input always yields the same partition.
type Aggregator struct {
	schedule  *ZipSchedule
	predictor *Predictor
	log       *zap.Logger
}

func NewAggregator(schedule *ZipSchedule, predictor *Predictor, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{schedule: schedule, predictor: predictor, log: log}
}

// Aggregate assigns every batchable order to the batch of its delivery day. Each
// batch is dated on the first occurrence of its day on or after from.
func (a *Aggregator) Aggregate(orders []domain.Order, from time.Time) map[domain.Weekday]*domain.DeliveryBatch {
	eligible := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if !o.Status.Batchable() {
			continue
		}
		if strings.TrimSpace(o.ID) == "" {
			a.log.Warn("skipping order without id", zap.String("order_number", o.OrderNumber))
			continue
		}
		eligible = append(eligible, o)
	}

	slices.SortStableFunc(eligible, compareForBatching)

	batches := make(map[domain.Weekday]*domain.DeliveryBatch)
	for _, o := range eligible {
		day := a.schedule.ResolveDay(o.Destination.PostalCode)

		b, ok := batches[day]
		if !ok {
			b = domain.NewDeliveryBatch(day, day.NextDate(from))
			batches[day] = b
		}

		var prediction *domain.FulfillmentPrediction
		if p, err := a.predictor.PredictOrder(o); err != nil {
			a.log.Warn("order has no fulfillment prediction",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		} else {
			prediction = &p
		}

		if err := b.AddStop(domain.NewStop(o, prediction)); err != nil {
			a.log.Warn("skipping order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	return batches
}

// Priority orders first, then oldest first, then by id.
func compareForBatching(x, y domain.Order) int {
	if x.Priority != y.Priority {
		if x.Priority {
			return -1
		}
		return 1
	}
	if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(x.ID, y.ID)
}
