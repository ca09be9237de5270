package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/ports"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RefreshReport lists what a synchronization run did, by batch id.
type RefreshReport struct {
	Created   []string `json:"created"`
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
	// CREATED batches deleted because they were left without stops or their date passed.
	Removed []string `json:"removed"`
	// Orders that could not join their day's batch because it is already packed or later.
	Deferred []string `json:"deferred"`
}

// OptimizationWarning reports a batch returned without an optimized route.
type OptimizationWarning struct {
	BatchID string `json:"batch_id"`
	Message string `json:"message"`
}

type BatchServiceDeps struct {
	Orders     ports.OrderRepository
	Batches    ports.BatchRepository
	Locker     ports.BatchLocker
	Aggregator *Aggregator
	Optimizer  *RouteOptimizer
	Events     ports.EventPublisher
	Log        *zap.Logger
	Now        func() time.Time
}

// BatchService keeps stored batches in step with the order book and serves batch reads.
type BatchService struct {
	orders     ports.OrderRepository
	batches    ports.BatchRepository
	locker     ports.BatchLocker
	aggregator *Aggregator
	optimizer  *RouteOptimizer
	events     ports.EventPublisher
	log        *zap.Logger
	now        func() time.Time
}

func NewBatchService(deps BatchServiceDeps) *BatchService {
	s := &BatchService{
		orders:     deps.Orders,
		batches:    deps.Batches,
		locker:     deps.Locker,
		aggregator: deps.Aggregator,
		optimizer:  deps.Optimizer,
		events:     deps.Events,
		log:        deps.Log,
		now:        deps.Now,
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Refresh aggregates the order book into the upcoming batch of each weekday and
// reconciles it with stored batches: missing batches are created, CREATED batches
// take the new stop list, and batches past CREATED are left untouched. CREATED
// batches whose date already passed, or that end up without stops, are deleted
// so their orders can join an upcoming batch.
func (s *BatchService) Refresh(ctx context.Context) (report RefreshReport, err error) {
	defer obs.Time(ctx, "batch_service.refresh")(&err)

	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("refresh batches: list orders: %w", err)
	}

	now := s.now().UTC()
	upcoming := upcomingBatches(s.aggregator.Aggregate(orders, now), now)

	report = RefreshReport{
		Created:   []string{},
		Updated:   []string{},
		Unchanged: []string{},
		Removed:   []string{},
		Deferred:  []string{},
	}

	shrunk, err := s.release(ctx, upcoming, now, &report)
	if err != nil {
		return report, fmt.Errorf("refresh batches: %w", err)
	}

	for _, next := range upcoming {
		if err := s.reconcile(ctx, next, now, shrunk[next.ID], &report); err != nil {
			return report, fmt.Errorf("refresh batches: %s: %w", next.ID, err)
		}
	}

	s.log.Info("batches refreshed",
		zap.Int("created", len(report.Created)),
		zap.Int("updated", len(report.Updated)),
		zap.Int("unchanged", len(report.Unchanged)),
		zap.Int("removed", len(report.Removed)),
		zap.Int("deferred_orders", len(report.Deferred)),
	)
	return report, nil
}

// upcomingBatches returns one batch per weekday in date order, starting today.
// Days without orders get an empty batch so a stale stored one can be emptied.
func upcomingBatches(aggregated map[domain.Weekday]*domain.DeliveryBatch, now time.Time) []*domain.DeliveryBatch {
	out := make([]*domain.DeliveryBatch, 0, len(domain.Weekdays))
	for _, day := range domain.Weekdays {
		b, ok := aggregated[day]
		if !ok {
			b = domain.NewDeliveryBatch(day, day.NextDate(now))
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *domain.DeliveryBatch) int {
		return a.DeliveryDate.Compare(b.DeliveryDate)
	})
	return out
}

// release frees orders held by CREATED batches they no longer belong to. Batches
// dated before today are deleted outright; stops aggregated into a different
// upcoming batch are taken out of their current one. It returns the ids of the
// upcoming batches that lost stops.
func (s *BatchService) release(ctx context.Context, upcoming []*domain.DeliveryBatch, now time.Time, report *RefreshReport) (map[string]bool, error) {
	target := make(map[string]string)
	for _, b := range upcoming {
		for _, st := range b.Stops {
			target[st.OrderID] = b.ID
		}
	}

	stored, err := s.batches.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	today := domain.StartOfDay(now)
	shrunk := make(map[string]bool)
	for _, b := range stored {
		if b.ArchivedAt != nil || b.Status != domain.BatchCreated {
			continue
		}
		if b.DeliveryDate.Before(today) {
			if err := s.removeStale(ctx, b.ID, now, report); err != nil {
				return nil, fmt.Errorf("%s: %w", b.ID, err)
			}
			continue
		}

		leaving := make(map[string]bool)
		for _, st := range b.Stops {
			if id, ok := target[st.OrderID]; ok && id != b.ID {
				leaving[st.OrderID] = true
			}
		}
		if len(leaving) == 0 {
			continue
		}
		moved, err := s.removeStops(ctx, b.ID, leaving, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.ID, err)
		}
		shrunk[b.ID] = moved
	}
	return shrunk, nil
}

func (s *BatchService) removeStale(ctx context.Context, id string, now time.Time, report *RefreshReport) error {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer unlock()

	b, err := s.batches.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if b.Status != domain.BatchCreated || !b.DeliveryDate.Before(domain.StartOfDay(now)) {
		return nil
	}

	if err := s.batches.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	report.Removed = append(report.Removed, id)
	s.events.Publish(ctx, domain.NewBatchEvent(domain.EventBatchRemoved, b, now))
	s.log.Info("batch date passed before packing, orders released",
		zap.String("batch_id", id),
		zap.Int("orders", len(b.Stops)),
	)
	return nil
}

// removeStops takes the leaving orders out of a CREATED batch. The batch is kept
// even when emptied; its own reconcile decides whether it survives.
func (s *BatchService) removeStops(ctx context.Context, id string, leaving map[string]bool, now time.Time) (bool, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}
	defer unlock()

	b, err := s.batches.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if b.Status != domain.BatchCreated {
		return false, nil
	}

	kept := b.Stops[:0]
	for _, st := range b.Stops {
		if leaving[st.OrderID] {
			s.log.Info("order moved to another batch",
				zap.String("order_id", st.OrderID),
				zap.String("from_batch_id", id),
			)
			continue
		}
		kept = append(kept, st)
	}
	if len(kept) == len(b.Stops) {
		return false, nil
	}

	b.Stops = kept
	b.Renumber()
	b.Route = nil
	b.UpdatedAt = now
	if err := s.batches.Put(ctx, b); err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	return true, nil
}

func (s *BatchService) reconcile(ctx context.Context, next *domain.DeliveryBatch, now time.Time, shrunk bool, report *RefreshReport) error {
	unlock, err := s.locker.Lock(ctx, next.ID)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer unlock()

	if err := s.dropScheduledElsewhere(ctx, next, report); err != nil {
		return err
	}

	current, err := s.batches.Get(ctx, next.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if len(next.Stops) == 0 {
			return nil
		}
		next.CreatedAt = now
		next.UpdatedAt = now
		next.History = []domain.StatusChange{{To: domain.BatchCreated, At: now}}
		if err := s.batches.Put(ctx, next); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		report.Created = append(report.Created, next.ID)
		s.events.Publish(ctx, domain.NewBatchEvent(domain.EventBatchCreated, next, now))
		return nil
	case err != nil:
		return err
	}

	if current.Status != domain.BatchCreated {
		for _, st := range next.Stops {
			if _, ok := current.StopIndex(st.OrderID); !ok {
				report.Deferred = append(report.Deferred, st.OrderID)
				s.log.Info("order deferred, batch already in progress",
					zap.String("order_id", st.OrderID),
					zap.String("batch_id", current.ID),
					zap.String("status", string(current.Status)),
				)
			}
		}
		report.Unchanged = append(report.Unchanged, current.ID)
		return nil
	}

	// A batch exists only while it has stops.
	if len(next.Stops) == 0 {
		if err := s.batches.Delete(ctx, current.ID); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		report.Removed = append(report.Removed, current.ID)
		current.Stops = nil
		s.events.Publish(ctx, domain.NewBatchEvent(domain.EventBatchRemoved, current, now))
		return nil
	}

	if sameStopSet(current.Stops, next.Stops) {
		if shrunk {
			report.Updated = append(report.Updated, current.ID)
		} else {
			report.Unchanged = append(report.Unchanged, current.ID)
		}
		return nil
	}

	current.Stops = next.Stops
	current.Renumber()
	current.Route = nil
	current.UpdatedAt = now
	if err := s.batches.Put(ctx, current); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	report.Updated = append(report.Updated, current.ID)
	return nil
}

// dropScheduledElsewhere removes stops whose order still sits in another batch.
// After release, only batches already past CREATED hold on to such orders, and
// the orders wait until that batch is done.
func (s *BatchService) dropScheduledElsewhere(ctx context.Context, next *domain.DeliveryBatch, report *RefreshReport) error {
	kept := next.Stops[:0]
	for _, st := range next.Stops {
		owner, err := s.batches.FindByOrderID(ctx, st.OrderID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			kept = append(kept, st)
		case err != nil:
			return fmt.Errorf("find batch for order %s: %w", st.OrderID, err)
		case owner.ID == next.ID:
			kept = append(kept, st)
		default:
			report.Deferred = append(report.Deferred, st.OrderID)
			s.log.Info("order already scheduled in another batch",
				zap.String("order_id", st.OrderID),
				zap.String("batch_id", owner.ID),
				zap.String("status", string(owner.Status)),
			)
		}
	}
	next.Stops = kept
	next.Renumber()
	return nil
}

// ListCurrentWeek returns the non-archived batches that still have stops, from
// the Monday of the current week through the next seven days, in date order.
// With optimize set, each batch is routed; routing failures become warnings.
func (s *BatchService) ListCurrentWeek(ctx context.Context, optimize bool) ([]*domain.DeliveryBatch, []OptimizationWarning, error) {
	now := s.now()
	from := domain.WeekStart(now)
	until := domain.StartOfDay(now).AddDate(0, 0, 7)

	all, err := s.batches.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list batches: %w", err)
	}

	out := make([]*domain.DeliveryBatch, 0, len(all))
	for _, b := range all {
		if b.ArchivedAt != nil || len(b.Stops) == 0 || b.DeliveryDate.Before(from) || !b.DeliveryDate.Before(until) {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *domain.DeliveryBatch) int {
		return a.DeliveryDate.Compare(b.DeliveryDate)
	})

	warnings := []OptimizationWarning{}
	if !optimize {
		return out, warnings, nil
	}

	for i, b := range out {
		optimized, err := s.optimize(ctx, b)
		if err != nil {
			if !errors.Is(err, domain.ErrRouteOptimizationFailed) {
				return nil, nil, err
			}
			warnings = append(warnings, OptimizationWarning{BatchID: b.ID, Message: err.Error()})
		}
		out[i] = optimized
	}

	return out, warnings, nil
}

// Get resolves ref as a batch id, or as a weekday name naming that day's upcoming batch.
func (s *BatchService) Get(ctx context.Context, ref string) (*domain.DeliveryBatch, error) {
	id, err := s.ResolveID(ref)
	if err != nil {
		return nil, err
	}
	return s.batches.Get(ctx, id)
}

// Optimize routes the batch named by ref. The result is stored only while the
// batch is CREATED or PACKED; later batches keep their frozen route.
func (s *BatchService) Optimize(ctx context.Context, ref string) (*domain.DeliveryBatch, error) {
	b, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.optimize(ctx, b)
}

// FindByOrderID returns the batch holding the stop for orderID.
func (s *BatchService) FindByOrderID(ctx context.Context, orderID string) (*domain.DeliveryBatch, error) {
	return s.batches.FindByOrderID(ctx, orderID)
}

func (s *BatchService) ResolveID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", domain.InvalidInput("batch reference must not be empty")
	}
	if day, ok := domain.ParseWeekday(ref); ok {
		return domain.BatchID(day, day.NextDate(s.now())), nil
	}
	return ref, nil
}

func (s *BatchService) optimize(ctx context.Context, b *domain.DeliveryBatch) (*domain.DeliveryBatch, error) {
	if !routable(b.Status) {
		return b, nil
	}

	optimized, err := s.optimizer.Optimize(ctx, b)
	if err != nil {
		return optimized, err
	}

	saved, err := s.saveRoute(ctx, optimized)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// saveRoute stores an optimized ordering unless the batch moved on or its
// stops changed while the provider was working.
func (s *BatchService) saveRoute(ctx context.Context, optimized *domain.DeliveryBatch) (*domain.DeliveryBatch, error) {
	unlock, err := s.locker.Lock(ctx, optimized.ID)
	if err != nil {
		return nil, fmt.Errorf("save route %s: lock: %w", optimized.ID, err)
	}
	defer unlock()

	current, err := s.batches.Get(ctx, optimized.ID)
	if err != nil {
		return nil, fmt.Errorf("save route %s: %w", optimized.ID, err)
	}
	if !routable(current.Status) || !sameStopSet(current.Stops, optimized.Stops) {
		return current, nil
	}

	// Keep the stored stop values (e.g. predictions) and take only the new order.
	byOrder := make(map[string]domain.Stop, len(current.Stops))
	for _, st := range current.Stops {
		byOrder[st.OrderID] = st
	}
	stops := make([]domain.Stop, 0, len(optimized.Stops))
	for _, st := range optimized.Stops {
		stops = append(stops, byOrder[st.OrderID])
	}
	current.Stops = stops
	current.Renumber()
	current.Route = optimized.Route
	current.UpdatedAt = s.now().UTC()

	if err := s.batches.Put(ctx, current); err != nil {
		return nil, fmt.Errorf("save route %s: %w", optimized.ID, err)
	}
	s.events.Publish(ctx, domain.NewBatchEvent(domain.EventRouteOptimized, current, current.UpdatedAt))
	return current, nil
}

// RunPeriodicRefresh refreshes batches every interval until ctx is done.
func (s *BatchService) RunPeriodicRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("periodic batch refresh failed", zap.Error(err))
			}
		}
	}
}

func routable(st domain.BatchStatus) bool {
	return st == domain.BatchCreated || st == domain.BatchPacked
}

func sameStopSet(a, b []domain.Stop) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, s := range a {
		ids[s.OrderID] = struct{}{}
	}
	for _, s := range b {
		if _, ok := ids[s.OrderID]; !ok {
			return false
		}
	}
	return true
}
