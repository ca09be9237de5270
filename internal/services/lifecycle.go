package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/metrics"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/ports"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmationInput is the optional proof attached to a delivered stop.
type ConfirmationInput struct {
	PhotoRef string
	Notes    string
}

// StatusReport is the operator view of a batch's progress.
type StatusReport struct {
	BatchID              string                   `json:"batch_id"`
	DeliveryDay          domain.Weekday           `json:"delivery_day"`
	Status               domain.BatchStatus       `json:"status"`
	Driver               *domain.DriverAssignment `json:"driver,omitempty"`
	DeliveredStops       int                      `json:"delivered_stops"`
	TotalStops           int                      `json:"total_stops"`
	CompletionPercentage float64                  `json:"completion_percentage"`
	History              []domain.StatusChange    `json:"history"`
	ArchivedAt           *time.Time               `json:"archived_at,omitempty"`
}

type LifecycleDeps struct {
	Batches       ports.BatchRepository
	Confirmations ports.ConfirmationLog
	Locker        ports.BatchLocker
	Events        ports.EventPublisher
	Metrics       *metrics.Metrics
	Log           *zap.Logger
	Now           func() time.Time
}

// LifecycleManager drives batches through
// CREATED -> PACKED -> LOADED -> OUT_FOR_DELIVERY -> COMPLETED, with CANCELLED as the
// only side exit. Every mutation of a batch runs under its lock.
type LifecycleManager struct {
	batches       ports.BatchRepository
	confirmations ports.ConfirmationLog
	locker        ports.BatchLocker
	events        ports.EventPublisher
	metrics       *metrics.Metrics
	log           *zap.Logger
	now           func() time.Time
}

func NewLifecycleManager(deps LifecycleDeps) *LifecycleManager {
	m := &LifecycleManager{
		batches:       deps.Batches,
		confirmations: deps.Confirmations,
		locker:        deps.Locker,
		events:        deps.Events,
		metrics:       deps.Metrics,
		log:           deps.Log,
		now:           deps.Now,
	}
	if m.events == nil {
		m.events = noopPublisher{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// MarkPacked refuses a batch without stops.
func (m *LifecycleManager) MarkPacked(ctx context.Context, batchID string) (*domain.DeliveryBatch, error) {
	return m.advance(ctx, batchID, domain.BatchPacked, func(b *domain.DeliveryBatch) error {
		if len(b.Stops) == 0 {
			return fmt.Errorf("batch %s: %w: %w", b.ID, domain.ErrInvalidStateTransition, domain.ErrEmptyBatch)
		}
		return nil
	})
}

// MarkLoaded requires a driver with name, phone and vehicle id.
func (m *LifecycleManager) MarkLoaded(ctx context.Context, batchID string, driver *domain.DriverAssignment) (*domain.DeliveryBatch, error) {
	return m.advance(ctx, batchID, domain.BatchLoaded, func(b *domain.DeliveryBatch) error {
		if err := driver.Validate(); err != nil {
			return fmt.Errorf("batch %s: %w", b.ID, err)
		}
		d := *driver
		b.Driver = &d
		return nil
	})
}

func (m *LifecycleManager) MarkOutForDelivery(ctx context.Context, batchID string) (*domain.DeliveryBatch, error) {
	return m.advance(ctx, batchID, domain.BatchOutForDelivery, nil)
}

// MarkCompleted succeeds only when every stop has a delivery confirmation.
func (m *LifecycleManager) MarkCompleted(ctx context.Context, batchID string) (*domain.DeliveryBatch, error) {
	return m.advance(ctx, batchID, domain.BatchCompleted, func(b *domain.DeliveryBatch) error {
		if missing := b.UndeliveredStopIDs(); len(missing) > 0 {
			return &domain.IncompleteStopsError{BatchID: b.ID, MissingStopIDs: missing}
		}
		return nil
	})
}

// Cancel is terminal and allowed from every state before COMPLETED.
func (m *LifecycleManager) Cancel(ctx context.Context, batchID string) (*domain.DeliveryBatch, error) {
	return m.advance(ctx, batchID, domain.BatchCancelled, nil)
}

// Transition dispatches a requested target status to the matching lifecycle event.
func (m *LifecycleManager) Transition(ctx context.Context, batchID string, target domain.BatchStatus, driver *domain.DriverAssignment) (*domain.DeliveryBatch, error) {
	switch target {
	case domain.BatchPacked:
		return m.MarkPacked(ctx, batchID)
	case domain.BatchLoaded:
		return m.MarkLoaded(ctx, batchID, driver)
	case domain.BatchOutForDelivery:
		return m.MarkOutForDelivery(ctx, batchID)
	case domain.BatchCompleted:
		return m.MarkCompleted(ctx, batchID)
	case domain.BatchCancelled:
		return m.Cancel(ctx, batchID)
	case domain.BatchCreated:
		b, err := m.batches.Get(ctx, batchID)
		if err != nil {
			return nil, err
		}
		m.metrics.Rejected("invalid_state_transition")
		return nil, &domain.TransitionError{BatchID: b.ID, From: b.Status, To: domain.BatchCreated}
	default:
		return nil, domain.InvalidInput("unknown batch status %q", target)
	}
}

// ConfirmStopDelivery records the delivery of one stop exactly once.
// The batch must be OUT_FOR_DELIVERY; its status does not change.
func (m *LifecycleManager) ConfirmStopDelivery(ctx context.Context, batchID, stopID string, in ConfirmationInput) (conf domain.DeliveryConfirmation, err error) {
	defer obs.Time(ctx, "lifecycle.confirm_stop_delivery")(&err)

	if strings.TrimSpace(stopID) == "" {
		return domain.DeliveryConfirmation{}, domain.InvalidInput("stop id must not be empty")
	}

	b, err := m.mutate(ctx, batchID, func(b *domain.DeliveryBatch) error {
		if b.Status != domain.BatchOutForDelivery {
			return fmt.Errorf("batch %s is %s, deliveries need %s: %w",
				b.ID, b.Status, domain.BatchOutForDelivery, domain.ErrInvalidStateTransition)
		}

		i, ok := b.StopIndex(stopID)
		if !ok {
			return domain.NotFound("stop", stopID)
		}
		if b.Stops[i].Delivered() {
			return fmt.Errorf("batch %s stop %s: %w", b.ID, stopID, domain.ErrAlreadyDelivered)
		}

		conf = domain.DeliveryConfirmation{
			ID:          uuid.NewString(),
			BatchID:     b.ID,
			StopID:      stopID,
			DeliveredAt: m.now().UTC(),
			PhotoRef:    strings.TrimSpace(in.PhotoRef),
			Notes:       strings.TrimSpace(in.Notes),
		}

		// The log is the at-most-once guard across processes.
		if err := m.confirmations.Append(ctx, conf); err != nil {
			if errors.Is(err, domain.ErrAlreadyDelivered) {
				m.repairFromLog(ctx, b, stopID)
			}
			return err
		}
		return b.Confirm(conf)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyDelivered) {
			m.metrics.Rejected("already_delivered")
		}
		return domain.DeliveryConfirmation{}, err
	}

	m.metrics.Confirmed()
	ev := domain.NewBatchEvent(domain.EventStopDelivered, b, conf.DeliveredAt)
	ev.StopID = stopID
	m.events.Publish(ctx, ev)

	return conf, nil
}

// ConfirmOrderDelivery confirms the stop for orderID in whichever batch holds it.
func (m *LifecycleManager) ConfirmOrderDelivery(ctx context.Context, orderID string, in ConfirmationInput) (domain.DeliveryConfirmation, error) {
	b, err := m.batches.FindByOrderID(ctx, orderID)
	if err != nil {
		return domain.DeliveryConfirmation{}, fmt.Errorf("confirm order %s: %w", orderID, err)
	}
	return m.ConfirmStopDelivery(ctx, b.ID, orderID, in)
}

// Status reports progress; the completion percentage is recomputed on every call.
func (m *LifecycleManager) Status(ctx context.Context, batchID string) (StatusReport, error) {
	b, err := m.batches.Get(ctx, batchID)
	if err != nil {
		return StatusReport{}, err
	}
	return NewStatusReport(b), nil
}

// Archive hides a COMPLETED or CANCELLED batch from current listings.
func (m *LifecycleManager) Archive(ctx context.Context, batchID string) (*domain.DeliveryBatch, error) {
	return m.mutate(ctx, batchID, func(b *domain.DeliveryBatch) error {
		if err := b.Archive(m.now().UTC()); err != nil {
			m.metrics.Rejected("invalid_state_transition")
			return err
		}
		return nil
	})
}

func NewStatusReport(b *domain.DeliveryBatch) StatusReport {
	history := b.History
	if history == nil {
		history = []domain.StatusChange{}
	}
	return StatusReport{
		BatchID:              b.ID,
		DeliveryDay:          b.DeliveryDay,
		Status:               b.Status,
		Driver:               b.Driver,
		DeliveredStops:       b.DeliveredCount(),
		TotalStops:           len(b.Stops),
		CompletionPercentage: b.CompletionPercentage(),
		History:              history,
		ArchivedAt:           b.ArchivedAt,
	}
}

// advance runs precondition (if any) and then the transition to next.
func (m *LifecycleManager) advance(
	ctx context.Context,
	batchID string,
	next domain.BatchStatus,
	precondition func(b *domain.DeliveryBatch) error,
) (out *domain.DeliveryBatch, err error) {
	defer obs.Time(ctx, "lifecycle.transition."+strings.ToLower(string(next)))(&err)

	var from domain.BatchStatus
	b, err := m.mutate(ctx, batchID, func(b *domain.DeliveryBatch) error {
		from = b.Status
		if !b.Status.CanTransitionTo(next) {
			return &domain.TransitionError{BatchID: b.ID, From: b.Status, To: next}
		}
		if precondition != nil {
			if err := precondition(b); err != nil {
				return err
			}
		}
		return b.Transition(next, m.now().UTC())
	})
	if err != nil {
		m.metrics.Rejected(rejectReason(err))
		return nil, err
	}

	m.metrics.Transition(string(next))
	m.log.Info("batch status changed",
		zap.String("batch_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	m.events.Publish(ctx, domain.NewBatchEvent(domain.EventStatusChanged, b, b.UpdatedAt))

	return b, nil
}

// mutate loads the batch under its lock, applies fn and persists the result.
// Nothing is written when fn fails.
func (m *LifecycleManager) mutate(ctx context.Context, batchID string, fn func(b *domain.DeliveryBatch) error) (*domain.DeliveryBatch, error) {
	unlock, err := m.locker.Lock(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("lock batch %s: %w", batchID, err)
	}
	defer unlock()

	b, err := m.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if err := fn(b); err != nil {
		return nil, err
	}

	if err := m.batches.Put(ctx, b); err != nil {
		return nil, fmt.Errorf("save batch %s: %w", batchID, err)
	}
	return b, nil
}

// repairFromLog copies a logged confirmation into a batch that missed it,
// e.g. after a save failed following a successful append.
func (m *LifecycleManager) repairFromLog(ctx context.Context, b *domain.DeliveryBatch, stopID string) {
	logged, err := m.confirmations.Get(ctx, stopID)
	if err != nil || logged.BatchID != b.ID {
		return
	}
	if err := b.Confirm(logged); err != nil {
		return
	}
	if err := m.batches.Put(ctx, b); err != nil {
		m.log.Error("repair batch confirmation",
			zap.String("batch_id", b.ID),
			zap.String("stop_id", stopID),
			zap.Error(err),
		)
		return
	}
	m.log.Warn("restored confirmation from log", zap.String("batch_id", b.ID), zap.String("stop_id", stopID))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyBatch):
		return "empty_batch"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, domain.ErrMissingDriverInfo):
		return "missing_driver_info"
	case errors.Is(err, domain.ErrIncompleteStops):
		return "incomplete_stops"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.BatchEvent) {}
