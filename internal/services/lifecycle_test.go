package services

import (
	"context"
	"delivery-batch-service/internal/adapters/lock"
	"delivery-batch-service/internal/adapters/repositories"
	"delivery-batch-service/internal/domain"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BatchEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.BatchEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type lifecycleFixture struct {
	mgr     *LifecycleManager
	batches *repositories.MemoryBatchRepository
	log     *repositories.MemoryConfirmationLog
	events  *recordingPublisher
	batchID string
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	batches := repositories.NewMemoryBatchRepository()
	b := threeStopBatch(t)
	if err := batches.Put(context.Background(), b); err != nil {
		t.Fatalf("put batch: %v", err)
	}

	f := &lifecycleFixture{
		batches: batches,
		log:     repositories.NewMemoryConfirmationLog(),
		events:  &recordingPublisher{},
		batchID: b.ID,
	}
	f.mgr = NewLifecycleManager(LifecycleDeps{
		Batches:       batches,
		Confirmations: f.log,
		Locker:        lock.NewKeyedMutex(),
		Events:        f.events,
		Now:           func() time.Time { return time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) },
	})
	return f
}

var testDriver = &domain.DriverAssignment{Name: "Dana", Phone: "555-0101", VehicleID: "VAN-7"}

func (f *lifecycleFixture) dispatch(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.mgr.MarkPacked(ctx, f.batchID); err != nil {
		t.Fatalf("packed: %v", err)
	}
	if _, err := f.mgr.MarkLoaded(ctx, f.batchID, testDriver); err != nil {
		t.Fatalf("loaded: %v", err)
	}
	if _, err := f.mgr.MarkOutForDelivery(ctx, f.batchID); err != nil {
		t.Fatalf("out for delivery: %v", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	f.dispatch(t)

	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		if _, err := f.mgr.ConfirmStopDelivery(ctx, f.batchID, id, ConfirmationInput{Notes: "left at door"}); err != nil {
			t.Fatalf("confirm %s: %v", id, err)
		}
	}

	b, err := f.mgr.MarkCompleted(ctx, f.batchID)
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if b.Status != domain.BatchCompleted {
		t.Fatalf("status = %s", b.Status)
	}

	var seen []domain.BatchStatus
	for _, h := range b.History {
		seen = append(seen, h.To)
	}
	want := []domain.BatchStatus{domain.BatchPacked, domain.BatchLoaded, domain.BatchOutForDelivery, domain.BatchCompleted}
	if !slices.Equal(seen, want) {
		t.Fatalf("history = %v, want %v", seen, want)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].Rank() <= seen[i-1].Rank() {
			t.Fatalf("history not monotonic: %v", seen)
		}
	}

	report, err := f.mgr.Status(ctx, f.batchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.CompletionPercentage != 100 || report.Driver == nil || report.Driver.VehicleID != "VAN-7" {
		t.Fatalf("report = %+v", report)
	}

	// 4 transitions and 3 deliveries
	if len(f.events.events) != 7 {
		t.Fatalf("published %d events, want 7", len(f.events.events))
	}
}

func TestLifecycleRejectsSkippedAndBackwardSteps(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	_, err := f.mgr.MarkOutForDelivery(ctx, f.batchID)
	var te *domain.TransitionError
	if !errors.As(err, &te) || !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want TransitionError", err)
	}
	if te.From != domain.BatchCreated || te.To != domain.BatchOutForDelivery {
		t.Fatalf("transition error = %+v", te)
	}

	if _, err := f.mgr.MarkPacked(ctx, f.batchID); err != nil {
		t.Fatalf("packed: %v", err)
	}
	if _, err := f.mgr.Transition(ctx, f.batchID, domain.BatchCreated, nil); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("back to created: err = %v", err)
	}
	if _, err := f.mgr.MarkPacked(ctx, f.batchID); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("repeat packed: err = %v", err)
	}
}

func TestMarkLoadedRequiresDriver(t *testing.T) {
	tests := []struct {
		name   string
		driver *domain.DriverAssignment
	}{
		{"no driver", nil},
		{"missing phone", &domain.DriverAssignment{Name: "Dana", VehicleID: "VAN-7"}},
		{"blank vehicle", &domain.DriverAssignment{Name: "Dana", Phone: "555", VehicleID: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLifecycleFixture(t)
			ctx := context.Background()
			if _, err := f.mgr.MarkPacked(ctx, f.batchID); err != nil {
				t.Fatalf("packed: %v", err)
			}

			_, err := f.mgr.MarkLoaded(ctx, f.batchID, tt.driver)
			if !errors.Is(err, domain.ErrMissingDriverInfo) {
				t.Fatalf("err = %v, want ErrMissingDriverInfo", err)
			}

			b, _ := f.batches.Get(ctx, f.batchID)
			if b.Status != domain.BatchPacked || b.Driver != nil {
				t.Fatalf("batch changed: status=%s driver=%v", b.Status, b.Driver)
			}
		})
	}
}

func TestMarkCompletedWithIncompleteStops(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	f.dispatch(t)

	if _, err := f.mgr.ConfirmStopDelivery(ctx, f.batchID, "ORD-2", ConfirmationInput{}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := f.mgr.MarkCompleted(ctx, f.batchID)
	var ie *domain.IncompleteStopsError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want IncompleteStopsError", err)
	}
	if !slices.Equal(ie.MissingStopIDs, []string{"ORD-1", "ORD-3"}) {
		t.Fatalf("missing = %v", ie.MissingStopIDs)
	}

	b, _ := f.batches.Get(ctx, f.batchID)
	if b.Status != domain.BatchOutForDelivery {
		t.Fatalf("status = %s, want OUT_FOR_DELIVERY", b.Status)
	}
}

func TestCancelIsTerminal(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	if _, err := f.mgr.MarkPacked(ctx, f.batchID); err != nil {
		t.Fatalf("packed: %v", err)
	}
	b, err := f.mgr.Cancel(ctx, f.batchID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if b.Status != domain.BatchCancelled {
		t.Fatalf("status = %s", b.Status)
	}

	for _, target := range []domain.BatchStatus{domain.BatchLoaded, domain.BatchCancelled, domain.BatchCompleted} {
		if _, err := f.mgr.Transition(ctx, f.batchID, target, testDriver); !errors.Is(err, domain.ErrInvalidStateTransition) {
			t.Fatalf("%s after cancel: err = %v", target, err)
		}
	}

	archived, err := f.mgr.Archive(ctx, f.batchID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.ArchivedAt == nil {
		t.Fatal("archived_at not set")
	}
}

func TestArchiveRequiresTerminalStatus(t *testing.T) {
	f := newLifecycleFixture(t)
	if _, err := f.mgr.Archive(context.Background(), f.batchID); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("err = %v", err)
	}
}

func TestMarkPackedRejectsEmptyBatch(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	empty := domain.NewDeliveryBatch(domain.Tuesday, domain.Tuesday.NextDate(weekOf))
	if err := f.batches.Put(ctx, empty); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err := f.mgr.MarkPacked(ctx, empty.ID)
	if !errors.Is(err, domain.ErrEmptyBatch) || !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want empty batch transition error", err)
	}
	b, _ := f.batches.Get(ctx, empty.ID)
	if b.Status != domain.BatchCreated || len(f.events.events) != 0 {
		t.Fatalf("status = %s, events = %d", b.Status, len(f.events.events))
	}
}

func TestConfirmRequiresOutForDelivery(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.mgr.ConfirmStopDelivery(context.Background(), f.batchID, "ORD-1", ConfirmationInput{})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfirmUnknownStop(t *testing.T) {
	f := newLifecycleFixture(t)
	f.dispatch(t)
	_, err := f.mgr.ConfirmStopDelivery(context.Background(), f.batchID, "ORD-404", ConfirmationInput{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentConfirmationRecordsOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	f.dispatch(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.mgr.ConfirmStopDelivery(ctx, f.batchID, "ORD-1", ConfirmationInput{Notes: "try"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok, dup := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyDelivered):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != callers-1 {
		t.Fatalf("successes=%d duplicates=%d", ok, dup)
	}

	logged, err := f.log.Get(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("log get: %v", err)
	}
	b, _ := f.batches.Get(ctx, f.batchID)
	if b.Stops[0].Confirmation == nil || b.Stops[0].Confirmation.ID != logged.ID {
		t.Fatalf("batch confirmation %+v does not match log %+v", b.Stops[0].Confirmation, logged)
	}
}

func TestConfirmRepairsBatchFromLog(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	f.dispatch(t)

	// Simulates a crash between the log append and the batch save.
	prior := domain.DeliveryConfirmation{ID: "c-1", BatchID: f.batchID, StopID: "ORD-2", DeliveredAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	if err := f.log.Append(ctx, prior); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := f.mgr.ConfirmStopDelivery(ctx, f.batchID, "ORD-2", ConfirmationInput{}); !errors.Is(err, domain.ErrAlreadyDelivered) {
		t.Fatalf("err = %v, want ErrAlreadyDelivered", err)
	}

	b, _ := f.batches.Get(ctx, f.batchID)
	i, _ := b.StopIndex("ORD-2")
	if b.Stops[i].Confirmation == nil || b.Stops[i].Confirmation.ID != "c-1" {
		t.Fatalf("confirmation not restored: %+v", b.Stops[i].Confirmation)
	}
}

func TestConfirmOrderDeliveryFindsBatch(t *testing.T) {
	f := newLifecycleFixture(t)
	f.dispatch(t)

	conf, err := f.mgr.ConfirmOrderDelivery(context.Background(), "ORD-3", ConfirmationInput{PhotoRef: " s3://photo "})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.BatchID != f.batchID || conf.PhotoRef != "s3://photo" {
		t.Fatalf("confirmation = %+v", conf)
	}

	if _, err := f.mgr.ConfirmOrderDelivery(context.Background(), "ORD-404", ConfirmationInput{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
