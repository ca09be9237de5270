package repositories

import (
	"context"
	"delivery-batch-service/internal/domain"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testBatch(t *testing.T, day domain.Weekday, orderIDs ...string) *domain.DeliveryBatch {
	t.Helper()

	b := domain.NewDeliveryBatch(day, day.NextDate(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)))
	for _, id := range orderIDs {
		if err := b.AddStop(domain.Stop{OrderID: id, OrderValue: decimal.NewFromInt(10)}); err != nil {
			t.Fatalf("add stop %s: %v", id, err)
		}
	}
	return b
}

func TestMemoryBatchRepositoryCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBatchRepository()

	b := testBatch(t, domain.Monday, "o1", "o2")
	if err := repo.Put(ctx, b); err != nil {
		t.Fatalf("put: %v", err)
	}
	b.Stops[0].OrderNumber = "mutated"

	got, err := repo.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stops[0].OrderNumber == "mutated" {
		t.Fatal("stored batch aliases the caller's value")
	}

	got.Status = domain.BatchPacked
	again, _ := repo.Get(ctx, b.ID)
	if again.Status != domain.BatchCreated {
		t.Fatalf("status = %s, want CREATED", again.Status)
	}
}

func TestMemoryBatchRepositoryRejectsStopInTwoBatches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBatchRepository()

	if err := repo.Put(ctx, testBatch(t, domain.Monday, "o1")); err != nil {
		t.Fatalf("put monday: %v", err)
	}
	if err := repo.Put(ctx, testBatch(t, domain.Tuesday, "o1")); err == nil {
		t.Fatal("expected error when an order is scheduled in two batches")
	}
}

func TestMemoryBatchRepositoryReindexesReplacedStops(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBatchRepository()

	if err := repo.Put(ctx, testBatch(t, domain.Monday, "o1", "o2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, testBatch(t, domain.Monday, "o2")); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if _, err := repo.FindByOrderID(ctx, "o1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindByOrderID(o1) err = %v, want ErrNotFound", err)
	}
	got, err := repo.FindByOrderID(ctx, "o2")
	if err != nil {
		t.Fatalf("FindByOrderID(o2): %v", err)
	}
	if got.DeliveryDay != domain.Monday {
		t.Fatalf("day = %s, want Monday", got.DeliveryDay)
	}

	// o1 is free again, so another batch may take it.
	if err := repo.Put(ctx, testBatch(t, domain.Tuesday, "o1")); err != nil {
		t.Fatalf("put tuesday: %v", err)
	}
}

func TestMemoryBatchRepositoryListByDay(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBatchRepository()
	_ = repo.Put(ctx, testBatch(t, domain.Monday, "o1"))
	_ = repo.Put(ctx, testBatch(t, domain.Friday, "o2"))

	got, err := repo.ListByDay(ctx, domain.Friday)
	if err != nil {
		t.Fatalf("list by day: %v", err)
	}
	if len(got) != 1 || got[0].DeliveryDay != domain.Friday {
		t.Fatalf("ListByDay(Friday) = %d batches", len(got))
	}

	all, _ := repo.List(ctx)
	// Friday 01-09 comes before the following Monday 01-12.
	if len(all) != 2 || all[0].DeliveryDay != domain.Friday {
		t.Fatalf("List not ordered by delivery date")
	}
}

func TestMemoryBatchRepositoryDeleteReleasesStops(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBatchRepository()

	monday := testBatch(t, domain.Monday, "o1")
	if err := repo.Put(ctx, monday); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Delete(ctx, monday.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, monday.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if _, err := repo.Get(ctx, monday.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete: err = %v", err)
	}
	if _, err := repo.FindByOrderID(ctx, "o1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindByOrderID after delete: err = %v", err)
	}
	if err := repo.Put(ctx, testBatch(t, domain.Tuesday, "o1")); err != nil {
		t.Fatalf("released order not reusable: %v", err)
	}
}

func TestMemoryConfirmationLogAppendsOncePerStop(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryConfirmationLog()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- log.Append(ctx, domain.DeliveryConfirmation{StopID: "o1", BatchID: "b"})
		}()
	}
	wg.Wait()
	close(results)

	ok, dup := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyDelivered):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 9 {
		t.Fatalf("ok = %d, dup = %d, want 1 and 9", ok, dup)
	}
}

func TestLoadOrdersJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	body := `[
		{"id": "o1", "order_number": "ORD-1", "destination": {"postal_code": "85003"},
		 "items": [{"product_id": "p1", "name": "Tea", "quantity": 2, "unit_price": "4.50"}],
		 "created_at": "2026-01-05T10:00:00Z"}
	]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	orders, err := LoadOrdersJSON(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if orders[0].Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %s, want CONFIRMED default", orders[0].Status)
	}
	if !orders[0].TotalValue.Equal(decimal.RequireFromString("9")) {
		t.Fatalf("total = %s, want 9 derived from items", orders[0].TotalValue)
	}
}

func TestLoadOrdersJSONRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	if err := os.WriteFile(path, []byte(`[{"id":"o1"},{"id":"o1"}]`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadOrdersJSON(path); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
