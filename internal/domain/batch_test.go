package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testBatch(t *testing.T, orderIDs ...string) *DeliveryBatch {
	t.Helper()

	date := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	b := NewDeliveryBatch(Friday, date)
	for _, id := range orderIDs {
		stop := Stop{
			OrderID:    id,
			Items:      []LineItem{{ProductID: "p-" + id, Name: "Loaf", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")}},
			OrderValue: decimal.RequireFromString("9.00"),
		}
		if err := b.AddStop(stop); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return b
}

func TestBatchIDIsDerivedFromDayAndDate(t *testing.T) {
	b := testBatch(t)
	if b.ID != "BATCH-FRIDAY-2026-01-02" {
		t.Fatalf("id = %q, want BATCH-FRIDAY-2026-01-02", b.ID)
	}
	if b.Status != BatchCreated {
		t.Fatalf("status = %s, want %s", b.Status, BatchCreated)
	}
}

func TestBatchAddStopRejectsDuplicateOrder(t *testing.T) {
	b := testBatch(t, "o1")
	if err := b.AddStop(Stop{OrderID: "o1"}); err == nil {
		t.Fatal("expected duplicate stop error")
	}
	if len(b.Stops) != 1 {
		t.Fatalf("stops = %d, want 1", len(b.Stops))
	}
}

func TestBatchSummaryIsDerivedFromStops(t *testing.T) {
	b := testBatch(t, "o1", "o2", "o3")

	sum := b.Summary()
	if sum.TotalOrders != 3 {
		t.Fatalf("orders = %d, want 3", sum.TotalOrders)
	}
	if sum.TotalItems != 6 {
		t.Fatalf("items = %d, want 6", sum.TotalItems)
	}
	if !sum.TotalValue.Equal(decimal.RequireFromString("27")) {
		t.Fatalf("value = %s, want 27", sum.TotalValue)
	}

	b.Stops = b.Stops[:1]
	if got := b.Summary().TotalOrders; got != 1 {
		t.Fatalf("orders after trim = %d, want 1", got)
	}
}

func TestBatchValidateDetectsBrokenNumbering(t *testing.T) {
	b := testBatch(t, "o1", "o2", "o3")
	if err := b.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Stops[0], b.Stops[2] = b.Stops[2], b.Stops[0]
	if err := b.Validate(); err != nil {
		t.Fatalf("swapped stops keep a permutation, got %v", err)
	}

	b.Stops[1].StopNumber = 3
	if err := b.Validate(); err == nil {
		t.Fatal("expected duplicate stop number error")
	}

	b.Renumber()
	if err := b.Validate(); err != nil {
		t.Fatalf("renumbered batch invalid: %v", err)
	}
	if b.Stops[0].OrderID != "o3" || b.Stops[0].StopNumber != 1 {
		t.Fatalf("first stop = %s #%d, want o3 #1", b.Stops[0].OrderID, b.Stops[0].StopNumber)
	}
}

func TestBatchTransitionsAreMonotonic(t *testing.T) {
	at := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)

	b := testBatch(t, "o1")
	for _, next := range []BatchStatus{BatchPacked, BatchLoaded, BatchOutForDelivery, BatchCompleted} {
		if err := b.Transition(next, at); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	// every backwards or skipping move must be rejected
	for _, from := range []BatchStatus{BatchCreated, BatchPacked, BatchLoaded, BatchOutForDelivery} {
		for _, to := range []BatchStatus{BatchCreated, BatchPacked, BatchLoaded, BatchOutForDelivery, BatchCompleted} {
			want := to.Rank() == from.Rank()+1
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s allowed = %v, want %v", from, to, got, want)
			}
		}
		if !from.CanTransitionTo(BatchCancelled) {
			t.Errorf("%s -> CANCELLED should be allowed", from)
		}
	}

	if err := b.Transition(BatchCancelled, at); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("cancel completed batch err = %v, want ErrInvalidStateTransition", err)
	}

	for i := 1; i < len(b.History); i++ {
		if b.History[i].To.Rank() <= b.History[i-1].To.Rank() {
			t.Fatalf("history not increasing at %d: %+v", i, b.History)
		}
	}
}

func TestCancelledBatchIsTerminal(t *testing.T) {
	at := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	b := testBatch(t, "o1")

	if err := b.Transition(BatchCancelled, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var te *TransitionError
	if err := b.Transition(BatchPacked, at); !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransitionError", err)
	}
	if te.From != BatchCancelled || te.To != BatchPacked {
		t.Fatalf("transition error = %+v", te)
	}
}

func TestBatchConfirmIsAppendOnly(t *testing.T) {
	at := time.Date(2026, 1, 2, 11, 0, 0, 0, time.UTC)
	b := testBatch(t, "o1", "o2")

	if err := b.Confirm(DeliveryConfirmation{StopID: "o1", DeliveredAt: at, Notes: "porch"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := b.Confirm(DeliveryConfirmation{StopID: "o1", DeliveredAt: at.Add(time.Hour), Notes: "again"})
	if !errors.Is(err, ErrAlreadyDelivered) {
		t.Fatalf("err = %v, want ErrAlreadyDelivered", err)
	}
	if b.Stops[0].Confirmation.Notes != "porch" {
		t.Fatalf("confirmation overwritten: %+v", b.Stops[0].Confirmation)
	}

	if err := b.Confirm(DeliveryConfirmation{StopID: "missing", DeliveredAt: at}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if got := b.CompletionPercentage(); got != 50 {
		t.Fatalf("completion = %v, want 50", got)
	}
}

func TestBatchCloneDoesNotAlias(t *testing.T) {
	b := testBatch(t, "o1", "o2")
	b.Driver = &DriverAssignment{Name: "Ana", Phone: "555", VehicleID: "V1"}

	c := b.Clone()
	c.Stops[0].Items[0].Quantity = 99
	c.Driver.Name = "Bo"
	c.Stops = c.Stops[:1]

	if b.Stops[0].Items[0].Quantity != 2 {
		t.Fatalf("clone shares items with original")
	}
	if b.Driver.Name != "Ana" {
		t.Fatalf("clone shares driver with original")
	}
	if len(b.Stops) != 2 {
		t.Fatalf("clone shares stop slice with original")
	}
}

func TestParseBatchStatusAcceptsSpellings(t *testing.T) {
	for _, in := range []string{"OUT_FOR_DELIVERY", "out-for-delivery", "OutForDelivery", " outfordelivery "} {
		got, ok := ParseBatchStatus(in)
		if !ok || got != BatchOutForDelivery {
			t.Errorf("ParseBatchStatus(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseBatchStatus("shipped"); ok {
		t.Errorf("ParseBatchStatus(shipped) should fail")
	}
}

func TestWeekdayNextDate(t *testing.T) {
	// Wednesday 2026-01-07
	ref := time.Date(2026, 1, 7, 15, 30, 0, 0, time.UTC)

	if got := WeekStart(ref); !got.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v", got)
	}

	cases := []struct {
		day  Weekday
		want string
	}{
		{Wednesday, "2026-01-07"},
		{Friday, "2026-01-09"},
		{Sunday, "2026-01-11"},
		// Already passed this week.
		{Monday, "2026-01-12"},
		{Tuesday, "2026-01-13"},
	}
	for _, tc := range cases {
		got := tc.day.NextDate(ref)
		if got.Format(time.DateOnly) != tc.want || !got.Equal(StartOfDay(got)) {
			t.Errorf("%s = %v, want %s at midnight", tc.day, got, tc.want)
		}
	}

	// Sunday late evening still belongs to the old week.
	sunday := time.Date(2026, 1, 11, 23, 59, 0, 0, time.UTC)
	if got := Monday.NextDate(sunday).Format(time.DateOnly); got != "2026-01-12" {
		t.Fatalf("monday after sunday = %s", got)
	}
}

func TestDriverAssignmentValidate(t *testing.T) {
	var d *DriverAssignment
	if err := d.Validate(); !errors.Is(err, ErrMissingDriverInfo) {
		t.Fatalf("nil driver err = %v", err)
	}

	d = &DriverAssignment{Name: "Ana"}
	if err := d.Validate(); !errors.Is(err, ErrMissingDriverInfo) {
		t.Fatalf("partial driver err = %v", err)
	}

	d = &DriverAssignment{Name: "Ana", Phone: "555-0100", VehicleID: "VAN-2"}
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
