package obs

import (
	"context"
	"delivery-batch-service/internal/platform/metrics"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTimeRecordsOutcome(t *testing.T) {
	m := metrics.New()
	SetMetrics(m)
	t.Cleanup(func() { SetMetrics(nil) })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")

	func() (err error) {
		defer Time(ctx, "ok_op")(&err)
		return nil
	}()
	func() (err error) {
		defer Time(ctx, "bad_op")(&err)
		return errors.New("boom")
	}()

	if n := testutil.CollectAndCount(m.OperationDuration); n != 2 {
		t.Fatalf("histogram series = %d, want 2", n)
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("RequestID = %q, want empty", got)
	}
	ctx := context.WithValue(context.Background(), RequestIDKey, "abc")
	if got := RequestID(ctx); got != "abc" {
		t.Fatalf("RequestID = %q, want abc", got)
	}
}
