package obs

import (
	"context"
	"delivery-batch-service/internal/platform/metrics"
	"time"

	"go.uber.org/zap"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

var recorder *metrics.Metrics

// SetMetrics routes operation durations into the given collectors.
func SetMetrics(m *metrics.Metrics) { recorder = m }

// RequestID returns the request id stored by the HTTP middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time starts a timer for op. Call the returned func with a pointer to the
// operation's named error result, usually in a defer.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			recorder.ObserveOperation(name, "error", dur.Seconds())
			zap.L().Warn("operation failed",
				zap.String("req_id", reqID),
				zap.String("op", name),
				zap.Int64("dur_ms", dur.Milliseconds()),
				zap.Error(*errp),
			)
			return
		}

		recorder.ObserveOperation(name, "ok", dur.Seconds())
		zap.L().Debug("operation",
			zap.String("req_id", reqID),
			zap.String("op", name),
			zap.Int64("dur_ms", dur.Milliseconds()),
		)
	}
}
