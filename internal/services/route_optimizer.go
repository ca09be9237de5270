package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/metrics"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/ports"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultRoutingTimeout = 10 * time.Second

type RouteOptimizerConfig struct {
	FuelCostPerMile decimal.Decimal
	Timeout         time.Duration
}

// RouteOptimizer reorders a batch's stops through a RoutingProvider.
// Routing availability never blocks a batch: on failure the batch comes back
// in its original order with route metrics cleared.
type RouteOptimizer struct {
	provider ports.RoutingProvider
	cfg      RouteOptimizerConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRouteOptimizer(provider ports.RoutingProvider, cfg RouteOptimizerConfig, log *zap.Logger, m *metrics.Metrics) *RouteOptimizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRoutingTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteOptimizer{
		provider: provider,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func (o *RouteOptimizer) ProviderName() string { return o.provider.Name() }

// Optimize returns a new batch value; the input is never modified.
// When the provider fails the returned batch is still usable and the error wraps
// domain.ErrRouteOptimizationFailed.
func (o *RouteOptimizer) Optimize(ctx context.Context, batch *domain.DeliveryBatch) (out *domain.DeliveryBatch, err error) {
	defer obs.Time(ctx, "route_optimizer.optimize")(&err)

	if batch == nil {
		return nil, domain.InvalidInput("batch must not be nil")
	}

	out = batch.Clone()
	out.Renumber()

	if len(out.Stops) <= 1 {
		out.Route = &domain.RouteMetrics{
			FuelCostEstimate: decimal.Zero,
			Provider:         o.provider.Name(),
			OptimizedAt:      o.now().UTC(),
		}
		return out, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	input := batch.Clone().Stops
	res, err := o.provider.OptimizeRoute(callCtx, input)
	if err == nil {
		err = checkPermutation(out.Stops, res.OrderedStops)
	}
	if err != nil {
		out.Route = nil
		o.metrics.OptimizationFailure(o.provider.Name())
		o.log.Warn("route optimization failed, keeping stop order",
			zap.String("batch_id", batch.ID),
			zap.String("provider", o.provider.Name()),
			zap.Int("stops", len(out.Stops)),
			zap.Error(err),
		)
		return out, fmt.Errorf("optimize batch %s: %w: %w", batch.ID, domain.ErrRouteOptimizationFailed, err)
	}

	// Rebuild from our own stop values; only the provider's ordering is trusted.
	byOrder := make(map[string]domain.Stop, len(out.Stops))
	for _, s := range out.Stops {
		byOrder[s.OrderID] = s
	}
	reordered := make([]domain.Stop, 0, len(out.Stops))
	for _, s := range res.OrderedStops {
		reordered = append(reordered, byOrder[s.OrderID])
	}
	out.Stops = reordered
	out.Renumber()

	miles := round2(res.TotalDistanceMiles)
	out.Route = &domain.RouteMetrics{
		TotalDistanceMiles:   miles,
		EstimatedTimeMinutes: res.EstimatedTimeMinutes,
		FuelCostEstimate:     decimal.NewFromFloat(miles).Mul(o.cfg.FuelCostPerMile).Round(2),
		Polyline:             res.Polyline,
		Bounds:               res.Bounds,
		Provider:             o.provider.Name(),
		OptimizedAt:          o.now().UTC(),
	}

	return out, nil
}

// checkPermutation rejects provider output that drops, duplicates or invents stops.
func checkPermutation(want, got []domain.Stop) error {
	if len(got) != len(want) {
		return fmt.Errorf("provider returned %d stops, want %d", len(got), len(want))
	}

	remaining := make(map[string]struct{}, len(want))
	for _, s := range want {
		remaining[s.OrderID] = struct{}{}
	}
	for _, s := range got {
		if _, ok := remaining[s.OrderID]; !ok {
			return fmt.Errorf("provider returned unknown or repeated stop %q", s.OrderID)
		}
		delete(remaining, s.OrderID)
	}

	return nil
}
