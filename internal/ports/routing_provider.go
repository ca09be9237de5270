package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// RouteResult is the provider's ordering of a batch's stops plus route metrics.
type RouteResult struct {
	OrderedStops         []domain.Stop
	TotalDistanceMiles   float64
	EstimatedTimeMinutes int
	Polyline             string
	Bounds               *domain.Bounds
}

// RoutingProvider computes a drive-efficient ordering for a set of stops.
// Implementations may call external services and must honor ctx cancellation.
type RoutingProvider interface {
	Name() string
	OptimizeRoute(ctx context.Context, stops []domain.Stop) (RouteResult, error)
}
