package services

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// MatrixRoutingProvider routes a batch over a distance backend such as
// OpenRouteService: it fetches pairwise distances between the hub and every
// stop address, then walks them nearest-neighbor first.
type MatrixRoutingProvider struct {
	Hub         string
	Distances   ports.DistanceProvider
	Geocoder    ports.Geocoder // optional, used for route bounds
	ReturnToHub bool
	Log         *zap.Logger
}

func (p *MatrixRoutingProvider) Name() string { return "distance-matrix" }

func (p *MatrixRoutingProvider) OptimizeRoute(ctx context.Context, stops []domain.Stop) (ports.RouteResult, error) {
	hub := collapseSpaces(p.Hub)
	if hub == "" {
		return ports.RouteResult{}, fmt.Errorf("matrix routing: hub must be non-empty")
	}

	// Several orders can share one address; they become consecutive stops.
	byDestination := make(map[string][]domain.Stop)
	destinations := make([]string, 0, len(stops))
	for _, s := range stops {
		d := collapseSpaces(s.Address.Line())
		if d == "" {
			return ports.RouteResult{}, fmt.Errorf("matrix routing: stop %q has empty address", s.OrderID)
		}
		if _, seen := byDestination[d]; !seen {
			destinations = append(destinations, d)
		}
		byDestination[d] = append(byDestination[d], s)
	}

	distances, err := fetchPairwiseDistances(ctx, p.Distances, hub, destinations)
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("matrix routing: %w", err)
	}

	t, err := nearestNeighborTour(hub, destinations, distances, p.ReturnToHub)
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("matrix routing: %w", err)
	}

	ordered := make([]domain.Stop, 0, len(stops))
	for _, d := range t.order {
		ordered = append(ordered, byDestination[d]...)
	}

	return ports.RouteResult{
		OrderedStops:         ordered,
		TotalDistanceMiles:   round2(t.distanceMiles),
		EstimatedTimeMinutes: int(math.Ceil(float64(t.durationSeconds) / 60)),
		Bounds:               p.bounds(ctx, destinations),
	}, nil
}

// bounds is best effort; a geocoding failure leaves the route without a box.
func (p *MatrixRoutingProvider) bounds(ctx context.Context, destinations []string) *domain.Bounds {
	if p.Geocoder == nil {
		return nil
	}

	coords, err := p.Geocoder.Geocode(ctx, destinations)
	if err != nil {
		if p.Log != nil {
			p.Log.Warn("route bounds unavailable", zap.Error(err))
		}
		return nil
	}

	points := make([]domain.Coordinates, 0, len(destinations))
	for _, d := range destinations {
		if c, ok := coords[d]; ok {
			points = append(points, c)
		}
	}
	return domain.BoundsOf(points)
}

// collapseSpaces matches the address keys distance backends return.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
