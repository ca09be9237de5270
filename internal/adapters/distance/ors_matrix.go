package distance

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"fmt"
	"math"
	"net/http"
)

// matrixRequest asks for a single source row with distances in miles.
type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Units        string      `json:"units"`
}

// A null cell means OpenRouteService found no route.
type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// legsFrom returns the drive from origin to every destination, keyed by
// destination, using one matrix row. coords must hold each destination.
func (o *ORSDistanceProvider) legsFrom(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []string,
	coords map[string]domain.Coordinates,
) (map[string]ports.DistanceResult, error) {
	if len(destinations) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	req := matrixRequest{
		Locations:    [][]float64{origin.CoordsToList()},
		Sources:      []int{0},
		Destinations: make([]int, 0, len(destinations)),
		Metrics:      []string{"distance", "duration"},
		Units:        "mi",
	}
	for i, d := range destinations {
		c, ok := coords[d]
		if !ok {
			return nil, fmt.Errorf("missing coordinate for destination %q", d)
		}
		req.Locations = append(req.Locations, c.CoordsToList())
		req.Destinations = append(req.Destinations, i+1)
	}

	var res matrixResponse
	if err := o.call(ctx, orsCall{method: http.MethodPost, path: "/v2/matrix/" + o.profile, body: req}, &res); err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	if len(res.Distances) != 1 || len(res.Durations) != 1 ||
		len(res.Distances[0]) != len(destinations) || len(res.Durations[0]) != len(destinations) {
		return nil, fmt.Errorf("matrix: want 1x%d result, got %d distance and %d duration rows",
			len(destinations), len(res.Distances), len(res.Durations))
	}

	out := make(map[string]ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		miles, seconds := res.Distances[0][i], res.Durations[0][i]
		if miles == nil || seconds == nil {
			return nil, fmt.Errorf("matrix: no drivable route to %q", d)
		}
		out[d] = ports.DistanceResult{
			DistanceMiles:   *miles,
			DurationSeconds: int(math.Round(*seconds)),
		}
	}
	return out, nil
}
