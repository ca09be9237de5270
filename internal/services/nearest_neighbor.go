package services

import (
	"delivery-batch-service/internal/ports"
	"errors"
	"fmt"
	"math"
)

type tour struct {
	order           []string
	distanceMiles   float64
	durationSeconds int
}

// nearestNeighborTour orders destinations with a greedy nearest-neighbor walk from start.
//
// The walk minimizes immediate travel duration at each step.
// It does not attempt global route optimization (e.g., VRP solvers).
// distances is keyed "origin|destination".
func nearestNeighborTour(
	start string,
	destinations []string,
	distances map[string]ports.DistanceResult,
	returnToStart bool,
) (tour, error) {
	if start == "" {
		return tour{}, errors.New("nearest neighbor: start must be non-empty")
	}

	remaining := make(map[string]struct{}, len(destinations))
	for _, d := range destinations {
		remaining[d] = struct{}{}
	}

	current := start
	out := tour{order: make([]string, 0, len(remaining))}

	for len(remaining) > 0 {
		var best string
		minDuration := math.MaxInt64

		for d := range remaining {
			r, ok := distances[current+"|"+d]
			if !ok {
				return tour{}, fmt.Errorf("nearest neighbor: missing distance result from %q to %q", current, d)
			}
			// Tie-breaker keeps the ordering deterministic when durations are equal.
			if r.DurationSeconds < minDuration || (r.DurationSeconds == minDuration && (best == "" || d < best)) {
				minDuration = r.DurationSeconds
				best = d
			}
		}

		leg := distances[current+"|"+best]
		out.durationSeconds += leg.DurationSeconds
		out.distanceMiles += leg.DistanceMiles
		out.order = append(out.order, best)

		delete(remaining, best)
		current = best
	}

	if returnToStart && len(out.order) > 0 {
		back, ok := distances[current+"|"+start]
		if !ok {
			return tour{}, fmt.Errorf(
				"nearest neighbor: missing distance result for return leg from %q to %q",
				current, start,
			)
		}
		out.durationSeconds += back.DurationSeconds
		out.distanceMiles += back.DistanceMiles
	}

	return out, nil
}
