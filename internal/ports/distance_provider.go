package ports

import (
	"context"
	"delivery-batch-service/internal/domain"
)

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMiles   float64 `json:"distance_miles"`
	DurationSeconds int     `json:"duration_seconds"`
}

// Contract for retrieving travel distance and duration between locations.
type DistanceProvider interface {
	// Return travel distance and estimated duration between two locations.
	GetDistance(ctx context.Context, origin string, destination string) (DistanceResult, error)
}

// Geocoder resolves free-form addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
}
