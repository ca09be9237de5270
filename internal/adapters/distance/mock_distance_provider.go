package distance

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"fmt"
	"sync/atomic"
)

// MockPair is one directed distance entry served by MockDistanceProvider.
type MockPair struct {
	From, To string
	Miles    float64
	Seconds  int
}

// MockDistanceProvider serves fixed distances and coordinates for offline runs and tests.
type MockDistanceProvider struct {
	m      map[string]ports.DistanceResult
	coords map[string]domain.Coordinates
	calls  atomic.Int64
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = ports.DistanceResult{DistanceMiles: p.Miles, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m, coords: map[string]domain.Coordinates{}}
}

// WithCoordinates registers geocode answers for addresses.
func (p *MockDistanceProvider) WithCoordinates(coords map[string]domain.Coordinates) *MockDistanceProvider {
	for k, v := range coords {
		p.coords[k] = v
	}
	return p
}

// Calls reports how many GetDistance lookups were served.
func (p *MockDistanceProvider) Calls() int { return int(p.calls.Load()) }

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination string) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	p.calls.Add(1)

	r, ok := p.m[origin+"|"+destination]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %q -> %q", origin, destination)
	}

	return r, nil
}

func (p *MockDistanceProvider) Geocode(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	out := make(map[string]domain.Coordinates, len(addresses))
	for _, a := range addresses {
		c, ok := p.coords[a]
		if !ok {
			return nil, fmt.Errorf("no coordinates for %q", a)
		}
		out[a] = c
	}
	return out, nil
}
