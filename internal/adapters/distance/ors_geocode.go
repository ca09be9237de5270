package distance

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/obs"
	"fmt"
	"maps"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves addresses to coordinates, consulting the geocode cache first.
// Results are keyed by normalized address.
func (o *ORSDistanceProvider) Geocode(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	needed := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		n := NormalizeAddress(a)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		needed = append(needed, n)
	}

	hits := map[string]domain.Coordinates{}
	if o.geocodeCache != nil && len(needed) > 0 {
		hits, err = o.geocodeCache.GetMany(ctx, needed)
		if err != nil {
			return nil, fmt.Errorf("ORS get geocode cache: %w", err)
		}
	}

	misses := make([]string, 0, len(needed))
	for _, a := range needed {
		if _, ok := hits[a]; !ok {
			misses = append(misses, a)
		}
	}
	if len(misses) == 0 {
		return hits, nil
	}

	fresh, err := o.geocodeMany(ctx, misses)
	if err != nil {
		return nil, err
	}

	if o.geocodeCache != nil && len(fresh) > 0 {
		if err := o.geocodeCache.PutMany(ctx, fresh); err != nil {
			o.log.Warn("geocode cache write failed", zap.Error(err))
		}
	}

	out := make(map[string]domain.Coordinates, len(hits)+len(fresh))
	maps.Copy(out, hits)
	maps.Copy(out, fresh)
	return out, nil
}

// geocodeMany resolves addresses one by one using /geocode/search.
func (o *ORSDistanceProvider) geocodeMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	out := make(map[string]domain.Coordinates, len(addresses))
	for _, a := range addresses {
		c, err := o.geocodeOne(ctx, a)
		if err != nil {
			return nil, err
		}
		out[a] = c
	}
	return out, nil
}

func (o *ORSDistanceProvider) geocodeOne(ctx context.Context, address string) (domain.Coordinates, error) {
	search := orsCall{
		method: http.MethodGet,
		path:   "/geocode/search",
		query:  url.Values{"text": {address}, "boundary.country": {"US"}, "size": {"1"}},
	}

	var decoded geocodeResponse
	if err := o.call(ctx, search, &decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("no geocode results for %q", address)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
