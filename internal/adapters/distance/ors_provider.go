package distance

import (
	"context"
	"delivery-batch-service/internal/platform/obs"
	"delivery-batch-service/internal/ports"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

type ORSOptions struct {
	APIKey string
	// BaseURL defaults to the public OpenRouteService API.
	BaseURL string
	Profile string
	// Timeout bounds one API call including all of its retries. It should
	// not exceed the route optimizer's timeout.
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration

	DistanceCache ports.DistanceCache
	GeocodeCache  ports.GeocodeCache
	Log           *zap.Logger
}

// ORSDistanceProvider implements DistanceMatrixProvider and Geocoder over OpenRouteService.
//
// It coordinates:
//   - Address normalization
//   - Geocode and distance caching (any ports cache implementation, optional)
//   - External API calls with retry/backoff inside a per-call time budget
//
// Distances are requested and returned in miles. The provider is safe for
// concurrent use.
type ORSDistanceProvider struct {
	session       *http.Client
	apiKey        string
	baseURL       string
	profile       string
	timeout       time.Duration
	maxAttempts   int
	retryBackoff  time.Duration
	distanceCache ports.DistanceCache
	geocodeCache  ports.GeocodeCache
	log           *zap.Logger
}

func NewORSDistanceProvider(opts ORSOptions) (*ORSDistanceProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultORSBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = "driving-car"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	return &ORSDistanceProvider{
		session:       &http.Client{},
		apiKey:        opts.APIKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		profile:       opts.Profile,
		timeout:       opts.Timeout,
		maxAttempts:   opts.MaxAttempts,
		retryBackoff:  opts.RetryBackoff,
		distanceCache: opts.DistanceCache,
		geocodeCache:  opts.GeocodeCache,
		log:           opts.Log,
	}, nil
}

// NormalizeAddress collapses whitespace so cache keys are stable.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GetDistance delegates to the batched path to reuse caching and matrix logic.
func (o *ORSDistanceProvider) GetDistance(ctx context.Context, origin, destination string) (ports.DistanceResult, error) {
	normOrigin := NormalizeAddress(origin)
	normDestination := NormalizeAddress(destination)
	if normOrigin == "" || normDestination == "" {
		return ports.DistanceResult{}, errors.New("get ORS distance: origin and destination must be non-empty")
	}

	results, err := o.GetDistances(ctx, normOrigin, []string{normDestination})
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get distances %q -> %q: %w", normOrigin, normDestination, err)
	}

	result, ok := results[normDestination]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("no distance result for %q -> %q", origin, destination)
	}
	return result, nil
}

// GetDistances computes distances from one origin to many destinations.
// Results are keyed by normalized destination address.
func (o *ORSDistanceProvider) GetDistances(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "ors.GetDistances")(&err)

	normOrigin := NormalizeAddress(origin)
	if normOrigin == "" {
		return nil, errors.New("origin must be non-empty")
	}

	seen := make(map[string]struct{}, len(destinations))
	destList := make([]string, 0, len(destinations))
	for _, d := range destinations {
		nd := NormalizeAddress(d)
		if nd == "" || nd == normOrigin {
			continue
		}
		if _, ok := seen[nd]; ok {
			continue
		}
		seen[nd] = struct{}{}
		destList = append(destList, nd)
	}
	if len(destList) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	hits := map[string]ports.DistanceResult{}
	// Check the distance cache before issuing external API calls.
	if o.distanceCache != nil {
		hits, err = o.distanceCache.GetMany(ctx, normOrigin, destList)
		if err != nil {
			return nil, fmt.Errorf("ORS get distance cache: %w", err)
		}
	}

	misses := make([]string, 0, len(destList))
	for _, d := range destList {
		if _, ok := hits[d]; !ok {
			misses = append(misses, d)
		}
	}
	if len(misses) == 0 {
		return hits, nil
	}

	coords, err := o.Geocode(ctx, append([]string{normOrigin}, misses...))
	if err != nil {
		return nil, fmt.Errorf("retrieving coordinates: %w", err)
	}

	originCoord, ok := coords[normOrigin]
	if !ok {
		return nil, fmt.Errorf("missing coordinate for origin %q", normOrigin)
	}

	// One origin->many matrix row covers every cache miss.
	fetched, err := o.legsFrom(ctx, originCoord, misses, coords)
	if err != nil {
		return nil, err
	}

	if o.distanceCache != nil {
		if err := o.distanceCache.PutMany(ctx, normOrigin, fetched); err != nil {
			o.log.Warn("distance cache write failed", zap.Error(err))
		}
	}

	out := make(map[string]ports.DistanceResult, len(hits)+len(fetched))
	maps.Copy(out, hits)
	maps.Copy(out, fetched)
	return out, nil
}
