package services

import (
	"cmp"
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"math"
	"slices"
	"strconv"
)

const (
	postalAverageMph   = 25.0
	postalSameZipMiles = 1.5
	postalBaseLegMiles = 3.0
	postalMilesPerZip  = 0.8
	postalMaxLegMiles  = 40.0
	postalUnknownMiles = 10.0
)

// PostalCodeRoutingProvider is the deterministic reference provider used when no
// mapping backend is configured. Postal codes stand in for distance: stops are
// visited in ascending ZIP order and legs are priced from the ZIP difference.
type PostalCodeRoutingProvider struct {
	HubZip string
}

func (p *PostalCodeRoutingProvider) Name() string { return "postal-code" }

func (p *PostalCodeRoutingProvider) OptimizeRoute(ctx context.Context, stops []domain.Stop) (ports.RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RouteResult{}, err
	}

	ordered := slices.Clone(stops)
	slices.SortStableFunc(ordered, func(a, b domain.Stop) int {
		za, _ := NormalizeZip(a.Address.PostalCode)
		zb, _ := NormalizeZip(b.Address.PostalCode)
		if c := cmp.Compare(za, zb); c != 0 {
			return c
		}
		return cmp.Compare(a.StopNumber, b.StopNumber)
	})

	miles := 0.0
	prev := p.HubZip
	for _, s := range ordered {
		miles += postalLegMiles(prev, s.Address.PostalCode)
		prev = s.Address.PostalCode
	}
	miles = round2(miles)

	return ports.RouteResult{
		OrderedStops:         ordered,
		TotalDistanceMiles:   miles,
		EstimatedTimeMinutes: int(math.Ceil(miles / postalAverageMph * 60)),
	}, nil
}

func postalLegMiles(from, to string) float64 {
	a, okA := NormalizeZip(from)
	b, okB := NormalizeZip(to)
	if !okA || !okB {
		return postalUnknownMiles
	}
	if a == b {
		return postalSameZipMiles
	}

	na, _ := strconv.Atoi(a)
	nb, _ := strconv.Atoi(b)
	return min(postalBaseLegMiles+postalMilesPerZip*float64(absInt(na-nb)), postalMaxLegMiles)
}
