package services

import (
	"context"
	"delivery-batch-service/internal/adapters/distance"
	"delivery-batch-service/internal/domain"
	"slices"
	"testing"
)

func stopAt(id, street, zip string, number int) domain.Stop {
	return domain.Stop{
		StopNumber: number,
		OrderID:    id,
		Address:    domain.Address{Street: street, PostalCode: zip},
	}
}

func TestPostalCodeRoutingProvider(t *testing.T) {
	p := &PostalCodeRoutingProvider{HubZip: "85009"}
	stops := []domain.Stop{
		stopAt("ORD-1", "1 A St", "85008", 1),
		stopAt("ORD-2", "2 B St", "85004", 2),
		stopAt("ORD-3", "3 C St", "85004", 3),
	}

	res, err := p.OptimizeRoute(context.Background(), stops)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	var ids []string
	for _, s := range res.OrderedStops {
		ids = append(ids, s.OrderID)
	}
	if !slices.Equal(ids, []string{"ORD-2", "ORD-3", "ORD-1"}) {
		t.Fatalf("order = %v", ids)
	}
	// 85009->85004 = 7, same zip = 1.5, 85004->85008 = 6.2
	if res.TotalDistanceMiles != 14.7 {
		t.Fatalf("miles = %v, want 14.7", res.TotalDistanceMiles)
	}
	if res.EstimatedTimeMinutes != 36 {
		t.Fatalf("minutes = %d, want 36", res.EstimatedTimeMinutes)
	}
	if stops[0].OrderID != "ORD-1" {
		t.Fatal("input slice was reordered")
	}
}

func TestMatrixRoutingProviderNearestNeighbor(t *testing.T) {
	pairs := []distance.MockPair{
		{From: "HUB", To: "A", Miles: 0.625, Seconds: 300},
		{From: "HUB", To: "B", Miles: 1.25, Seconds: 600},
		{From: "HUB", To: "C", Miles: 0.875, Seconds: 450},
		{From: "A", To: "B", Miles: 0.5, Seconds: 240},
		{From: "A", To: "C", Miles: 0.375, Seconds: 210},
		{From: "B", To: "C", Miles: 0.5625, Seconds: 270},
		{From: "A", To: "HUB", Miles: 0.625, Seconds: 300},
		{From: "B", To: "HUB", Miles: 1.25, Seconds: 600},
		{From: "C", To: "HUB", Miles: 0.875, Seconds: 450},
		{From: "B", To: "A", Miles: 0.5, Seconds: 240},
		{From: "C", To: "A", Miles: 0.375, Seconds: 210},
		{From: "C", To: "B", Miles: 0.5625, Seconds: 270},
	}
	provider := distance.NewMockDistanceProvider(pairs).WithCoordinates(map[string]domain.Coordinates{
		"A": {Lon: -112.1, Lat: 33.4},
		"B": {Lon: -112.0, Lat: 33.5},
		"C": {Lon: -112.2, Lat: 33.45},
	})

	p := &MatrixRoutingProvider{Hub: "HUB", Distances: provider, Geocoder: provider}
	stops := []domain.Stop{
		stopAt("ORD-1", "A", "", 1),
		stopAt("ORD-2", "B", "", 2),
		stopAt("ORD-3", "C", "", 3),
		stopAt("ORD-4", "A", "", 4),
	}

	res, err := p.OptimizeRoute(context.Background(), stops)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	var ids []string
	for _, s := range res.OrderedStops {
		ids = append(ids, s.OrderID)
	}
	if !slices.Equal(ids, []string{"ORD-1", "ORD-4", "ORD-3", "ORD-2"}) {
		t.Fatalf("order = %v", ids)
	}
	// 1.5625 mi over 780 s
	if res.TotalDistanceMiles != 1.56 {
		t.Fatalf("miles = %v, want 1.56", res.TotalDistanceMiles)
	}
	if res.EstimatedTimeMinutes != 13 {
		t.Fatalf("minutes = %d, want 13", res.EstimatedTimeMinutes)
	}
	if res.Bounds == nil || res.Bounds.SouthWest.Lon != -112.2 || res.Bounds.NorthEast.Lat != 33.5 {
		t.Fatalf("bounds = %+v", res.Bounds)
	}
}

func TestMatrixRoutingProviderMissingDistance(t *testing.T) {
	provider := distance.NewMockDistanceProvider([]distance.MockPair{
		{From: "HUB", To: "A", Miles: 0.625, Seconds: 300},
	})
	p := &MatrixRoutingProvider{Hub: "HUB", Distances: provider}

	_, err := p.OptimizeRoute(context.Background(), []domain.Stop{
		stopAt("ORD-1", "A", "", 1),
		stopAt("ORD-2", "B", "", 2),
	})
	if err == nil {
		t.Fatal("expected error for missing pair")
	}
}

func TestNearestNeighborReturnLeg(t *testing.T) {
	provider := distance.NewMockDistanceProvider([]distance.MockPair{
		{From: "HUB", To: "A", Miles: 0.625, Seconds: 300},
		{From: "A", To: "HUB", Miles: 0.75, Seconds: 330},
	})
	distances, err := fetchPairwiseDistances(context.Background(), provider, "HUB", []string{"A"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	tr, err := nearestNeighborTour("HUB", []string{"A"}, distances, true)
	if err != nil {
		t.Fatalf("tour: %v", err)
	}
	if tr.distanceMiles != 1.375 || tr.durationSeconds != 630 {
		t.Fatalf("tour = %+v", tr)
	}
}
