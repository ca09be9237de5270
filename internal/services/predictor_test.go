package services

import (
	"delivery-batch-service/internal/domain"
	"errors"
	"testing"
)

func TestPredictSameRegionStandard(t *testing.T) {
	p := NewPredictor(PredictorConfig{HubZip: "85009"})

	got, err := p.Predict(
		[]domain.LineItem{{ProductID: "ribeye", Quantity: 2, PrepMinutes: 15}},
		domain.ShippingStandard,
		"85004",
	)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if got.PrepTimeHours != 0.5 || got.ShippingTimeHours != 12 || got.TotalHours != 12.5 {
		t.Fatalf("hours = %v/%v/%v, want 0.5/12/12.5", got.PrepTimeHours, got.ShippingTimeHours, got.TotalHours)
	}
	if got.Label != domain.LabelStandard {
		t.Fatalf("label = %s, want Standard", got.Label)
	}
	if got.DistanceTier != domain.TierSameRegion {
		t.Fatalf("tier = %s", got.DistanceTier)
	}
	if got.PredictedMarginPercent != 25 {
		t.Fatalf("margin = %d, want 25", got.PredictedMarginPercent)
	}
}

func TestPredictMethodsAndTiers(t *testing.T) {
	p := NewPredictor(PredictorConfig{HubZip: "85009"})
	items := []domain.LineItem{
		{Quantity: 1, PrepMinutes: 30},
		{Quantity: 4, PrepMinutes: 0},
	}

	tests := []struct {
		name       string
		method     domain.ShippingMethod
		zip        string
		wantShip   float64
		wantTotal  float64
		wantLabel  domain.FulfillmentLabel
		wantMargin int
	}{
		{"pickup ignores distance", domain.ShippingPickup, "10001", 0, 1, domain.LabelFast, 30},
		{"express near region", domain.ShippingExpress, "86001", 18, 19, domain.LabelStandard, 20},
		{"standard far region", domain.ShippingStandard, "10001", 36, 37, domain.LabelDelayed, 25},
		{"standard neighbouring region", domain.ShippingStandard, "60601", 24, 25, domain.LabelStandard, 25},
		{"missing zip", domain.ShippingStandard, "", 24, 25, domain.LabelStandard, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Predict(items, tt.method, tt.zip)
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			// 4 units at the 15 minute default is the one-hour bottleneck.
			if got.PrepTimeHours != 1 {
				t.Fatalf("prep = %v, want 1", got.PrepTimeHours)
			}
			if got.ShippingTimeHours != tt.wantShip || got.TotalHours != tt.wantTotal {
				t.Fatalf("ship/total = %v/%v, want %v/%v", got.ShippingTimeHours, got.TotalHours, tt.wantShip, tt.wantTotal)
			}
			if got.Label != tt.wantLabel {
				t.Fatalf("label = %s, want %s", got.Label, tt.wantLabel)
			}
			if got.PredictedMarginPercent != tt.wantMargin {
				t.Fatalf("margin = %d, want %d", got.PredictedMarginPercent, tt.wantMargin)
			}
		})
	}
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	p := NewPredictor(PredictorConfig{})

	tests := []struct {
		name   string
		items  []domain.LineItem
		method domain.ShippingMethod
	}{
		{"no items", nil, domain.ShippingStandard},
		{"zero quantity", []domain.LineItem{{Quantity: 0}}, domain.ShippingStandard},
		{"negative prep", []domain.LineItem{{Quantity: 1, PrepMinutes: -5}}, domain.ShippingStandard},
		{"unknown method", []domain.LineItem{{Quantity: 1}}, "drone"},
		{"empty method", []domain.LineItem{{Quantity: 1}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Predict(tt.items, tt.method, "85004")
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPredictOrderDefaultsToStandard(t *testing.T) {
	p := NewPredictor(PredictorConfig{HubZip: "85009"})
	o := domain.Order{
		ID:          "ORD-1",
		Destination: domain.Address{PostalCode: "85004"},
		Items:       []domain.LineItem{{Quantity: 2, PrepMinutes: 15}},
	}

	got, err := p.PredictOrder(o)
	if err != nil {
		t.Fatalf("predict order: %v", err)
	}
	if got.OrderID != "ORD-1" || got.TotalHours != 12.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestDistanceTierFor(t *testing.T) {
	tests := []struct {
		hub, dest string
		want      domain.DistanceTier
	}{
		{"85009", "85004", domain.TierSameRegion},
		{"85009", "86001", domain.TierNearRegion},
		{"85009", "60601", domain.TierStandard},
		{"85009", "10001", domain.TierFarRegion},
		{"85009", "", domain.TierUnknown},
		{"bad", "85004", domain.TierUnknown},
	}
	for _, tt := range tests {
		if got := DistanceTierFor(tt.hub, tt.dest); got != tt.want {
			t.Errorf("DistanceTierFor(%q, %q) = %s, want %s", tt.hub, tt.dest, got, tt.want)
		}
	}
}
