package services

import (
	"delivery-batch-service/internal/domain"
	"math"
)

const (
	fastThresholdHours     = 12
	standardThresholdHours = 36
)

var (
	tierMultipliers = map[domain.DistanceTier]float64{
		domain.TierSameRegion: 0.5,
		domain.TierNearRegion: 0.75,
		domain.TierStandard:   1.0,
		domain.TierFarRegion:  1.5,
		domain.TierUnknown:    1.0,
	}
	marginMultipliers = map[domain.ShippingMethod]float64{
		domain.ShippingPickup:   1.2,
		domain.ShippingStandard: 1.0,
		domain.ShippingExpress:  0.8,
	}
)

type PredictorConfig struct {
	HubZip             string
	BaseMarginPercent  float64
	DefaultPrepMinutes int
	BaseShippingHours  float64
}

// Predictor estimates fulfillment time and margin. It is pure and safe for concurrent use.
type Predictor struct {
	cfg PredictorConfig
}

func NewPredictor(cfg PredictorConfig) *Predictor {
	if cfg.HubZip == "" {
		cfg.HubZip = "85009"
	}
	if cfg.BaseMarginPercent <= 0 {
		cfg.BaseMarginPercent = 25
	}
	if cfg.DefaultPrepMinutes <= 0 {
		cfg.DefaultPrepMinutes = 15
	}
	if cfg.BaseShippingHours <= 0 {
		cfg.BaseShippingHours = 24
	}
	return &Predictor{cfg: cfg}
}

// Predict computes the fulfillment estimate for a set of line items.
// destinationZip may be empty, in which case the base shipping time is used unmodified.
func (p *Predictor) Predict(items []domain.LineItem, method domain.ShippingMethod, destinationZip string) (domain.FulfillmentPrediction, error) {
	if len(items) == 0 {
		return domain.FulfillmentPrediction{}, domain.InvalidInput("at least one line item is required")
	}
	if !method.Valid() {
		return domain.FulfillmentPrediction{}, domain.InvalidInput("unknown shipping method %q", method)
	}

	// Prep work is batched per item type, so the slowest line item is the bottleneck.
	bottleneckMinutes := 0
	for i, li := range items {
		if li.Quantity <= 0 {
			return domain.FulfillmentPrediction{}, domain.InvalidInput("item %d: quantity must be positive", i)
		}
		if li.PrepMinutes < 0 {
			return domain.FulfillmentPrediction{}, domain.InvalidInput("item %d: prep minutes must not be negative", i)
		}

		perUnit := li.PrepMinutes
		if perUnit == 0 {
			perUnit = p.cfg.DefaultPrepMinutes
		}
		bottleneckMinutes = max(bottleneckMinutes, li.Quantity*perUnit)
	}
	prepHours := round2(float64(bottleneckMinutes) / 60)

	tier := DistanceTierFor(p.cfg.HubZip, destinationZip)
	shippingHours := 0.0
	if method != domain.ShippingPickup {
		shippingHours = round2(p.cfg.BaseShippingHours * tierMultipliers[tier])
	}

	total := round2(prepHours + shippingHours)

	return domain.FulfillmentPrediction{
		PrepTimeHours:          prepHours,
		ShippingTimeHours:      shippingHours,
		TotalHours:             total,
		Label:                  labelFor(total),
		PredictedMarginPercent: int(math.Round(p.cfg.BaseMarginPercent * marginMultipliers[method])),
		DistanceTier:           tier,
	}, nil
}

// PredictOrder predicts for a whole order. Orders without a shipping method ship standard.
func (p *Predictor) PredictOrder(o domain.Order) (domain.FulfillmentPrediction, error) {
	method := o.ShippingMethod
	if method == "" {
		method = domain.ShippingStandard
	}

	pred, err := p.Predict(o.Items, method, o.Destination.PostalCode)
	if err != nil {
		return domain.FulfillmentPrediction{}, err
	}
	pred.OrderID = o.ID
	return pred, nil
}

// DistanceTierFor buckets a destination by how much of its ZIP it shares with the hub.
func DistanceTierFor(hubZip, destinationZip string) domain.DistanceTier {
	hub, ok := NormalizeZip(hubZip)
	if !ok {
		return domain.TierUnknown
	}
	dest, ok := NormalizeZip(destinationZip)
	if !ok {
		return domain.TierUnknown
	}

	switch {
	case hub[:3] == dest[:3]:
		return domain.TierSameRegion
	case hub[0] == dest[0]:
		return domain.TierNearRegion
	case absInt(int(hub[0])-int(dest[0])) <= 3:
		return domain.TierStandard
	default:
		return domain.TierFarRegion
	}
}

func labelFor(totalHours float64) domain.FulfillmentLabel {
	switch {
	case totalHours <= fastThresholdHours:
		return domain.LabelFast
	case totalHours <= standardThresholdHours:
		return domain.LabelStandard
	default:
		return domain.LabelDelayed
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
