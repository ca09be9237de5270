package domain

// ShippingMethod selects how an order leaves the vendor.
type ShippingMethod string

const (
	ShippingPickup   ShippingMethod = "pickup"
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingPickup, ShippingStandard, ShippingExpress:
		return true
	}
	return false
}

// FulfillmentLabel buckets the total fulfillment time.
type FulfillmentLabel string

const (
	LabelFast     FulfillmentLabel = "Fast"
	LabelStandard FulfillmentLabel = "Standard"
	LabelDelayed  FulfillmentLabel = "Delayed"
)

// DistanceTier classifies a destination ZIP relative to the hub ZIP.
type DistanceTier string

const (
	TierSameRegion DistanceTier = "same_region"
	TierNearRegion DistanceTier = "near_region"
	TierStandard   DistanceTier = "standard"
	TierFarRegion  DistanceTier = "far_region"
	TierUnknown    DistanceTier = "unknown"
)

// FulfillmentPrediction is computed once per order before batching and
// is not modified afterwards unless explicitly recomputed.
type FulfillmentPrediction struct {
	OrderID                string           `json:"order_id,omitempty" bson:"orderId,omitempty"`
	PrepTimeHours          float64          `json:"prep_time_hours" bson:"prepTimeHours"`
	ShippingTimeHours      float64          `json:"shipping_time_hours" bson:"shippingTimeHours"`
	TotalHours             float64          `json:"total_hours" bson:"totalHours"`
	Label                  FulfillmentLabel `json:"label" bson:"label"`
	PredictedMarginPercent int              `json:"predicted_margin_percent" bson:"predictedMarginPercent"`
	DistanceTier           DistanceTier     `json:"distance_tier" bson:"distanceTier"`
}
