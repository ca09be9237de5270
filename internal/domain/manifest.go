package domain

// Manifest is the driver-facing projection of a batch.
// It carries no generation timestamp so equal batches render identically.
type Manifest struct {
	BatchID      string          `json:"batch_id"`
	DeliveryDay  Weekday         `json:"delivery_day"`
	DeliveryDate string          `json:"delivery_date"`
	Status       BatchStatus     `json:"status"`
	Driver       ManifestDriver  `json:"driver"`
	Stops        []ManifestStop  `json:"stops"`
	Summary      ManifestSummary `json:"summary"`
	Route        *ManifestRoute  `json:"route,omitempty"`
}

type ManifestDriver struct {
	Assigned    bool   `json:"assigned"`
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	VehicleID   string `json:"vehicle_id,omitempty"`
	RouteNumber string `json:"route_number,omitempty"`
}

type ManifestItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type ManifestStop struct {
	StopNumber          int            `json:"stop_number"`
	OrderID             string         `json:"order_id"`
	OrderNumber         string         `json:"order_number"`
	CustomerName        string         `json:"customer_name"`
	CustomerPhone       string         `json:"customer_phone,omitempty"`
	Address             string         `json:"address"`
	Items               []ManifestItem `json:"items"`
	OrderValue          string         `json:"order_value"`
	SpecialInstructions string         `json:"special_instructions,omitempty"`
	Priority            bool           `json:"priority,omitempty"`
	Delivered           bool           `json:"delivered"`
}

type DeliveryWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ManifestSummary struct {
	TotalOrders       int            `json:"total_orders"`
	TotalItems        int            `json:"total_items"`
	TotalValue        string         `json:"total_value"`
	EstimatedDelivery DeliveryWindow `json:"estimated_delivery_window"`
}

type ManifestRoute struct {
	TotalDistanceMiles   float64 `json:"total_distance_miles"`
	EstimatedTimeMinutes int     `json:"estimated_time_minutes"`
	FuelCostEstimate     string  `json:"fuel_cost_estimate"`
}
