package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DriverAssignment is attached when a batch is loaded onto a vehicle.
type DriverAssignment struct {
	Name        string `json:"name" bson:"name"`
	Phone       string `json:"phone" bson:"phone"`
	VehicleID   string `json:"vehicle_id" bson:"vehicleId"`
	RouteNumber string `json:"route_number,omitempty" bson:"routeNumber,omitempty"`
}

// Validate requires the fields a driver manifest cannot be dispatched without.
func (d *DriverAssignment) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: driver assignment is required", ErrMissingDriverInfo)
	}

	missing := make([]string, 0, 3)
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(d.VehicleID) == "" {
		missing = append(missing, "vehicle_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrMissingDriverInfo, strings.Join(missing, ", "))
	}

	return nil
}

// RouteMetrics is absent until a batch has been optimized.
type RouteMetrics struct {
	TotalDistanceMiles   float64         `json:"total_distance_miles"`
	EstimatedTimeMinutes int             `json:"estimated_time_minutes"`
	FuelCostEstimate     decimal.Decimal `json:"fuel_cost_estimate"`
	Polyline             string          `json:"polyline,omitempty"`
	Bounds               *Bounds         `json:"bounds,omitempty"`
	Provider             string          `json:"provider,omitempty"`
	OptimizedAt          time.Time       `json:"optimized_at"`
}

// DeliveryConfirmation is written exactly once per stop, at delivery.
type DeliveryConfirmation struct {
	ID          string    `json:"id"`
	BatchID     string    `json:"batch_id"`
	StopID      string    `json:"stop_id"`
	DeliveredAt time.Time `json:"delivered_at"`
	PhotoRef    string    `json:"photo_ref,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Stop is one order's destination and payload within a batch route.
// Its id is the order id.
type Stop struct {
	StopNumber          int                    `json:"stop_number"`
	OrderID             string                 `json:"order_id"`
	OrderNumber         string                 `json:"order_number"`
	Customer            Contact                `json:"customer"`
	Address             Address                `json:"address"`
	Items               []LineItem             `json:"items"`
	OrderValue          decimal.Decimal        `json:"order_value"`
	SpecialInstructions string                 `json:"special_instructions,omitempty"`
	Priority            bool                   `json:"priority,omitempty"`
	Prediction          *FulfillmentPrediction `json:"prediction,omitempty"`
	Confirmation        *DeliveryConfirmation  `json:"delivery_confirmation,omitempty"`
}

func (s Stop) ID() string { return s.OrderID }

func (s Stop) Delivered() bool { return s.Confirmation != nil }

// NewStop denormalizes an order into a stop. The stop number is assigned by the batch.
func NewStop(o Order, prediction *FulfillmentPrediction) Stop {
	items := make([]LineItem, len(o.Items))
	copy(items, o.Items)

	return Stop{
		OrderID:             o.ID,
		OrderNumber:         o.OrderNumber,
		Customer:            o.Customer,
		Address:             o.Destination,
		Items:               items,
		OrderValue:          o.TotalValue,
		SpecialInstructions: o.SpecialInstructions,
		Priority:            o.Priority,
		Prediction:          prediction,
	}
}

// BatchSummary is derived from the stop list on every read.
type BatchSummary struct {
	TotalOrders int             `json:"total_orders"`
	TotalItems  int             `json:"total_items"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// DeliveryBatch aggregates the stops scheduled for one delivery day.
// Its status only moves forward through the lifecycle, or once into Cancelled.
type DeliveryBatch struct {
	ID           string            `json:"id"`
	DeliveryDay  Weekday           `json:"delivery_day"`
	DeliveryDate time.Time         `json:"delivery_date"`
	Status       BatchStatus       `json:"status"`
	Stops        []Stop            `json:"stops"`
	Driver       *DriverAssignment `json:"driver,omitempty"`
	Route        *RouteMetrics     `json:"route,omitempty"`
	History      []StatusChange    `json:"history,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ArchivedAt   *time.Time        `json:"archived_at,omitempty"`
}

// BatchID derives the deterministic batch id for a delivery day and date.
func BatchID(day Weekday, date time.Time) string {
	return fmt.Sprintf("BATCH-%s-%s", strings.ToUpper(string(day)), date.Format(time.DateOnly))
}

func NewDeliveryBatch(day Weekday, date time.Time) *DeliveryBatch {
	return &DeliveryBatch{
		ID:           BatchID(day, date),
		DeliveryDay:  day,
		DeliveryDate: date,
		Status:       BatchCreated,
		Stops:        []Stop{},
	}
}

// AddStop appends a stop at the end of the route.
func (b *DeliveryBatch) AddStop(s Stop) error {
	if strings.TrimSpace(s.OrderID) == "" {
		return InvalidInput("stop order id must not be empty")
	}
	if _, ok := b.StopIndex(s.OrderID); ok {
		return fmt.Errorf("batch %s: order %q already has a stop", b.ID, s.OrderID)
	}

	s.StopNumber = len(b.Stops) + 1
	b.Stops = append(b.Stops, s)
	return nil
}

// StopIndex returns the slice position of the stop for orderID.
func (b *DeliveryBatch) StopIndex(orderID string) (int, bool) {
	for i := range b.Stops {
		if b.Stops[i].OrderID == orderID {
			return i, true
		}
	}
	return -1, false
}

// Renumber assigns stop numbers 1..N following the current slice order.
func (b *DeliveryBatch) Renumber() {
	for i := range b.Stops {
		b.Stops[i].StopNumber = i + 1
	}
}

// Validate checks the stop numbering and stop uniqueness invariants.
func (b *DeliveryBatch) Validate() error {
	seenOrders := make(map[string]struct{}, len(b.Stops))
	seenNumbers := make(map[int]struct{}, len(b.Stops))
	for _, s := range b.Stops {
		if _, ok := seenOrders[s.OrderID]; ok {
			return fmt.Errorf("batch %s: duplicate stop for order %q", b.ID, s.OrderID)
		}
		seenOrders[s.OrderID] = struct{}{}

		if s.StopNumber < 1 || s.StopNumber > len(b.Stops) {
			return fmt.Errorf("batch %s: stop number %d outside 1..%d", b.ID, s.StopNumber, len(b.Stops))
		}
		if _, ok := seenNumbers[s.StopNumber]; ok {
			return fmt.Errorf("batch %s: duplicate stop number %d", b.ID, s.StopNumber)
		}
		seenNumbers[s.StopNumber] = struct{}{}
	}
	return nil
}

func (b *DeliveryBatch) Summary() BatchSummary {
	sum := BatchSummary{TotalValue: decimal.Zero}
	for _, s := range b.Stops {
		sum.TotalOrders++
		for _, li := range s.Items {
			sum.TotalItems += li.Quantity
		}
		sum.TotalValue = sum.TotalValue.Add(s.OrderValue)
	}
	return sum
}

func (b *DeliveryBatch) DeliveredCount() int {
	n := 0
	for _, s := range b.Stops {
		if s.Delivered() {
			n++
		}
	}
	return n
}

// CompletionPercentage is delivered / total x 100, recomputed on every call.
func (b *DeliveryBatch) CompletionPercentage() float64 {
	if len(b.Stops) == 0 {
		return 0
	}
	return float64(b.DeliveredCount()) / float64(len(b.Stops)) * 100
}

// UndeliveredStopIDs lists stops without confirmation in route order.
func (b *DeliveryBatch) UndeliveredStopIDs() []string {
	out := make([]string, 0)
	for _, s := range b.Stops {
		if !s.Delivered() {
			out = append(out, s.OrderID)
		}
	}
	return out
}

// Transition moves the batch to next and records the change.
func (b *DeliveryBatch) Transition(next BatchStatus, at time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return &TransitionError{BatchID: b.ID, From: b.Status, To: next}
	}

	b.History = append(b.History, StatusChange{From: b.Status, To: next, At: at})
	b.Status = next
	b.UpdatedAt = at
	return nil
}

// Confirm records the delivery of one stop. A stop is confirmed at most once.
func (b *DeliveryBatch) Confirm(c DeliveryConfirmation) error {
	i, ok := b.StopIndex(c.StopID)
	if !ok {
		return NotFound("stop", c.StopID)
	}
	if b.Stops[i].Confirmation != nil {
		return fmt.Errorf("batch %s stop %s: %w", b.ID, c.StopID, ErrAlreadyDelivered)
	}

	conf := c
	b.Stops[i].Confirmation = &conf
	b.UpdatedAt = c.DeliveredAt
	return nil
}

// Archive hides a finished batch from current listings.
func (b *DeliveryBatch) Archive(at time.Time) error {
	if !b.Status.IsTerminal() {
		return &TransitionError{BatchID: b.ID, From: b.Status, To: "ARCHIVED"}
	}
	if b.ArchivedAt != nil {
		return nil
	}
	b.ArchivedAt = &at
	b.UpdatedAt = at
	return nil
}

// Clone returns a deep copy so callers can derive new batch values without aliasing.
func (b *DeliveryBatch) Clone() *DeliveryBatch {
	if b == nil {
		return nil
	}

	out := *b
	out.Stops = make([]Stop, len(b.Stops))
	for i, s := range b.Stops {
		s.Items = append([]LineItem(nil), s.Items...)
		if s.Prediction != nil {
			p := *s.Prediction
			s.Prediction = &p
		}
		if s.Confirmation != nil {
			c := *s.Confirmation
			s.Confirmation = &c
		}
		out.Stops[i] = s
	}
	if b.Driver != nil {
		d := *b.Driver
		out.Driver = &d
	}
	if b.Route != nil {
		r := *b.Route
		if b.Route.Bounds != nil {
			bounds := *b.Route.Bounds
			r.Bounds = &bounds
		}
		out.Route = &r
	}
	out.History = append([]StatusChange(nil), b.History...)
	if b.ArchivedAt != nil {
		at := *b.ArchivedAt
		out.ArchivedAt = &at
	}

	return &out
}
