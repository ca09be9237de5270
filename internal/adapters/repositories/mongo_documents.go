package repositories

import (
	"delivery-batch-service/internal/domain"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Money is stored as decimal strings; bson has no codec for decimal.Decimal.

type lineItemDocument struct {
	ProductID   string `bson:"productId"`
	Name        string `bson:"name"`
	Quantity    int    `bson:"quantity"`
	UnitPrice   string `bson:"unitPrice"`
	PrepMinutes int    `bson:"prepMinutes,omitempty"`
}

type orderDocument struct {
	ID                  string             `bson:"_id"`
	OrderNumber         string             `bson:"orderNumber"`
	Status              string             `bson:"status"`
	ShippingMethod      string             `bson:"shippingMethod"`
	Destination         domain.Address     `bson:"destination"`
	Items               []lineItemDocument `bson:"items"`
	TotalValue          string             `bson:"totalValue"`
	Customer            domain.Contact     `bson:"customer"`
	CreatedAt           time.Time          `bson:"createdAt"`
	SpecialInstructions string             `bson:"specialInstructions,omitempty"`
	Priority            bool               `bson:"priority,omitempty"`
}

type confirmationDocument struct {
	StopID      string    `bson:"_id"`
	ID          string    `bson:"confirmationId"`
	BatchID     string    `bson:"batchId"`
	DeliveredAt time.Time `bson:"deliveredAt"`
	PhotoRef    string    `bson:"photoRef,omitempty"`
	Notes       string    `bson:"notes,omitempty"`
}

type stopDocument struct {
	StopNumber          int                           `bson:"stopNumber"`
	OrderID             string                        `bson:"orderId"`
	OrderNumber         string                        `bson:"orderNumber"`
	Customer            domain.Contact                `bson:"customer"`
	Address             domain.Address                `bson:"address"`
	Items               []lineItemDocument            `bson:"items"`
	OrderValue          string                        `bson:"orderValue"`
	SpecialInstructions string                        `bson:"specialInstructions,omitempty"`
	Priority            bool                          `bson:"priority,omitempty"`
	Prediction          *domain.FulfillmentPrediction `bson:"prediction,omitempty"`
	Confirmation        *confirmationDocument         `bson:"confirmation,omitempty"`
}

type routeDocument struct {
	TotalDistanceMiles   float64        `bson:"totalDistanceMiles"`
	EstimatedTimeMinutes int            `bson:"estimatedTimeMinutes"`
	FuelCostEstimate     string         `bson:"fuelCostEstimate"`
	Polyline             string         `bson:"polyline,omitempty"`
	Bounds               *domain.Bounds `bson:"bounds,omitempty"`
	Provider             string         `bson:"provider,omitempty"`
	OptimizedAt          time.Time      `bson:"optimizedAt"`
}

type statusChangeDocument struct {
	From string    `bson:"from"`
	To   string    `bson:"to"`
	At   time.Time `bson:"at"`
}

type batchDocument struct {
	ID           string                   `bson:"_id"`
	DeliveryDay  string                   `bson:"deliveryDay"`
	DeliveryDate time.Time                `bson:"deliveryDate"`
	Status       string                   `bson:"status"`
	Stops        []stopDocument           `bson:"stops"`
	Driver       *domain.DriverAssignment `bson:"driver,omitempty"`
	Route        *routeDocument           `bson:"route,omitempty"`
	History      []statusChangeDocument   `bson:"history"`
	CreatedAt    time.Time                `bson:"createdAt"`
	UpdatedAt    time.Time                `bson:"updatedAt"`
	ArchivedAt   *time.Time               `bson:"archivedAt,omitempty"`
}

func toLineItemDocuments(items []domain.LineItem) []lineItemDocument {
	out := make([]lineItemDocument, 0, len(items))
	for _, li := range items {
		out = append(out, lineItemDocument{
			ProductID:   li.ProductID,
			Name:        li.Name,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice.String(),
			PrepMinutes: li.PrepMinutes,
		})
	}
	return out
}

func fromLineItemDocuments(docs []lineItemDocument) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, 0, len(docs))
	for _, d := range docs {
		price, err := decimal.NewFromString(d.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %s: unit price: %w", d.ProductID, err)
		}
		out = append(out, domain.LineItem{
			ProductID:   d.ProductID,
			Name:        d.Name,
			Quantity:    d.Quantity,
			UnitPrice:   price,
			PrepMinutes: d.PrepMinutes,
		})
	}
	return out, nil
}

func toOrderDocument(o domain.Order) orderDocument {
	return orderDocument{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		Status:              string(o.Status),
		ShippingMethod:      string(o.ShippingMethod),
		Destination:         o.Destination,
		Items:               toLineItemDocuments(o.Items),
		TotalValue:          o.TotalValue.String(),
		Customer:            o.Customer,
		CreatedAt:           o.CreatedAt,
		SpecialInstructions: o.SpecialInstructions,
		Priority:            o.Priority,
	}
}

func (d orderDocument) toDomain() (domain.Order, error) {
	items, err := fromLineItemDocuments(d.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", d.ID, err)
	}
	total, err := decimal.NewFromString(d.TotalValue)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: total value: %w", d.ID, err)
	}
	return domain.Order{
		ID:                  d.ID,
		OrderNumber:         d.OrderNumber,
		Status:              domain.OrderStatus(d.Status),
		ShippingMethod:      domain.ShippingMethod(d.ShippingMethod),
		Destination:         d.Destination,
		Items:               items,
		TotalValue:          total,
		Customer:            d.Customer,
		CreatedAt:           d.CreatedAt.UTC(),
		SpecialInstructions: d.SpecialInstructions,
		Priority:            d.Priority,
	}, nil
}

func toConfirmationDocument(c domain.DeliveryConfirmation) confirmationDocument {
	return confirmationDocument{
		StopID:      c.StopID,
		ID:          c.ID,
		BatchID:     c.BatchID,
		DeliveredAt: c.DeliveredAt,
		PhotoRef:    c.PhotoRef,
		Notes:       c.Notes,
	}
}

func (d confirmationDocument) toDomain() domain.DeliveryConfirmation {
	return domain.DeliveryConfirmation{
		ID:          d.ID,
		BatchID:     d.BatchID,
		StopID:      d.StopID,
		DeliveredAt: d.DeliveredAt.UTC(),
		PhotoRef:    d.PhotoRef,
		Notes:       d.Notes,
	}
}

func toBatchDocument(b *domain.DeliveryBatch) batchDocument {
	doc := batchDocument{
		ID:           b.ID,
		DeliveryDay:  string(b.DeliveryDay),
		DeliveryDate: b.DeliveryDate,
		Status:       string(b.Status),
		Stops:        make([]stopDocument, 0, len(b.Stops)),
		Driver:       b.Driver,
		History:      make([]statusChangeDocument, 0, len(b.History)),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		ArchivedAt:   b.ArchivedAt,
	}

	for _, s := range b.Stops {
		sd := stopDocument{
			StopNumber:          s.StopNumber,
			OrderID:             s.OrderID,
			OrderNumber:         s.OrderNumber,
			Customer:            s.Customer,
			Address:             s.Address,
			Items:               toLineItemDocuments(s.Items),
			OrderValue:          s.OrderValue.String(),
			SpecialInstructions: s.SpecialInstructions,
			Priority:            s.Priority,
			Prediction:          s.Prediction,
		}
		if s.Confirmation != nil {
			c := toConfirmationDocument(*s.Confirmation)
			sd.Confirmation = &c
		}
		doc.Stops = append(doc.Stops, sd)
	}

	if b.Route != nil {
		doc.Route = &routeDocument{
			TotalDistanceMiles:   b.Route.TotalDistanceMiles,
			EstimatedTimeMinutes: b.Route.EstimatedTimeMinutes,
			FuelCostEstimate:     b.Route.FuelCostEstimate.String(),
			Polyline:             b.Route.Polyline,
			Bounds:               b.Route.Bounds,
			Provider:             b.Route.Provider,
			OptimizedAt:          b.Route.OptimizedAt,
		}
	}

	for _, h := range b.History {
		doc.History = append(doc.History, statusChangeDocument{From: string(h.From), To: string(h.To), At: h.At})
	}

	return doc
}

func (d batchDocument) toDomain() (*domain.DeliveryBatch, error) {
	b := &domain.DeliveryBatch{
		ID:           d.ID,
		DeliveryDay:  domain.Weekday(d.DeliveryDay),
		DeliveryDate: d.DeliveryDate.UTC(),
		Status:       domain.BatchStatus(d.Status),
		Stops:        make([]domain.Stop, 0, len(d.Stops)),
		Driver:       d.Driver,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.ArchivedAt != nil {
		at := d.ArchivedAt.UTC()
		b.ArchivedAt = &at
	}

	for _, sd := range d.Stops {
		items, err := fromLineItemDocuments(sd.Items)
		if err != nil {
			return nil, fmt.Errorf("batch %s stop %s: %w", d.ID, sd.OrderID, err)
		}
		value, err := decimal.NewFromString(sd.OrderValue)
		if err != nil {
			return nil, fmt.Errorf("batch %s stop %s: order value: %w", d.ID, sd.OrderID, err)
		}
		s := domain.Stop{
			StopNumber:          sd.StopNumber,
			OrderID:             sd.OrderID,
			OrderNumber:         sd.OrderNumber,
			Customer:            sd.Customer,
			Address:             sd.Address,
			Items:               items,
			OrderValue:          value,
			SpecialInstructions: sd.SpecialInstructions,
			Priority:            sd.Priority,
			Prediction:          sd.Prediction,
		}
		if sd.Confirmation != nil {
			c := sd.Confirmation.toDomain()
			s.Confirmation = &c
		}
		b.Stops = append(b.Stops, s)
	}

	if d.Route != nil {
		fuel, err := decimal.NewFromString(d.Route.FuelCostEstimate)
		if err != nil {
			return nil, fmt.Errorf("batch %s: fuel cost: %w", d.ID, err)
		}
		b.Route = &domain.RouteMetrics{
			TotalDistanceMiles:   d.Route.TotalDistanceMiles,
			EstimatedTimeMinutes: d.Route.EstimatedTimeMinutes,
			FuelCostEstimate:     fuel,
			Polyline:             d.Route.Polyline,
			Bounds:               d.Route.Bounds,
			Provider:             d.Route.Provider,
			OptimizedAt:          d.Route.OptimizedAt.UTC(),
		}
	}

	for _, h := range d.History {
		b.History = append(b.History, domain.StatusChange{
			From: domain.BatchStatus(h.From),
			To:   domain.BatchStatus(h.To),
			At:   h.At.UTC(),
		})
	}

	return b, nil
}
