package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is owned by the order collaborator. Batches never write it.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string { return string(s) }

// Batchable reports whether an order in this status is scheduled for delivery.
// Unpaid and cancelled orders never reach a batch.
func (s OrderStatus) Batchable() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

type Address struct {
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postal_code" bson:"postalCode"`
}

// Line renders the address on a single line, the form used for geocoding and manifests.
func (a Address) Line() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	tail := strings.TrimSpace(strings.TrimSpace(a.State) + " " + strings.TrimSpace(a.PostalCode))
	if tail != "" {
		parts = append(parts, tail)
	}

	return strings.Join(parts, ", ")
}

type Contact struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Phone string `json:"phone" bson:"phone"`
}

// LineItem is one product entry of an order.
// PrepMinutes is the per-unit preparation time; zero means "use the configured default".
type LineItem struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	PrepMinutes int             `json:"prep_minutes,omitempty"`
}

// Subtotal is quantity x unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is consumed read-only from the checkout collaborator.
type Order struct {
	ID                  string          `json:"id"`
	OrderNumber         string          `json:"order_number"`
	Status              OrderStatus     `json:"status"`
	ShippingMethod      ShippingMethod  `json:"shipping_method"`
	Destination         Address         `json:"destination"`
	Items               []LineItem      `json:"items"`
	TotalValue          decimal.Decimal `json:"total_value"`
	Customer            Contact         `json:"customer"`
	CreatedAt           time.Time       `json:"created_at"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Priority            bool            `json:"priority,omitempty"`
}

// ItemCount is the number of units across all line items.
func (o Order) ItemCount() int {
	n := 0
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}
