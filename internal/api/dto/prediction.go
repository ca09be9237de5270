package dto

import "github.com/shopspring/decimal"

type LineItemRequest struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	PrepMinutes int             `json:"prep_minutes"`
}

type PredictRequest struct {
	Items          []LineItemRequest `json:"items"`
	ShippingMethod string            `json:"shipping_method"`
	DestinationZip string            `json:"destination_zip"`
}
