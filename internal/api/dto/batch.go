package dto

import (
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/services"
	"time"
)

// BatchResponse is a batch with its derived summary and progress.
type BatchResponse struct {
	*domain.DeliveryBatch
	Summary              domain.BatchSummary `json:"summary"`
	CompletionPercentage float64             `json:"completion_percentage"`
}

func NewBatchResponse(b *domain.DeliveryBatch) BatchResponse {
	return BatchResponse{
		DeliveryBatch:        b,
		Summary:              b.Summary(),
		CompletionPercentage: b.CompletionPercentage(),
	}
}

type ListBatchesResponse struct {
	WeekStart string                         `json:"week_start"`
	Batches   []BatchResponse                `json:"batches"`
	Warnings  []services.OptimizationWarning `json:"warnings"`
}

type DriverRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	VehicleID   string `json:"vehicle_id"`
	RouteNumber string `json:"route_number"`
}

type StatusUpdateRequest struct {
	Status string         `json:"status"`
	Driver *DriverRequest `json:"driver"`
}

func (r StatusUpdateRequest) DriverAssignment() *domain.DriverAssignment {
	if r.Driver == nil {
		return nil
	}
	return &domain.DriverAssignment{
		Name:        r.Driver.Name,
		Phone:       r.Driver.Phone,
		VehicleID:   r.Driver.VehicleID,
		RouteNumber: r.Driver.RouteNumber,
	}
}

type DeliverRequest struct {
	PhotoRef string `json:"photo_ref"`
	Notes    string `json:"notes"`
}

type DeliveryResponse struct {
	Confirmation domain.DeliveryConfirmation `json:"delivery_confirmation"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// MissingStopIDs is set when completion is blocked by unconfirmed stops.
	MissingStopIDs []string `json:"missing_stop_ids,omitempty"`
}

type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
