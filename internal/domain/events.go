package domain

import "time"

type BatchEventType string

const (
	EventBatchCreated   BatchEventType = "batch.created"
	EventStatusChanged  BatchEventType = "batch.status_changed"
	EventStopDelivered  BatchEventType = "batch.stop_delivered"
	EventRouteOptimized BatchEventType = "batch.route_optimized"
	// Published when a CREATED batch loses all of its stops and is deleted.
	EventBatchRemoved BatchEventType = "batch.removed"
)

// BatchEvent is published to dispatcher dashboards after a batch changes.
type BatchEvent struct {
	Type                 BatchEventType `json:"type"`
	BatchID              string         `json:"batch_id"`
	Day                  Weekday        `json:"day"`
	Status               BatchStatus    `json:"status"`
	StopID               string         `json:"stop_id,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage"`
	At                   time.Time      `json:"at"`
}

// NewBatchEvent snapshots the batch fields every event carries.
func NewBatchEvent(t BatchEventType, b *DeliveryBatch, at time.Time) BatchEvent {
	return BatchEvent{
		Type:                 t,
		BatchID:              b.ID,
		Day:                  b.DeliveryDay,
		Status:               b.Status,
		CompletionPercentage: b.CompletionPercentage(),
		At:                   at,
	}
}
