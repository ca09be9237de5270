package domain

import (
	"strings"
	"time"
)

// BatchStatus is the operational state of a delivery batch.
// It is disjoint from OrderStatus.
type BatchStatus string

const (
	BatchCreated        BatchStatus = "CREATED"
	BatchPacked         BatchStatus = "PACKED"
	BatchLoaded         BatchStatus = "LOADED"
	BatchOutForDelivery BatchStatus = "OUT_FOR_DELIVERY"
	BatchCompleted      BatchStatus = "COMPLETED"
	BatchCancelled      BatchStatus = "CANCELLED"
)

// forward lifecycle order; Cancelled sits outside it.
var lifecycle = []BatchStatus{BatchCreated, BatchPacked, BatchLoaded, BatchOutForDelivery, BatchCompleted}

func (s BatchStatus) String() string { return string(s) }

// Rank is the position of s in the forward lifecycle, or -1 for Cancelled/unknown.
func (s BatchStatus) Rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

func (s BatchStatus) IsValid() bool {
	return s == BatchCancelled || s.Rank() >= 0
}

func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchCancelled
}

// CanTransitionTo reports whether next is the single forward step from s,
// or a cancellation of a non-terminal batch.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	if s.IsTerminal() || !s.IsValid() {
		return false
	}
	if next == BatchCancelled {
		return true
	}
	return next.Rank() == s.Rank()+1
}

// ParseBatchStatus accepts "OUT_FOR_DELIVERY", "out-for-delivery" and "OutForDelivery".
func ParseBatchStatus(s string) (BatchStatus, bool) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range append(lifecycle, BatchCancelled) {
		if strings.ReplaceAll(string(st), "_", "") == key {
			return st, true
		}
	}
	return "", false
}

// StatusChange is one accepted lifecycle transition.
type StatusChange struct {
	From BatchStatus `json:"from"`
	To   BatchStatus `json:"to"`
	At   time.Time   `json:"at"`
}
