package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrMissingDriverInfo       = errors.New("missing driver info")
	ErrIncompleteStops         = errors.New("incomplete stops")
	ErrAlreadyDelivered        = errors.New("stop already delivered")
	ErrRouteOptimizationFailed = errors.New("route optimization failed")
	ErrEmptyBatch              = errors.New("empty batch")
	ErrNotFound                = errors.New("not found")
)

// InvalidInput wraps ErrInvalidInput with a description of the offending field.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// TransitionError reports a lifecycle event the current state does not permit.
type TransitionError struct {
	BatchID string
	From    BatchStatus
	To      BatchStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("batch %s: cannot move from %s to %s", e.BatchID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// IncompleteStopsError lists the stops still lacking a delivery confirmation.
type IncompleteStopsError struct {
	BatchID        string
	MissingStopIDs []string
}

func (e *IncompleteStopsError) Error() string {
	return fmt.Sprintf(
		"batch %s: %d stop(s) without delivery confirmation: %s",
		e.BatchID, len(e.MissingStopIDs), strings.Join(e.MissingStopIDs, ", "),
	)
}

func (e *IncompleteStopsError) Unwrap() error { return ErrIncompleteStops }
