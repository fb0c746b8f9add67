// Package event provides run-lifecycle events and the event bus for the
// invariant-testing oracle.
package event

import (
	"time"
)

// EventType identifies a run-lifecycle event.
type EventType string

const (
	// Run lifecycle events
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"

	// Phase lifecycle events
	EventPhaseStarted EventType = "phase.started"
	EventPhaseSkipped EventType = "phase.skipped"

	// Exchange events
	EventRequestCompleted EventType = "request.completed"
	EventInvariantChecked EventType = "invariant.checked"
	EventFuzzCaseFinished EventType = "fuzz.case_finished"

	// Failure events
	EventStateCaptureFailed EventType = "state.capture_failed"
)

// Event carries one run-lifecycle occurrence.
type Event struct {
	Type      EventType      // Event type
	RunID     string         // Suite run identifier
	Phase     string         // Phase name, empty for run-level events
	Endpoint  string         // Endpoint name, if the event concerns one exchange
	Timestamp time.Time      // Event timestamp
	Data      map[string]any // Additional payload
	Error     error          // Error, only on failure events
}

// NewEvent creates a new event with the given type and automatically sets the timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      make(map[string]any),
	}
}

// WithRunID sets the run identifier on the event.
func (e Event) WithRunID(runID string) Event {
	e.RunID = runID
	return e
}

// WithPhase sets the phase name on the event.
func (e Event) WithPhase(phase string) Event {
	e.Phase = phase
	return e
}

// WithEndpoint sets the endpoint name on the event.
func (e Event) WithEndpoint(endpoint string) Event {
	e.Endpoint = endpoint
	return e
}

// WithError sets the error on the event.
func (e Event) WithError(err error) Event {
	e.Error = err
	return e
}

// WithData sets a key-value pair in the event data.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}
