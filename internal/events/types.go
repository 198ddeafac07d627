// Package events publishes report run lifecycle events to in-process subscribers.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	RunStarted       EventType = "RUN_STARTED"
	RunStatusChanged EventType = "RUN_STATUS_CHANGED"
	RunCompleted     EventType = "RUN_COMPLETED"
	RunFailed        EventType = "RUN_FAILED"
	RunRejected      EventType = "RUN_REJECTED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the pipeline emits
var AllTypes = []EventType{
	RunStarted,
	RunStatusChanged,
	RunCompleted,
	RunFailed,
	RunRejected,
	ErrorOccurred,
}

// Event is a published event. Data holds the JSON form of the typed payload.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
