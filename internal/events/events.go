// Package events provides lifecycle notifications for the thread pool and the web server.
package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker enters its receive loop
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerExited is emitted when a worker leaves its loop, normally or after a panic
	EventWorkerExited EventType = "worker_exited"
	// EventWorkerPanicked is emitted when a job panics on a worker
	EventWorkerPanicked EventType = "worker_panicked"
	// EventWorkerRespawned is emitted when a replacement worker is started after a panic
	EventWorkerRespawned EventType = "worker_respawned"
	// EventPoolShutdown is emitted once every worker has been joined
	EventPoolShutdown EventType = "pool_shutdown"
	// EventRequestServed is emitted after a response has been written to a connection
	EventRequestServed EventType = "request_served"
)

// Event represents a pool or server event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Panic    string `json:"panic,omitempty"`
	Pending  int    `json:"pending,omitempty"`
	Workers  int    `json:"workers,omitempty"`
	ConnID   string `json:"conn_id,omitempty"`
	Request  string `json:"request,omitempty"`
	Status   string `json:"status,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerExitedEvent creates a worker exited event
func NewWorkerExitedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerExited,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerPanickedEvent creates a worker panicked event
func NewWorkerPanickedEvent(workerID int, recovered any) Event {
	return Event{
		Type:      EventWorkerPanicked,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Panic: fmt.Sprint(recovered),
		},
	}
}

// NewWorkerRespawnedEvent creates a worker respawned event
func NewWorkerRespawnedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerRespawned,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewPoolShutdownEvent creates a pool shutdown event.
// WorkerID is -1 because the event belongs to the pool as a whole.
func NewPoolShutdownEvent(workers, pending int) Event {
	return Event{
		Type:      EventPoolShutdown,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Workers: workers,
			Pending: pending,
		},
	}
}

// NewRequestServedEvent creates a request served event
func NewRequestServedEvent(connID, requestLine, status string, d time.Duration) Event {
	return Event{
		Type:      EventRequestServed,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			ConnID:   connID,
			Request:  requestLine,
			Status:   status,
			Duration: d.String(),
		},
	}
}
