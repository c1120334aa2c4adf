package dispatcher

import (
	"time"

	"aidispatch/internal/backend"
)

// EventKind is one of the fixed event types the dispatcher emits.
type EventKind string

const (
	EventStatusChanged         EventKind = "status-changed"
	EventBackendSwitched       EventKind = "backend-switched"
	EventModelDownloadProgress EventKind = "model-download-progress"
	EventError                 EventKind = "error"
)

// Event is an observation of dispatcher state. Which fields are set depends on
// Kind: From/To for backend-switched, Progress for model-download-progress,
// Error for error.
type Event struct {
	ID       string                `json:"id"`
	Kind     EventKind             `json:"kind"`
	Time     time.Time             `json:"time"`
	Backend  backend.Identity      `json:"backend,omitempty"`
	From     backend.Identity      `json:"from,omitempty"`
	To       backend.Identity      `json:"to,omitempty"`
	Progress *backend.PullProgress `json:"progress,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// EventPublisher receives dispatcher events. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
