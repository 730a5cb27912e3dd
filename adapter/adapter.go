// Package adapter defines the notification boundary.
//
// Adapters tell downstream systems that a content revision was published
// or that a client finished a sync round. Callers own adapter lifecycle;
// users provide configuration only.
package adapter

import (
	"context"
	"time"
)

// ContractVersion is the version of the event payload shape.
const ContractVersion = "1.0.0"

// Event types.
const (
	EventRevisionPublished = "revision_published"
	EventSyncCompleted     = "sync_completed"
)

// Event is the payload published after a publish or a sync round.
type Event struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // revision_published or sync_completed
	// ID is the build id for publish events and the round id for sync events.
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
	Revision   int    `json:"revision"`
	Outcome    string `json:"outcome"` // success, current, partial, failed
	// Location is the published key prefix or the client cache directory.
	Location    string `json:"location"`
	FileCount   int    `json:"file_count"`
	Bytes       int64  `json:"bytes"`
	FailedFiles int    `json:"failed_files,omitempty"`
	Timestamp   string `json:"timestamp"` // RFC 3339
	DurationMs  int64  `json:"duration_ms"`
}

// NewEvent returns an event of eventType stamped with the current time.
func NewEvent(eventType, id string, duration time.Duration) *Event {
	return &Event{
		ContractVersion: ContractVersion,
		EventType:       eventType,
		ID:              id,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		DurationMs:      duration.Milliseconds(),
	}
}

// Adapter publishes events to a downstream system.
type Adapter interface {
	// Publish sends an event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *Event) error

	// Close releases adapter resources.
	Close() error
}
