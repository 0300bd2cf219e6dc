package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can route or retain them differently.
type EventCategory string

const (
	// CategoryOperations covers routine run lifecycle events.
	CategoryOperations EventCategory = "operations"

	// CategoryDataQuality covers events that mean stored data may be
	// incomplete and a later run has to make up for it.
	CategoryDataQuality EventCategory = "data_quality"

	// CategoryUpstream covers throttling and failures of external APIs.
	CategoryUpstream EventCategory = "upstream"
)

// EventType names what happened.
type EventType string

const (
	EventRunStarted           EventType = "run_started"
	EventBatchPersisted       EventType = "batch_persisted"
	EventBatchFailed          EventType = "batch_failed"
	EventDateIncomplete       EventType = "date_incomplete"
	EventRunCompleted         EventType = "run_completed"
	EventOrganizationEnriched EventType = "organization_enriched"
	EventRegistryRateLimited  EventType = "registry_rate_limited"
)

var eventCategories = map[EventType]EventCategory{
	EventRunStarted:           CategoryOperations,
	EventBatchPersisted:       CategoryOperations,
	EventRunCompleted:         CategoryOperations,
	EventOrganizationEnriched: CategoryOperations,

	EventBatchFailed:    CategoryDataQuality,
	EventDateIncomplete: CategoryDataQuality,

	EventRegistryRateLimited: CategoryUpstream,
}

// Category returns the EventCategory for this event type.
// Unknown types default to CategoryOperations.
func (e EventType) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted by the pipelines to record what a run did. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Category   EventCategory  `json:"category"`
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"run_id,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Date       string         `json:"date,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what pipelines depend on to publish events.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
