// Package eventstream publishes a notification for every newly recorded
// observation so downstream consumers can follow the memory as it grows.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ctxmem/pkg/store"
)

const (
	// SchemaVersionV1 is the current payload schema.
	SchemaVersionV1 = 1

	// EventTypeObservationRecorded is emitted once per inserted observation.
	EventTypeObservationRecorded = "ctxmem.observation.recorded"
)

// ObservationRecordedEvent is the transport-neutral payload.
type ObservationRecordedEvent struct {
	SchemaVersion int                `json:"schema_version"`
	EventType     string             `json:"event_type"`
	EventID       string             `json:"event_id"`
	EmittedAt     time.Time          `json:"emitted_at"`
	Source        EventSource        `json:"source"`
	Observation   ObservationPayload `json:"observation"`
}

// EventSource identifies where the observation was ingested from.
type EventSource struct {
	Platform  string `json:"platform"`
	Project   string `json:"project"`
	SourceKey string `json:"source_key,omitempty"`
}

// ObservationPayload is the redacted view of the observation.
type ObservationPayload struct {
	ID              string   `json:"id"`
	SessionID       string   `json:"session_id"`
	EventType       string   `json:"event_type"`
	Title           string   `json:"title,omitempty"`
	ContentRedacted string   `json:"content_redacted"`
	CreatedAt       string   `json:"created_at"`
	Tags            []string `json:"tags"`
	CorrelationID   string   `json:"correlation_id,omitempty"`
	DedupeHash      string   `json:"dedupe_hash"`
}

// NewObservationRecorded builds the event for o. Unredacted content never
// leaves the process.
func NewObservationRecorded(o store.Observation, sourceKey string, now time.Time) *ObservationRecordedEvent {
	return &ObservationRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeObservationRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source: EventSource{
			Platform:  o.Platform,
			Project:   o.Project,
			SourceKey: sourceKey,
		},
		Observation: ObservationPayload{
			ID:              o.ID,
			SessionID:       o.SessionID,
			EventType:       o.EventType,
			Title:           o.Title,
			ContentRedacted: o.ContentRedacted,
			CreatedAt:       o.CreatedAt,
			Tags:            o.Tags(),
			CorrelationID:   o.CorrelationID,
			DedupeHash:      o.DedupeHash,
		},
	}
}
