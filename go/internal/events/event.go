// Package events defines the lifecycle events a client session emits.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a party event.
type EventType string

const (
	PartyScheduled  EventType = "PartyScheduled"
	PartyLive       EventType = "PartyLive"
	PartyFinished   EventType = "PartyFinished"
	PlaybackStarted EventType = "PlaybackStarted"
	PlaybackFailed  EventType = "PlaybackFailed"
)

// Event is the envelope every party event travels in.
type Event struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType EventType       `json:"eventType"`
	PartyID   uuid.UUID       `json:"partyId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New wraps payload in an envelope with a fresh event id.
func New(eventType EventType, partyID uuid.UUID, at time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:   uuid.New(),
		EventType: eventType,
		PartyID:   partyID,
		Timestamp: at.UTC(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into dst.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.EventType, err)
	}
	return nil
}
