package events

import (
	"time"
)

// Event payload types shared between the publisher and anything consuming
// party events

// PartyScheduledPayload is the payload for a PartyScheduled event
type PartyScheduledPayload struct {
	PartyID     string    `json:"party_id"`
	Name        string    `json:"name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	MediaURL    string    `json:"media_url"`
	DurationSec int64     `json:"duration_sec"`
}

// PartyLivePayload is the payload for a PartyLive event
type PartyLivePayload struct {
	PartyID   string    `json:"party_id"`
	StartTime time.Time `json:"start_time"`
	LiveAt    time.Time `json:"live_at"`
}

// PartyFinishedPayload is the payload for a PartyFinished event
type PartyFinishedPayload struct {
	PartyID    string    `json:"party_id"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
}

// PlaybackStartedPayload is the payload for a PlaybackStarted event
type PlaybackStartedPayload struct {
	PartyID   string    `json:"party_id"`
	OffsetSec int64     `json:"offset_sec"`
	StartedAt time.Time `json:"started_at"`
}

// PlaybackFailedPayload is the payload for a PlaybackFailed event
type PlaybackFailedPayload struct {
	PartyID  string    `json:"party_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
