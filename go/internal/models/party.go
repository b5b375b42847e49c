package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidParty is returned when a party record breaks its own invariants.
var ErrInvalidParty = errors.New("invalid party")

// Podcast holds presentation metadata for the show an episode belongs to.
type Podcast struct {
	Title      string `json:"title"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// Episode holds presentation metadata for the audio item of a party.
type Episode struct {
	Title    string  `json:"title"`
	MediaURL string  `json:"media_url,omitempty"`
	Podcast  Podcast `json:"podcast"`
}

// Party represents a scheduled listening party as held by the coordinator.
// It is read-only on the client side.
type Party struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"` // nil while the party is still being created
	MediaURL  string     `json:"media_url"`
	Finished  bool       `json:"finished"`
	Episode   Episode    `json:"episode"`
}

// IsCreated reports whether the coordinator has finished creating the party.
func (p Party) IsCreated() bool {
	return p.EndTime != nil
}

// Duration returns the scheduled length of the party, or zero while the end
// time is unknown.
func (p Party) Duration() time.Duration {
	if p.EndTime == nil {
		return 0
	}
	return time.Duration(p.EndTime.Unix()-p.StartTime.Unix()) * time.Second
}

// HasEnded reports whether the scheduled end time lies at or before now.
func (p Party) HasEnded(now time.Time) bool {
	return p.EndTime != nil && !p.EndTime.After(now)
}

// Validate checks the invariants the coordinator guarantees for a party.
func (p Party) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidParty)
	}
	if p.StartTime.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidParty)
	}
	if p.MediaURL == "" {
		return fmt.Errorf("%w: missing media url", ErrInvalidParty)
	}
	if p.EndTime != nil && p.EndTime.Before(p.StartTime) {
		return fmt.Errorf("%w: end time %s before start time %s", ErrInvalidParty,
			p.EndTime.UTC().Format(time.RFC3339), p.StartTime.UTC().Format(time.RFC3339))
	}
	return nil
}
