package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/listenparty/go/internal/countdown"
	"github.com/mcdev12/listenparty/go/internal/models"
	"github.com/mcdev12/listenparty/go/internal/playback"
)

// Snapshot is a point-in-time copy of everything a UI needs to render the
// session.
type Snapshot struct {
	PartyID   uuid.UUID           `json:"party_id"`
	Name      string              `json:"name"`
	State     State               `json:"state"`
	StartTime time.Time           `json:"start_time"`
	EndTime   *time.Time          `json:"end_time,omitempty"`
	Countdown string              `json:"countdown"`
	Breakdown countdown.Breakdown `json:"breakdown"`
	Position  string              `json:"position"`
	Length    string              `json:"length"`
	Playback  playback.State      `json:"playback"`
	Episode   models.Episode      `json:"episode"`
	LastError string              `json:"last_error,omitempty"`
	At        time.Time           `json:"at"`
}

// PlaybackOutcome says whether a playback attempt succeeded.
type PlaybackOutcome int

const (
	PlaybackStarted PlaybackOutcome = iota
	PlaybackFailed
)

func (o PlaybackOutcome) String() string {
	if o == PlaybackStarted {
		return "started"
	}
	return "failed"
}

// PlaybackEvent is reported when the synchronizer starts playback or records
// a new playback error.
type PlaybackEvent struct {
	Outcome  PlaybackOutcome `json:"outcome"`
	Position time.Duration   `json:"position"`
	Err      error           `json:"-"`
	At       time.Time       `json:"at"`
}

// Observer receives controller notifications. Methods are called from the
// controller loop and must not block.
type Observer interface {
	OnTransition(partyID uuid.UUID, t Transition)
	OnPlayback(partyID uuid.UUID, e PlaybackEvent)
	OnSnapshot(s Snapshot)
}

// NopObserver implements Observer with no-ops, for embedding.
type NopObserver struct{}

func (NopObserver) OnTransition(uuid.UUID, Transition) {}
func (NopObserver) OnPlayback(uuid.UUID, PlaybackEvent) {}
func (NopObserver) OnSnapshot(Snapshot) {}
