package lifecycle

import (
	"fmt"
	"time"

	"github.com/mcdev12/listenparty/go/internal/models"
)

// State is the lifecycle phase of a party as seen by one client.
type State int

const (
	StatePendingCreation State = iota
	StateScheduled
	StateLive
	StateFinished
)

func (s State) String() string {
	switch s {
	case StatePendingCreation:
		return "PENDING_CREATION"
	case StateScheduled:
		return "SCHEDULED"
	case StateLive:
		return "LIVE"
	case StateFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions is the complete set of legal state changes. FINISHED has no
// outgoing edges and is handled as an absorbing no-op.
//
// PENDING_CREATION -> FINISHED is taken when creation completes with a
// record that is already over; nothing is scheduled or bound.
var transitions = map[State][]State{
	StatePendingCreation: {StateScheduled, StateFinished},
	StateScheduled:       {StateLive},
	StateLive:            {StateFinished},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InitialState picks the starting phase for a freshly loaded record.
func InitialState(p models.Party, now time.Time) State {
	switch {
	case p.EndTime == nil:
		return StatePendingCreation
	case p.Finished:
		return StateFinished
	case p.HasEnded(now):
		return StateFinished
	default:
		return StateScheduled
	}
}

// Transition describes one state change.
type Transition struct {
	From  State        `json:"from"`
	To    State        `json:"to"`
	At    time.Time    `json:"at"`
	Party models.Party `json:"party"`
}
