package statusfeed

import (
	"encoding/json"
	"time"
)

// MessageType is the type of a message pushed to clients.
type MessageType string

const (
	MessageTypeSnapshot   MessageType = "snapshot"
	MessageTypeTransition MessageType = "transition"
	MessageTypePlayback   MessageType = "playback"
	MessageTypeShared     MessageType = "shared"
	MessageTypeError      MessageType = "error"
)

// FeedMessage is the envelope for everything pushed to clients.
type FeedMessage struct {
	Type      MessageType     `json:"type"`
	PartyID   string          `json:"party_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Action is a user intent sent by a client.
type Action string

const (
	ActionJoin  Action = "join"
	ActionRetry Action = "retry"
	ActionShare Action = "share"
)

// ClientMessage is what clients send over the socket.
type ClientMessage struct {
	Action Action `json:"action"`
}

// TransitionData is the data of a transition message.
type TransitionData struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// PlaybackData is the data of a playback message.
type PlaybackData struct {
	Outcome  string    `json:"outcome"`
	Position string    `json:"position"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// SharedData is the data of a shared message.
type SharedData struct {
	Copied bool `json:"copied"`
}

// ErrorData is the data of an error message.
type ErrorData struct {
	Message string `json:"message"`
}
