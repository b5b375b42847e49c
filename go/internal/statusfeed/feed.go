package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/countdown"
	"github.com/mcdev12/listenparty/go/internal/lifecycle"
)

var ErrNoSession = errors.New("no session attached")

// Session is the part of the lifecycle controller the feed drives.
type Session interface {
	MarkJoined()
	Retry()
	Snapshot() lifecycle.Snapshot
}

// Sharer copies the party locator for the user.
type Sharer interface {
	Share() error
}

// Feed pushes session updates to WebSocket clients and routes their intents
// back to the session. It implements lifecycle.Observer.
type Feed struct {
	manager *ConnectionManager
	clock   clockwork.Clock
	partyID uuid.UUID

	mu      sync.RWMutex
	session Session
	sharer  Sharer
}

func NewFeed(partyID uuid.UUID, clock clockwork.Clock, config ConnectionConfig) *Feed {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	f := &Feed{clock: clock, partyID: partyID}
	f.manager = NewConnectionManager(config, f.handleClientMessage)
	return f
}

// Attach binds the session and optional sharer. The controller is built with
// the feed as an observer, so binding happens after construction.
func (f *Feed) Attach(session Session, sharer Sharer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
	f.sharer = sharer
}

// Start runs the broadcast loop until ctx is done.
func (f *Feed) Start(ctx context.Context) {
	f.manager.Start(ctx)
}

func (f *Feed) Connections() int {
	return f.manager.ConnectionCount()
}

// OnTransition implements lifecycle.Observer.
func (f *Feed) OnTransition(partyID uuid.UUID, t lifecycle.Transition) {
	f.broadcast(MessageTypeTransition, TransitionData{From: t.From.String(), To: t.To.String(), At: t.At})
}

// OnPlayback implements lifecycle.Observer.
func (f *Feed) OnPlayback(partyID uuid.UUID, e lifecycle.PlaybackEvent) {
	data := PlaybackData{Outcome: e.Outcome.String(), Position: countdown.FormatPosition(e.Position), At: e.At}
	if e.Err != nil {
		data.Error = e.Err.Error()
	}
	f.broadcast(MessageTypePlayback, data)
}

// OnSnapshot implements lifecycle.Observer.
func (f *Feed) OnSnapshot(s lifecycle.Snapshot) {
	f.broadcast(MessageTypeSnapshot, s)
}

// OnShareChanged is the share confirmation callback.
func (f *Feed) OnShareChanged(copied bool) {
	f.broadcast(MessageTypeShared, SharedData{Copied: copied})
}

func (f *Feed) broadcast(t MessageType, data any) {
	msg, err := f.message(t, data)
	if err != nil {
		log.Error().Err(err).Str("party_id", f.partyID.String()).Msg("failed to encode feed message")
		return
	}
	f.manager.Broadcast(msg)
}

func (f *Feed) message(t MessageType, data any) (FeedMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return FeedMessage{}, err
	}
	return FeedMessage{Type: t, PartyID: f.partyID.String(), Timestamp: f.clock.Now(), Data: raw}, nil
}

func (f *Feed) bound() (Session, Sharer) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session, f.sharer
}

func (f *Feed) handleClientMessage(c *Connection, msg ClientMessage) {
	session, sharer := f.bound()
	if session == nil {
		f.reply(c, ErrNoSession.Error())
		return
	}

	switch msg.Action {
	case ActionJoin:
		session.MarkJoined()
	case ActionRetry:
		session.Retry()
	case ActionShare:
		if sharer == nil {
			f.reply(c, "sharing is not available")
			return
		}
		if err := sharer.Share(); err != nil {
			log.Warn().Err(err).Str("party_id", f.partyID.String()).Msg("share failed")
			f.reply(c, err.Error())
		}
	default:
		f.reply(c, "unknown action: "+string(msg.Action))
	}
}

func (f *Feed) reply(c *Connection, text string) {
	msg, err := f.message(MessageTypeError, ErrorData{Message: text})
	if err != nil {
		return
	}
	f.manager.SendTo(c, msg)
}

// HandleConnection upgrades the request and sends the current snapshot first.
func (f *Feed) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var initial []byte
	if session, _ := f.bound(); session != nil {
		msg, err := f.message(MessageTypeSnapshot, session.Snapshot())
		if err == nil {
			initial, _ = json.Marshal(msg)
		}
	}

	if err := f.manager.UpgradeConnection(w, r, initial); err != nil {
		log.Error().
			Err(err).
			Str("party_id", f.partyID.String()).
			Msg("failed to upgrade WebSocket connection")
		// Upgrade has already replied on handshake failures.
		return
	}
}

// HandleState returns the current snapshot as JSON.
func (f *Feed) HandleState(w http.ResponseWriter, r *http.Request) {
	session, _ := f.bound()
	if session == nil {
		http.Error(w, ErrNoSession.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session.Snapshot()); err != nil {
		log.Error().Err(err).Msg("failed to write state response")
	}
}

// RegisterRoutes registers the feed routes with an HTTP mux
func (f *Feed) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", f.HandleConnection)
	mux.HandleFunc("GET /state", f.HandleState)
}
