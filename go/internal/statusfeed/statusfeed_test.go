package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/listenparty/go/internal/lifecycle"
	"github.com/mcdev12/listenparty/go/internal/playback"
)

type fakeSession struct {
	joins   atomic.Int32
	retries atomic.Int32
	snap    lifecycle.Snapshot
}

func (s *fakeSession) MarkJoined() { s.joins.Add(1) }
func (s *fakeSession) Retry() { s.retries.Add(1) }
func (s *fakeSession) Snapshot() lifecycle.Snapshot { return s.snap }

type fakeSharer struct {
	calls atomic.Int32
	err   error
}

func (s *fakeSharer) Share() error {
	s.calls.Add(1)
	return s.err
}

var epoch = time.Unix(1_700_000_000, 0)

func newTestFeed(t *testing.T) (*Feed, *fakeSession, *httptest.Server) {
	t.Helper()

	partyID := uuid.New()
	session := &fakeSession{snap: lifecycle.Snapshot{
		PartyID:   partyID,
		Name:      "Late show",
		State:     lifecycle.StateScheduled,
		StartTime: epoch.Add(time.Minute),
		Countdown: "0d 0h 1m 0s",
		Position:  "0:00",
		At:        epoch,
	}}

	feed := NewFeed(partyID, clockwork.NewFakeClockAt(epoch), DefaultConnectionConfig())
	feed.Attach(session, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go feed.Start(ctx)

	server := httptest.NewServer(NewServer("", feed).Handler)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return feed, session, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) FeedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg FeedMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestConnectReceivesSnapshot(t *testing.T) {
	feed, session, server := newTestFeed(t)
	conn := dial(t, server)

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Equal(t, session.snap.PartyID.String(), msg.PartyID)
	assert.True(t, msg.Timestamp.Equal(epoch))

	var data map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "SCHEDULED", data["state"])
	assert.Equal(t, "0d 0h 1m 0s", data["countdown"])
	assert.Equal(t, 1, feed.Connections())
}

func TestObserverBroadcasts(t *testing.T) {
	feed, session, server := newTestFeed(t)
	conn := dial(t, server)
	readMessage(t, conn)

	partyID := session.snap.PartyID
	feed.OnTransition(partyID, lifecycle.Transition{From: lifecycle.StateScheduled, To: lifecycle.StateLive, At: epoch})
	feed.OnPlayback(partyID, lifecycle.PlaybackEvent{Outcome: lifecycle.PlaybackFailed, Position: 75 * time.Second, Err: playback.ErrPlaybackStartDenied, At: epoch})
	feed.OnShareChanged(true)

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeTransition, msg.Type)
	var transition TransitionData
	require.NoError(t, json.Unmarshal(msg.Data, &transition))
	assert.Equal(t, "SCHEDULED", transition.From)
	assert.Equal(t, "LIVE", transition.To)

	msg = readMessage(t, conn)
	require.Equal(t, MessageTypePlayback, msg.Type)
	var pb PlaybackData
	require.NoError(t, json.Unmarshal(msg.Data, &pb))
	assert.Equal(t, "failed", pb.Outcome)
	assert.Equal(t, "1:15", pb.Position)
	assert.Equal(t, "playback start denied", pb.Error)

	msg = readMessage(t, conn)
	require.Equal(t, MessageTypeShared, msg.Type)
	var shared SharedData
	require.NoError(t, json.Unmarshal(msg.Data, &shared))
	assert.True(t, shared.Copied)
}

func TestClientIntentsAreRouted(t *testing.T) {
	feed, session, server := newTestFeed(t)
	sharer := &fakeSharer{}
	feed.Attach(session, sharer)

	conn := dial(t, server)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionJoin}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionRetry}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionShare}))

	require.Eventually(t, func() bool {
		return session.joins.Load() == 1 && session.retries.Load() == 1 && sharer.calls.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBadIntentsGetErrorReply(t *testing.T) {
	feed, session, server := newTestFeed(t)
	feed.Attach(session, &fakeSharer{err: errors.New("clipboard unavailable")})

	conn := dial(t, server)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "dance"}))
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)
	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "unknown action: dance", data.Message)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionShare}))
	msg = readMessage(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "clipboard unavailable", data.Message)

	// Malformed frames are ignored and the connection stays usable.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionJoin}))
	require.Eventually(t, func() bool { return session.joins.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestStateAndHealth(t *testing.T) {
	_, _, server := newTestFeed(t)

	resp, err := http.Get(server.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var data map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "Late show", data["name"])
	assert.Equal(t, "SCHEDULED", data["state"])

	health, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	body, err := io.ReadAll(health.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestStateWithoutSession(t *testing.T) {
	feed := NewFeed(uuid.New(), nil, DefaultConnectionConfig())

	rec := httptest.NewRecorder()
	feed.HandleState(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
