package coordinator_client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/listenparty/go/clients"
)

func TestGetParty(t *testing.T) {
	id := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PartiesEndpoint+id.String(), r.URL.Path)
		assert.Equal(t, JSONContentType, r.Header.Get(AcceptHeader))
		w.Header().Set("Content-Type", JSONContentType)
		fmt.Fprintf(w, `{
			"id": %q,
			"name": "Launch party",
			"start_time": 1700000000,
			"end_time": 1700003600,
			"media_url": "https://cdn.example.com/ep1.mp3",
			"finished": false,
			"episode": {
				"title": "Episode 1",
				"media_url": "https://cdn.example.com/ep1.mp3",
				"podcast": {"title": "The Show", "artwork_url": "https://cdn.example.com/art.png"}
			}
		}`, id.String())
	}))
	defer server.Close()

	client := NewCoordinatorClient(server.URL, time.Second)
	party, err := client.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, party.ID)
	assert.Equal(t, "Launch party", party.Name)
	assert.Equal(t, int64(1700000000), party.StartTime.Unix())
	require.NotNil(t, party.EndTime)
	assert.Equal(t, int64(1700003600), party.EndTime.Unix())
	assert.Equal(t, time.Hour, party.Duration())
	assert.Equal(t, "The Show", party.Episode.Podcast.Title)
	assert.NoError(t, party.Validate())
}

func TestGetPendingParty(t *testing.T) {
	id := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": %q, "start_time": 1700000000, "end_time": null, "finished": false,
			"episode": {"media_url": "https://cdn.example.com/ep2.mp3"}}`, id.String())
	}))
	defer server.Close()

	party, err := NewCoordinatorClient(server.URL, 0).Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, party.IsCreated())
	assert.Equal(t, "https://cdn.example.com/ep2.mp3", party.MediaURL, "falls back to the episode media url")
}

func TestGetPartyErrors(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"message":"missing"}`, notFound: true},
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "bad json", status: http.StatusOK, body: "{"},
		{name: "bad id", status: http.StatusOK, body: `{"id":"nope"}`},
		{name: "wrong party", status: http.StatusOK, body: fmt.Sprintf(`{"id":%q}`, uuid.New())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewCoordinatorClient(server.URL, time.Second).Get(context.Background(), id)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrPartyNotFound))
		})
	}
}

func TestGetPartyHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewCoordinatorClient(server.URL, 0).Get(ctx, uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusError(t *testing.T) {
	err := &clients.StatusError{StatusCode: 502, Body: "bad gateway"}
	assert.Equal(t, "API returned status code: 502, response: bad gateway", err.Error())
}
