package coordinator_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/listenparty/go/clients"
	"github.com/mcdev12/listenparty/go/internal/models"
)

// ErrPartyNotFound is returned when the coordinator has no such party.
var ErrPartyNotFound = errors.New("party not found")

type PodcastResponse struct {
	Title      string `json:"title"`
	ArtworkURL string `json:"artwork_url"`
}

type EpisodeResponse struct {
	Title    string          `json:"title"`
	MediaURL string          `json:"media_url"`
	Podcast  PodcastResponse `json:"podcast"`
}

// PartyResponse is the coordinator's wire format. Times are epoch seconds.
type PartyResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartTime int64           `json:"start_time"`
	EndTime   *int64          `json:"end_time"`
	MediaURL  string          `json:"media_url"`
	Finished  bool            `json:"finished"`
	Episode   EpisodeResponse `json:"episode"`
}

// ToModel converts the wire format to the domain model.
func (r PartyResponse) ToModel() (models.Party, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.Party{}, fmt.Errorf("invalid party id %q: %w", r.ID, err)
	}

	p := models.Party{
		ID:        id,
		Name:      r.Name,
		StartTime: time.Unix(r.StartTime, 0).UTC(),
		MediaURL:  r.MediaURL,
		Finished:  r.Finished,
		Episode: models.Episode{
			Title:    r.Episode.Title,
			MediaURL: r.Episode.MediaURL,
			Podcast: models.Podcast{
				Title:      r.Episode.Podcast.Title,
				ArtworkURL: r.Episode.Podcast.ArtworkURL,
			},
		},
	}
	if p.MediaURL == "" {
		p.MediaURL = r.Episode.MediaURL
	}
	if r.EndTime != nil {
		end := time.Unix(*r.EndTime, 0).UTC()
		p.EndTime = &end
	}
	return p, nil
}

// Get fetches the current party record. It implements refresher.Fetcher.
func (c *CoordinatorClient) Get(ctx context.Context, id uuid.UUID) (models.Party, error) {
	body, err := c.BaseClient.Get(ctx, PartiesEndpoint+id.String())
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return models.Party{}, fmt.Errorf("%w: %s", ErrPartyNotFound, id)
		}
		return models.Party{}, fmt.Errorf("failed to get party: %w", err)
	}

	var response PartyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return models.Party{}, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	party, err := response.ToModel()
	if err != nil {
		return models.Party{}, err
	}
	if party.ID != id {
		return models.Party{}, fmt.Errorf("coordinator returned party %s for %s", party.ID, id)
	}
	return party, nil
}
