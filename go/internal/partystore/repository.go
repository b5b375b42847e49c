// Package partystore reads party records straight from the coordinator's
// Postgres database. It never writes.
package partystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/listenparty/go/internal/models"
	"github.com/mcdev12/listenparty/go/internal/sqlutil"
)

// ErrPartyNotFound is returned when no row matches the id.
var ErrPartyNotFound = errors.New("party not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetListeningParty(ctx context.Context, id uuid.UUID) (ListeningPartyRow, error)
}

// Repository implements refresher.Fetcher over Postgres.
type Repository struct {
	queries Querier
}

// NewRepository creates a new party repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// NewPool opens a pgx pool and verifies the connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Get retrieves a party with its episode and podcast.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.Party, error) {
	row, err := r.queries.GetListeningParty(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Party{}, fmt.Errorf("%w: %s", ErrPartyNotFound, id)
		}
		return models.Party{}, fmt.Errorf("failed to get party: %w", err)
	}

	return r.rowToModel(row), nil
}

func (r *Repository) rowToModel(row ListeningPartyRow) models.Party {
	return models.Party{
		ID:        row.ID,
		Name:      row.Name,
		StartTime: sqlutil.FromTimestamptz(row.StartTime),
		EndTime:   sqlutil.FromTimestamptzPtr(row.EndTime),
		MediaURL:  row.EpisodeMediaURL,
		Finished:  row.Finished,
		Episode: models.Episode{
			Title:    row.EpisodeTitle,
			MediaURL: row.EpisodeMediaURL,
			Podcast: models.Podcast{
				Title:      row.PodcastTitle,
				ArtworkURL: sqlutil.FromText(row.PodcastArtworkURL, ""),
			},
		},
	}
}
