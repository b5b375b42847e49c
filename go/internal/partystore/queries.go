package partystore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const getListeningParty = `SELECT
    lp.id,
    lp.name,
    lp.start_time,
    lp.end_time,
    lp.finished,
    e.title,
    e.media_url,
    p.title,
    p.artwork_url
FROM listening_parties lp
JOIN episodes e ON e.id = lp.episode_id
JOIN podcasts p ON p.id = e.podcast_id
WHERE lp.id = $1`

// ListeningPartyRow is one joined row of the party, its episode and podcast.
type ListeningPartyRow struct {
	ID                uuid.UUID
	Name              string
	StartTime         pgtype.Timestamptz
	EndTime           pgtype.Timestamptz
	Finished          bool
	EpisodeTitle      string
	EpisodeMediaURL   string
	PodcastTitle      string
	PodcastArtworkURL pgtype.Text
}

// Queries runs the read-only statements against the coordinator database.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) GetListeningParty(ctx context.Context, id uuid.UUID) (ListeningPartyRow, error) {
	row := q.db.QueryRow(ctx, getListeningParty, id)
	var i ListeningPartyRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.StartTime,
		&i.EndTime,
		&i.Finished,
		&i.EpisodeTitle,
		&i.EpisodeMediaURL,
		&i.PodcastTitle,
		&i.PodcastArtworkURL,
	)
	return i, err
}
