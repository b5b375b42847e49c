package partystore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const partyQuery = `(?s)SELECT.+FROM listening_parties lp.+WHERE lp\.id = \$1`

var partyColumns = []string{
	"id", "name", "start_time", "end_time", "finished",
	"title", "media_url", "title", "artwork_url",
}

func setupMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewRepository(NewQueries(mock)), mock
}

func TestGet(t *testing.T) {
	repo, mock := setupMock(t)
	defer mock.Close()

	id := uuid.New()
	start := time.Unix(1_700_000_000, 0)
	end := start.Add(45 * time.Minute)

	t.Run("Created", func(t *testing.T) {
		mock.ExpectQuery(partyQuery).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(partyColumns).AddRow(
				id, "Morning listen",
				pgtype.Timestamptz{Time: start, Valid: true},
				pgtype.Timestamptz{Time: end, Valid: true},
				false,
				"Episode 7", "https://cdn.example.com/ep7.mp3",
				"The Show", pgtype.Text{String: "https://cdn.example.com/art.png", Valid: true},
			))

		party, err := repo.Get(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, id, party.ID)
		assert.Equal(t, "Morning listen", party.Name)
		assert.True(t, party.StartTime.Equal(start))
		require.NotNil(t, party.EndTime)
		assert.True(t, party.EndTime.Equal(end))
		assert.Equal(t, "https://cdn.example.com/ep7.mp3", party.MediaURL)
		assert.Equal(t, "https://cdn.example.com/art.png", party.Episode.Podcast.ArtworkURL)
		assert.NoError(t, party.Validate())
	})

	t.Run("PendingCreation", func(t *testing.T) {
		mock.ExpectQuery(partyQuery).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(partyColumns).AddRow(
				id, "Morning listen",
				pgtype.Timestamptz{Time: start, Valid: true},
				pgtype.Timestamptz{},
				false,
				"Episode 7", "https://cdn.example.com/ep7.mp3",
				"The Show", pgtype.Text{},
			))

		party, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, party.EndTime)
		assert.False(t, party.IsCreated())
		assert.Empty(t, party.Episode.Podcast.ArtworkURL)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(partyQuery).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrPartyNotFound)
	})

	t.Run("InternalError", func(t *testing.T) {
		mock.ExpectQuery(partyQuery).
			WithArgs(id).
			WillReturnError(pgx.ErrTxClosed)

		_, err := repo.Get(context.Background(), id)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrPartyNotFound))
		assert.ErrorIs(t, err, pgx.ErrTxClosed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
