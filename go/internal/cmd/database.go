package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/clients/coordinator_client"
	"github.com/mcdev12/listenparty/go/internal/config"
	"github.com/mcdev12/listenparty/go/internal/partystore"
	"github.com/mcdev12/listenparty/go/internal/refresher"
)

// setupFetcher returns the party source picked by the config and a function
// releasing it.
func setupFetcher(ctx context.Context, cfg config.Config) (refresher.Fetcher, func(), error) {
	switch cfg.Source {
	case config.SourcePostgres:
		pool, err := partystore.NewPool(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("host", pool.Config().ConnConfig.Host).
			Str("database", pool.Config().ConnConfig.Database).
			Msg("connected to database")
		return partystore.NewRepository(partystore.NewQueries(pool)), pool.Close, nil

	case config.SourceCoordinator:
		client := coordinator_client.NewCoordinatorClient(cfg.Coordinator.BaseURL, cfg.Coordinator.Timeout)
		log.Info().Str("base_url", cfg.Coordinator.BaseURL).Msg("using coordinator API")
		return client, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown party source %q", cfg.Source)
}
