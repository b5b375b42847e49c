package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, closeFetcher, err := setupFetcher(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Source).Msg("failed to set up party source")
	}
	defer closeFetcher()

	party, err := fetcher.Get(ctx, cfg.Party)
	if err != nil {
		log.Fatal().Err(err).Str("party_id", cfg.Party.String()).Msg("failed to fetch party")
	}

	session, err := setupSession(ctx, cfg, party, fetcher)
	if err != nil {
		log.Fatal().Err(err).Str("party_id", cfg.Party.String()).Msg("failed to set up party session")
	}
	defer session.Close()

	if err := session.Run(ctx); err != nil {
		log.Error().Err(err).Str("party_id", cfg.Party.String()).Msg("party session failed")
		return
	}
	log.Info().Str("party_id", cfg.Party.String()).Msg("party session ended")
}
