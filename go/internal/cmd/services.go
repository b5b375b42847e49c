package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/listenparty/go/internal/config"
	"github.com/mcdev12/listenparty/go/internal/lifecycle"
	"github.com/mcdev12/listenparty/go/internal/media"
	"github.com/mcdev12/listenparty/go/internal/models"
	"github.com/mcdev12/listenparty/go/internal/publisher"
	"github.com/mcdev12/listenparty/go/internal/refresher"
	"github.com/mcdev12/listenparty/go/internal/share"
	"github.com/mcdev12/listenparty/go/internal/statusfeed"
)

const (
	shutdownTimeout = 5 * time.Second
	// finishLinger keeps the feed up briefly so clients see the final state.
	finishLinger = 2 * time.Second
)

// Session holds everything one party session runs.
type Session struct {
	clock      clockwork.Clock
	controller *lifecycle.Controller
	deck       *media.Deck
	feed       *statusfeed.Feed
	server     *http.Server
	relay      *publisher.Relay
	sharer     *share.Sharer
	jetstream  *publisher.JetStreamPublisher
}

func setupSession(ctx context.Context, cfg config.Config, party models.Party, fetcher refresher.Fetcher) (*Session, error) {
	// Wire up dependency chain
	// Engine → Observers (feed, relay) → Controller → Feed binding
	clock := clockwork.NewRealClock()

	deck := media.NewDeck(media.Config{
		Clock:          clock,
		UpdateInterval: cfg.Session.UpdateInterval,
		RequireGesture: cfg.Session.RequireGesture,
	})

	s := &Session{clock: clock, deck: deck}
	s.relay = publisher.NewRelay(s.setupPublisher(ctx, cfg), publisher.DefaultQueueSize)

	s.feed = statusfeed.NewFeed(party.ID, clock, statusfeed.DefaultConnectionConfig())
	s.server = statusfeed.NewServer(cfg.Feed.ListenAddr, s.feed)

	controller, err := lifecycle.New(party, deck, fetcher, lifecycle.Options{
		Clock:             clock,
		CountdownInterval: cfg.Session.CountdownInterval,
		PollInterval:      cfg.Session.PollInterval,
		Observers:         []lifecycle.Observer{s.feed, s.relay},
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.controller = controller

	locator := share.Locator(cfg.Feed.ShareBaseURL, party.ID.String())
	s.sharer = share.NewSharer(share.OSC52{W: os.Stdout}, clock, locator, s.feed.OnShareChanged)
	s.feed.Attach(controller, s.sharer)

	return s, nil
}

func (s *Session) setupPublisher(ctx context.Context, cfg config.Config) publisher.EventPublisher {
	if cfg.NATS.URL == "" {
		log.Info().Msg("NATS_URL not set - lifecycle events will only be logged")
		return publisher.LogPublisher{}
	}

	jsCfg := publisher.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATS.URL
	jsCfg.StreamName = cfg.NATS.Stream
	jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

	js, err := publisher.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("JetStream unavailable - falling back to logging events")
		return publisher.LogPublisher{}
	}
	s.jetstream = js
	return js
}

// Run serves the status feed and drives the controller until the party
// finishes or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		return s.relay.Run(runCtx)
	})

	g.Go(func() error {
		s.feed.Start(runCtx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", s.server.Addr).Msg("status feed listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return s.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		defer cancel()
		err := s.controller.Run(runCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		linger(runCtx, s.clock, finishLinger)
		return nil
	})

	err := g.Wait()

	published, failed, dropped := s.relay.Stats()
	log.Info().
		Uint64("published", published).
		Uint64("failed", failed).
		Uint64("dropped", dropped).
		Msg("event relay stopped")

	return err
}

// linger waits d on clock, or until ctx is done.
func linger(ctx context.Context, clock clockwork.Clock, d time.Duration) {
	select {
	case <-clock.After(d):
	case <-ctx.Done():
	}
}

// Close releases the engine, timers and the NATS connection.
func (s *Session) Close() {
	if s.sharer != nil {
		s.sharer.Close()
	}
	if err := s.deck.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close media deck")
	}
	if s.jetstream != nil {
		s.jetstream.Close()
	}
}
