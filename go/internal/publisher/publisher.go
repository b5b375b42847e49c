// Package publisher ships party lifecycle events to NATS JetStream.
package publisher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenparty/go/internal/events"
)

// EventPublisher delivers one event.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Subject returns the subject an event is published on:
// <prefix>.<party id>.<event type>.
func Subject(prefix string, event events.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.PartyID, event.EventType)
}

// LogPublisher only logs events. It is used when no NATS server is
// configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event events.Event) error {
	log.Info().
		Str("event_id", event.EventID.String()).
		Str("event_type", string(event.EventType)).
		Str("party_id", event.PartyID.String()).
		Msg("publishing event")
	return nil
}
